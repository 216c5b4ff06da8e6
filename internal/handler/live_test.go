package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawServerMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func dialLive(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(newRouter(t))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/buildings/b1/statements/live"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, msg ClientMessage) rawServerMessage {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
	var resp rawServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	return resp
}

func TestLive_ComputeAndPing(t *testing.T) {
	conn, ctx := dialLive(t)

	resp := roundTrip(t, ctx, conn, ClientMessage{Type: "ping", ID: "p1"})
	assert.Equal(t, "pong", resp.Type)
	assert.Equal(t, "p1", resp.RequestID)

	resp = roundTrip(t, ctx, conn, ClientMessage{Type: "compute", ID: "r1", Data: json.RawMessage(yearBody)})
	require.Equal(t, "result", resp.Type, string(resp.Data))
	assert.Equal(t, "r1", resp.RequestID)
	assert.Contains(t, string(resp.Data), `"total_allocated":"1000"`)

	// The operator switches the key; the next result reflects the edit.
	edited := `{"period":{"start":"2023-01-01","end":"2023-12-31"},"pools":[{"category_id":"heat","key":"person_weighted"}]}`
	resp = roundTrip(t, ctx, conn, ClientMessage{Type: "compute", ID: "r2", Data: json.RawMessage(edited)})
	require.Equal(t, "result", resp.Type)
	var data struct {
		Result struct {
			Statement struct {
				Items []struct {
					AllocatedCost string `json:"allocated_cost"`
				} `json:"items"`
			} `json:"statement"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Result.Statement.Items, 2)
	assert.Equal(t, "666.67", data.Result.Statement.Items[0].AllocatedCost)
}

func TestLive_ValidationAndErrors(t *testing.T) {
	conn, ctx := dialLive(t)

	resp := roundTrip(t, ctx, conn, ClientMessage{Type: "compute", ID: "v1", Data: json.RawMessage(`{"period":{"start":"2023-01-01","end":"2023-12-31"},"pools":[]}`)})
	require.Equal(t, "validation", resp.Type)
	var v ValidationData
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	require.Len(t, v.Problems, 1)
	assert.Equal(t, "NO_SELECTION", v.Problems[0].Code)

	resp = roundTrip(t, ctx, conn, ClientMessage{Type: "compute", ID: "v2", Data: json.RawMessage(`"nope"`)})
	assert.Equal(t, "error", resp.Type)

	resp = roundTrip(t, ctx, conn, ClientMessage{Type: "finalize", ID: "v3"})
	require.Equal(t, "error", resp.Type)
	var e ErrorData
	require.NoError(t, json.Unmarshal(resp.Data, &e))
	assert.Equal(t, "unknown_type", e.Code)
}
