package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/statement"
)

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "compute", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "result", "validation", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// ResultData carries a computed statement.
type ResultData struct {
	Result  *engine.Result `json:"result"`
	Elapsed string         `json:"elapsed"`
}

// ValidationData carries the blocking problems of a rejected request.
type ValidationData struct {
	Problems []engine.Problem `json:"problems"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LiveHandler recomputes a building's statement over a WebSocket each time
// the operator edits the request. Nothing is persisted.
type LiveHandler struct {
	svc *statement.Service
	log zerolog.Logger
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(svc *statement.Service, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{svc: svc, log: log}
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("live: websocket accept")
		return
	}
	defer conn.CloseNow()

	buildingID := chi.URLParam(r, "buildingID")
	ctx := r.Context()
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				h.log.Debug().Int("status", int(status)).Msg("live: connection closed")
			}
			return
		}

		switch msg.Type {
		case "compute":
			h.handleCompute(ctx, conn, buildingID, msg)
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *LiveHandler) handleCompute(ctx context.Context, conn *websocket.Conn, buildingID string, msg ClientMessage) {
	start := time.Now()

	var req engine.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid compute data")
		return
	}

	res, err := h.svc.Live(ctx, buildingID, req)
	if err != nil {
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			h.send(ctx, conn, ServerMessage{
				Type:      "validation",
				RequestID: msg.ID,
				Data:      ValidationData{Problems: ve.Report()},
			})
			return
		}
		h.sendError(ctx, conn, msg.ID, "compute_error", err.Error())
		return
	}

	h.send(ctx, conn, ServerMessage{
		Type:      "result",
		RequestID: msg.ID,
		Data:      ResultData{Result: res, Elapsed: time.Since(start).String()},
	})
}

func (h *LiveHandler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.log.Warn().Err(err).Msg("live: write error")
	}
}

func (h *LiveHandler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
