package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lindenhof = "../../internal/snapshotfile/testdata/lindenhof.yaml"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "opcost.db")+"?_pragma=foreign_keys(1)")
	// Flags keep their values between executions of the shared root command.
	computeCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompute_Preview(t *testing.T) {
	out, err := run(t, "compute", "--file", lindenhof)
	require.NoError(t, err)

	var got struct {
		File      string `json:"file"`
		Statement struct {
			Status         string `json:"status"`
			TotalAllocated string `json:"total_allocated"`
		} `json:"statement"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "draft", got.Statement.Status)
	assert.Equal(t, "1665", got.Statement.TotalAllocated)
}

func TestCompute_Rejected(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
building: {id: b1}
units: [{id: u1}]
categories: [{id: heat, main: Heating, default_key: area_weighted}]
cost_entries: [{id: e1, category_id: heat, building_id: b1, date: "2023-02-01", amount: "10"}]
request:
  start: "2023-01-01"
  end: "2023-12-31"
  pools: [{category_id: heat}]
`), 0o644))

	out, err := run(t, "compute", "--file", bad)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, out, "MISSING_AREA")
}

func TestCompute_Finalize(t *testing.T) {
	out, err := run(t, "compute", "--file", lindenhof, "--finalize", "--actor", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)
	assert.Contains(t, out, `"created_by": "alice"`)
}
