package snapshotfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/types"
)

func TestReadFile_Lindenhof(t *testing.T) {
	f, err := ReadFile("testdata/lindenhof.yaml")
	require.NoError(t, err)

	snap, err := f.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "b1", snap.Building.ID)
	assert.Equal(t, "04109", snap.Building.Address.PostalCode)
	require.Len(t, snap.Units, 2)
	assert.Equal(t, "b1", snap.Units[0].BuildingID)
	require.NotNil(t, snap.Units[0].Area)
	assert.True(t, snap.Units[0].Area.Equal(decimal.NewFromInt(60)))

	require.Len(t, snap.Contracts, 2)
	assert.Nil(t, snap.Contracts[0].Term.End)
	require.NotNil(t, snap.Contracts[1].Term.End)
	assert.Equal(t, "2023-06-30", snap.Contracts[1].Term.End.Format(types.DateLayout))

	assert.Equal(t, types.KeyPersonWeighted, snap.Categories[1].DefaultKey)
	assert.Equal(t, types.OriginInvoice, snap.CostEntries[0].Origin)
	assert.Equal(t, "2023-02-01", snap.AdvancePayments[1].PaymentMonth.Format(types.DateLayout))

	req, err := f.EngineRequest()
	require.NoError(t, err)
	assert.Equal(t, 365, req.Period.Days())
	require.Len(t, req.Pools, 2)
	assert.Empty(t, req.Pools[0].Key)
	require.Len(t, req.ManualEntries, 1)
	assert.Equal(t, types.OriginManualBooking, req.ManualEntries[0].Origin)
}

func TestReadFile_ComputesStatement(t *testing.T) {
	f, err := ReadFile("testdata/lindenhof.yaml")
	require.NoError(t, err)
	snap, err := f.Snapshot()
	require.NoError(t, err)
	req, err := f.EngineRequest()
	require.NoError(t, err)

	res, err := engine.Compute(snap, req, engine.Options{Currency: "EUR"})
	require.NoError(t, err)
	assert.True(t, res.Statement.PoolTotal.Equal(decimal.RequireFromString("1665")),
		"pool total = %s", res.Statement.PoolTotal)
	assert.True(t, res.Statement.TotalAllocated.Equal(res.Statement.PoolTotal))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing building", doc: "units: []\n"},
		{name: "unknown field", doc: "building: {id: b1}\nflats: []\n"},
		{name: "not yaml", doc: "building: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSnapshot_BadValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "area", doc: "building: {id: b1}\nunits: [{id: u1, area: big}]\n"},
		{name: "contract date", doc: "building: {id: b1}\ncontracts: [{id: c1, unit_id: u1, start: 2023/01/01}]\n"},
		{name: "key", doc: "building: {id: b1}\ncategories: [{id: x, main: X, default_key: by_mood}]\n"},
		{name: "amount", doc: "building: {id: b1}\ncost_entries: [{id: e1, category_id: x, date: \"2023-01-01\", amount: lots}]\n"},
		{name: "month", doc: "building: {id: b1}\nadvance_payments: [{id: p1, contract_id: c1, month: jan, amount: \"1\"}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(tt.doc))
			require.NoError(t, err)
			_, err = f.Snapshot()
			assert.Error(t, err)
		})
	}
}

func TestEngineRequest_Missing(t *testing.T) {
	f, err := Decode(strings.NewReader("building: {id: b1}\n"))
	require.NoError(t, err)
	_, err = f.EngineRequest()
	assert.True(t, errors.Is(err, ErrNoRequest))
}

func TestEngineRequest_DirectAllocations(t *testing.T) {
	doc := `
building: {id: b1}
request:
  start: "2023-01-01"
  end: "2023-12-31"
  pools: [{category_id: repairs, key: direct}]
  direct_allocations:
    repairs:
      c1: "100.50"
      "vacant:u2:2023-07-01": "20"
`
	f, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	req, err := f.EngineRequest()
	require.NoError(t, err)
	shares := req.DirectAllocations["repairs"]
	require.Len(t, shares, 2)
	assert.True(t, shares["c1"].Equal(decimal.RequireFromString("100.5")))
	assert.True(t, shares["vacant:u2:2023-07-01"].Equal(decimal.NewFromInt(20)))
}
