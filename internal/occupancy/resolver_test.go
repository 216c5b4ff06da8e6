package occupancy

import (
	"errors"
	"testing"
	"time"

	"github.com/matthewbaird/opcost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func year2024(t *testing.T) types.Period {
	t.Helper()
	p, err := types.ParsePeriod("2024-01-01", "2024-12-31")
	require.NoError(t, err)
	return p
}

func contract(id, unit, start string, end *time.Time, occupants int) types.LeaseContract {
	return types.LeaseContract{
		ID:        id,
		TenantID:  "tenant-" + id,
		UnitID:    unit,
		Term:      types.DateRange{Start: day(start), End: end},
		Occupants: occupants,
	}
}

func TestResolve_FullPeriodContract(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2020-05-01", nil, 2),
	})
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, KindLeased, ivs[0].Kind)
	assert.Equal(t, "c1", ivs[0].Key)
	assert.Equal(t, p.Start, ivs[0].Start)
	assert.Equal(t, p.End, ivs[0].End)
	assert.Equal(t, 366, ivs[0].Days())
	assert.Equal(t, 2, ivs[0].Occupants)
}

func TestResolve_NoContractsIsOneVacancy(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, nil)
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, KindVacant, ivs[0].Kind)
	assert.Equal(t, "vacant:u1:2024-01-01", ivs[0].Key)
	assert.Equal(t, 0, ivs[0].Occupants)
	assert.NoError(t, VerifyPartition(p, ivs))
}

func TestResolve_MoveOutThenVacancy(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2023-03-01", dayPtr("2024-04-09"), 1),
	})
	require.NoError(t, err)
	require.Len(t, ivs, 2)

	assert.Equal(t, KindLeased, ivs[0].Kind)
	assert.Equal(t, 100, ivs[0].Days())
	assert.Equal(t, KindVacant, ivs[1].Kind)
	assert.Equal(t, day("2024-04-10"), ivs[1].Start)
	assert.Equal(t, 266, ivs[1].Days())
	assert.NoError(t, VerifyPartition(p, ivs))
}

func TestResolve_GapsBetweenTenancies(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		// Deliberately unsorted.
		contract("c2", "u1", "2024-07-01", dayPtr("2024-10-31"), 3),
		contract("c1", "u1", "2024-02-01", dayPtr("2024-05-31"), 1),
	})
	require.NoError(t, err)

	kinds := make([]Kind, len(ivs))
	for i, iv := range ivs {
		kinds[i] = iv.Kind
	}
	assert.Equal(t, []Kind{KindVacant, KindLeased, KindVacant, KindLeased, KindVacant}, kinds)
	assert.Equal(t, "c1", ivs[1].ContractID)
	assert.Equal(t, "c2", ivs[3].ContractID)
	assert.Equal(t, day("2024-06-30"), ivs[2].End)
	assert.NoError(t, VerifyPartition(p, ivs))

	total := 0
	for _, iv := range ivs {
		total += iv.Days()
	}
	assert.Equal(t, p.Days(), total)
}

func TestResolve_AdjacentContractsLeaveNoVacancy(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2022-01-01", dayPtr("2024-06-30"), 1),
		contract("c2", "u1", "2024-07-01", nil, 2),
	})
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.True(t, ivs[0].Leased())
	assert.True(t, ivs[1].Leased())
	assert.NoError(t, VerifyPartition(p, ivs))
}

func TestResolve_IgnoresContractsOutsidePeriodAndOtherUnits(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("old", "u1", "2019-01-01", dayPtr("2023-12-31"), 1),
		contract("future", "u1", "2025-01-01", nil, 1),
		contract("other", "u2", "2024-01-01", nil, 1),
	})
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, KindVacant, ivs[0].Kind)
}

func TestResolve_SingleDayContractOnBoundary(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2024-12-31", dayPtr("2024-12-31"), 1),
	})
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.Equal(t, 365, ivs[0].Days())
	assert.Equal(t, 1, ivs[1].Days())
	assert.NoError(t, VerifyPartition(p, ivs))
}

func TestResolve_OverlapIsFatal(t *testing.T) {
	p := year2024(t)
	ivs, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2024-01-01", dayPtr("2024-06-30"), 1),
		contract("c2", "u1", "2024-06-15", nil, 2),
	})
	require.Error(t, err)
	assert.Nil(t, ivs)

	var oe *OverlapError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "u1", oe.UnitID)
	assert.Equal(t, "c1", oe.ContractA)
	assert.Equal(t, "c2", oe.ContractB)
	assert.Equal(t, day("2024-06-15"), oe.From)
	assert.Equal(t, day("2024-06-30"), oe.To)
}

func TestResolve_OverlapWithLongRunningContract(t *testing.T) {
	// c1 spans everything; c3 only overlaps c1, not its direct predecessor c2.
	p := year2024(t)
	_, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2024-01-01", nil, 1),
		contract("c2", "u1", "2024-02-01", dayPtr("2024-02-10"), 1),
		contract("c3", "u1", "2024-05-01", dayPtr("2024-05-10"), 1),
	})
	require.Error(t, err)

	var overlaps int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var oe *OverlapError
		if errors.As(e, &oe) {
			overlaps++
			assert.Equal(t, "c1", oe.ContractA)
		}
	}
	assert.Equal(t, 2, overlaps)
}

func TestResolve_TouchingOnSameDayOverlaps(t *testing.T) {
	p := year2024(t)
	_, err := Resolve("u1", p, []types.LeaseContract{
		contract("c1", "u1", "2024-01-01", dayPtr("2024-06-30"), 1),
		contract("c2", "u1", "2024-06-30", nil, 1),
	})
	var oe *OverlapError
	assert.True(t, errors.As(err, &oe))
}

func TestResolve_InvertedContract(t *testing.T) {
	p := year2024(t)
	_, err := Resolve("u1", p, []types.LeaseContract{
		contract("bad", "u1", "2024-05-01", dayPtr("2024-04-01"), 1),
	})
	var re *ContractRangeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "bad", re.ContractID)
}

func TestResolveAll_KeepsUnitOrderAndCollectsErrors(t *testing.T) {
	p := year2024(t)
	contracts := []types.LeaseContract{
		contract("a1", "ua", "2024-01-01", nil, 1),
		contract("b1", "ub", "2024-03-01", nil, 1),
	}
	ivs, err := ResolveAll([]string{"ub", "ua"}, p, contracts)
	require.NoError(t, err)
	require.Len(t, ivs, 3)
	assert.Equal(t, "ub", ivs[0].UnitID)
	assert.Equal(t, "ua", ivs[2].UnitID)
	assert.NoError(t, VerifyPartition(p, ivs))

	contracts = append(contracts,
		contract("a2", "ua", "2024-02-01", nil, 1),
		contract("b2", "ub", "2024-04-01", nil, 1),
	)
	ivs, err = ResolveAll([]string{"ua", "ub"}, p, contracts)
	assert.Nil(t, ivs)
	var oe *OverlapError
	assert.True(t, errors.As(err, &oe))
	assert.Contains(t, err.Error(), "unit ua")
	assert.Contains(t, err.Error(), "unit ub")
}

func TestVerifyPartition_DetectsGap(t *testing.T) {
	p := year2024(t)
	ivs := []Interval{
		{Key: "x", UnitID: "u1", Start: day("2024-01-01"), End: day("2024-03-31")},
		{Key: "y", UnitID: "u1", Start: day("2024-04-02"), End: day("2024-12-31")},
	}
	assert.Error(t, VerifyPartition(p, ivs))
}
