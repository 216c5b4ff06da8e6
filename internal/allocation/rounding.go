package allocation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CentPlaces is the presentation precision of money.
const CentPlaces int32 = 2

// RoundLargestRemainder rounds exact shares to places decimals so that the
// rounded values sum to the rounded sum of the exact values. Every share is
// floored first; the leftover units go one each to the shares with the
// largest remainders, ties to the lower index.
func RoundLargestRemainder(exact []decimal.Decimal, places int32) []decimal.Decimal {
	out := make([]decimal.Decimal, len(exact))
	if len(exact) == 0 {
		return out
	}

	type remainder struct {
		index int
		frac  decimal.Decimal
	}
	rems := make([]remainder, len(exact))
	sum, floorSum := decimal.Zero, decimal.Zero
	for i, v := range exact {
		f := v.RoundFloor(places)
		out[i] = f
		sum = sum.Add(v)
		floorSum = floorSum.Add(f)
		rems[i] = remainder{index: i, frac: v.Sub(f)}
	}

	unit := decimal.New(1, -places)
	leftover := sum.Round(places).Sub(floorSum).Div(unit).IntPart()
	if leftover <= 0 {
		return out
	}
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac.GreaterThan(rems[b].frac)
	})
	for k := 0; k < int(leftover) && k < len(rems); k++ {
		i := rems[k].index
		out[i] = out[i].Add(unit)
	}
	return out
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
