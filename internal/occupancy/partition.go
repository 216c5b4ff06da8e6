package occupancy

import (
	"fmt"

	"github.com/matthewbaird/opcost/internal/types"
)

// VerifyPartition checks that the intervals of each unit, in the order
// given, tile period exactly: the first starts on period.Start, each next one
// starts the day after its predecessor ends, and the last ends on
// period.End.
func VerifyPartition(period types.Period, intervals []Interval) error {
	byUnit := make(map[string][]Interval)
	var order []string
	for _, iv := range intervals {
		if _, seen := byUnit[iv.UnitID]; !seen {
			order = append(order, iv.UnitID)
		}
		byUnit[iv.UnitID] = append(byUnit[iv.UnitID], iv)
	}
	for _, unitID := range order {
		ivs := byUnit[unitID]
		expect := period.Start
		for _, iv := range ivs {
			if !iv.Start.Equal(expect) {
				return fmt.Errorf("unit %s: interval %s starts %s, want %s",
					unitID, iv.Key, iv.Start.Format(types.DateLayout), expect.Format(types.DateLayout))
			}
			if iv.End.Before(iv.Start) {
				return fmt.Errorf("unit %s: interval %s is empty", unitID, iv.Key)
			}
			expect = iv.End.AddDate(0, 0, 1)
		}
		if last := ivs[len(ivs)-1]; !last.End.Equal(period.End) {
			return fmt.Errorf("unit %s: intervals end %s, want %s",
				unitID, last.End.Format(types.DateLayout), period.End.Format(types.DateLayout))
		}
	}
	return nil
}
