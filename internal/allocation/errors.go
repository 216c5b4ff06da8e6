package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Warning codes.
const (
	WarnEmptyWeight = "EMPTY_WEIGHT"
	WarnEmptyPool   = "EMPTY_POOL"
)

// Warning is a non-blocking finding attached to a statement for operator
// review.
type Warning struct {
	Code    string          `json:"code"`
	PoolID  string          `json:"pool_id"`
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount"`
}

// EmptyWeightWarning flags a person-weighted pool with no occupants in scope.
// Amount is the total left unallocated.
func EmptyWeightWarning(poolID string, total decimal.Decimal) Warning {
	return Warning{
		Code:    WarnEmptyWeight,
		PoolID:  poolID,
		Message: fmt.Sprintf("pool %s: no occupants in scope, %s left unallocated", poolID, total.StringFixed(2)),
		Amount:  total,
	}
}

// EmptyPoolWarning flags a selected pool without eligible entries.
func EmptyPoolWarning(poolID string) Warning {
	return Warning{
		Code:    WarnEmptyPool,
		PoolID:  poolID,
		Message: fmt.Sprintf("pool %s has no eligible cost entries", poolID),
		Amount:  decimal.Zero,
	}
}

// MissingAreaError reports a selected unit without floor area while an
// area-weighted pool is selected.
type MissingAreaError struct {
	UnitID string
	PoolID string
}

func (e *MissingAreaError) Error() string {
	return fmt.Sprintf("unit %s has no floor area, required by area-weighted pool %s", e.UnitID, e.PoolID)
}

// DirectAllocationMismatchError reports a direct pool whose assigned amounts
// do not sum to its total within tolerance. Difference is assigned - total:
// negative is a shortfall, positive an excess.
type DirectAllocationMismatchError struct {
	PoolID     string
	Total      decimal.Decimal
	Assigned   decimal.Decimal
	Difference decimal.Decimal
}

func (e *DirectAllocationMismatchError) Error() string {
	if e.Difference.IsNegative() {
		return fmt.Sprintf("direct pool %s: assigned %s of %s, short by %s",
			e.PoolID, e.Assigned.StringFixed(2), e.Total.StringFixed(2), e.Difference.Neg().StringFixed(2))
	}
	return fmt.Sprintf("direct pool %s: assigned %s of %s, excess of %s",
		e.PoolID, e.Assigned.StringFixed(2), e.Total.StringFixed(2), e.Difference.StringFixed(2))
}

// UnknownIntervalError reports a direct assignment to an interval key that
// is not part of the statement's scope.
type UnknownIntervalError struct {
	PoolID      string
	IntervalKey string
}

func (e *UnknownIntervalError) Error() string {
	return fmt.Sprintf("direct pool %s: interval %s is not in scope", e.PoolID, e.IntervalKey)
}

// StrayDirectAllocationError reports direct assignments supplied for a pool
// that is not distributed directly.
type StrayDirectAllocationError struct {
	PoolID string
}

func (e *StrayDirectAllocationError) Error() string {
	return fmt.Sprintf("pool %s is not a direct pool but has direct assignments", e.PoolID)
}
