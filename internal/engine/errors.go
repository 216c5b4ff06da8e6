package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/types"
)

// Problem codes reported for blocking validation failures.
const (
	CodeOverlap            = "OVERLAP"
	CodeContractRange      = "CONTRACT_RANGE"
	CodeMissingArea        = "MISSING_AREA"
	CodeDirectMismatch     = "DIRECT_MISMATCH"
	CodeUnknownInterval    = "UNKNOWN_INTERVAL"
	CodeStrayDirect        = "STRAY_DIRECT_ALLOCATION"
	CodeUnknownPool        = "UNKNOWN_POOL"
	CodeNoSelection        = "NO_SELECTION"
	CodeUnknownCategory    = "UNKNOWN_CATEGORY"
	CodeDuplicateSelection = "DUPLICATE_SELECTION"
	CodeInvalidKey         = "INVALID_KEY"
	CodeManualEntry        = "MANUAL_ENTRY"
	CodeUnknownUnit        = "UNKNOWN_UNIT"
	CodeDuplicateUnit      = "DUPLICATE_UNIT"
	CodeNoUnits            = "NO_UNITS"
	CodeInvalidPeriod      = "INVALID_PERIOD"
	CodeInvalid            = "INVALID"
)

// NoSelectionError is returned when a statement is requested without any
// cost pool.
type NoSelectionError struct{}

func (e *NoSelectionError) Error() string { return "no cost pool selected" }

// NoUnitsError is returned when the building has no unit to allocate to.
type NoUnitsError struct {
	BuildingID string
}

func (e *NoUnitsError) Error() string {
	return fmt.Sprintf("building %s has no units to allocate costs to", e.BuildingID)
}

// UnknownUnitError reports a selected unit that does not belong to the
// building.
type UnknownUnitError struct {
	UnitID     string
	BuildingID string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unit %s does not belong to building %s", e.UnitID, e.BuildingID)
}

// DuplicateUnitError reports a unit selected twice.
type DuplicateUnitError struct {
	UnitID string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("unit %s selected more than once", e.UnitID)
}

// UnknownPoolError reports direct allocations for a pool that is not
// selected.
type UnknownPoolError struct {
	PoolID string
}

func (e *UnknownPoolError) Error() string {
	return fmt.Sprintf("direct allocations given for pool %s which is not selected", e.PoolID)
}

// ValidationError aggregates every blocking problem found while preparing a
// computation. No partial result accompanies it.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("validation failed with %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Problem is the wire form of one blocking problem.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report renders the problems with their codes, in detection order.
func (e *ValidationError) Report() []Problem {
	out := make([]Problem, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = Problem{Code: Code(p), Message: p.Error()}
	}
	return out
}

// Codes lists the problem codes in detection order.
func (e *ValidationError) Codes() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = Code(p)
	}
	return out
}

// Code classifies a blocking problem.
func Code(err error) string {
	var (
		overlap   *occupancy.OverlapError
		crange    *occupancy.ContractRangeError
		area      *allocation.MissingAreaError
		mismatch  *allocation.DirectAllocationMismatchError
		unknownIv *allocation.UnknownIntervalError
		stray     *allocation.StrayDirectAllocationError
		pool      *UnknownPoolError
		nosel     *NoSelectionError
		cat       *costpool.UnknownCategoryError
		dup       *costpool.DuplicateSelectionError
		key       *costpool.InvalidKeyError
		manual    *costpool.ManualEntryError
		unit      *UnknownUnitError
		dupUnit   *DuplicateUnitError
		noUnits   *NoUnitsError
	)
	switch {
	case errors.As(err, &overlap):
		return CodeOverlap
	case errors.As(err, &crange):
		return CodeContractRange
	case errors.As(err, &area):
		return CodeMissingArea
	case errors.As(err, &mismatch):
		return CodeDirectMismatch
	case errors.As(err, &unknownIv):
		return CodeUnknownInterval
	case errors.As(err, &stray):
		return CodeStrayDirect
	case errors.As(err, &pool):
		return CodeUnknownPool
	case errors.As(err, &nosel):
		return CodeNoSelection
	case errors.As(err, &cat):
		return CodeUnknownCategory
	case errors.As(err, &dup):
		return CodeDuplicateSelection
	case errors.As(err, &key):
		return CodeInvalidKey
	case errors.As(err, &manual):
		return CodeManualEntry
	case errors.As(err, &unit):
		return CodeUnknownUnit
	case errors.As(err, &dupUnit):
		return CodeDuplicateUnit
	case errors.As(err, &noUnits):
		return CodeNoUnits
	case errors.Is(err, types.ErrInvalidPeriod):
		return CodeInvalidPeriod
	}
	return CodeInvalid
}

// flatten expands errors.Join trees into their leaves.
func flatten(errs ...error) []error {
	var out []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			out = append(out, flatten(j.Unwrap()...)...)
			continue
		}
		out = append(out, err)
	}
	return out
}
