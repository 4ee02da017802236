package estimate

import "fmt"

// InvalidInputError reports job options the caller can correct: a
// non-positive diameter or length, or an unsupported pipe type.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// NoApplicableRuleError means the rate book has no unit-price rule for
// the requested pipe type and diameter. Valid input, unsupported
// configuration.
type NoApplicableRuleError struct {
	PipeType PipeType
	Diameter float64
}

func (e *NoApplicableRuleError) Error() string {
	return fmt.Sprintf("no unit-price rule for pipe type %q at diameter %.0fmm", e.PipeType, e.Diameter)
}

// DataIntegrityError means a unit-price rule references an item the price
// catalog does not contain. The rate book itself is inconsistent; not a
// caller problem.
type DataIntegrityError struct {
	ItemID string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("rule references item %q with no price entry", e.ItemID)
}
