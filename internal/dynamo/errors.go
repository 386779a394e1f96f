package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrNonPositiveMass indicates an entity whose mass would reach a division as zero or negative.
	ErrNonPositiveMass = errors.New("dynamo: mass must be strictly positive")

	// ErrIndexOutOfRange is the panic value for entity access past the live length.
	ErrIndexOutOfRange = errors.New("dynamo: entity index out of range")

	// ErrCapacity indicates an insert into a store that is already full.
	ErrCapacity = errors.New("dynamo: store at capacity")

	// ErrInvalidState indicates a position or velocity became NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownParam indicates a parameter name that Params does not carry.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    uint64
	Index   int
	Wrapped error
}

func (e *SimulationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
	}
	return fmt.Sprintf("step %d, entity %d: %v", e.Step, e.Index, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
