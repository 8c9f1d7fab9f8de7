package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Parameter/input domain violations (fatal for the operation)
	ErrInvalidParameter = errors.New("parameter outside mathematical domain")
	ErrInvalidInput     = errors.New("invalid input data")

	// Series structure errors
	ErrAlignment = errors.New("series misaligned")
	ErrSeriesGap = fmt.Errorf("%w: gap in period index", ErrInvalidInput)
	ErrDuplicate = fmt.Errorf("%w: duplicate period", ErrInvalidInput)

	// Optimizer errors
	ErrConstraintInfeasible = errors.New("constraints infeasible")

	// Iterative method outcome (soft: best-found state travels with it)
	ErrNonConvergence = errors.New("did not converge within iteration budget")

	// Not found errors
	ErrNotFound      = errors.New("resource not found")
	ErrModelNotFound = fmt.Errorf("%w: fitted model", ErrNotFound)
	ErrPlanNotFound  = fmt.Errorf("%w: allocation plan", ErrNotFound)
)

// Error constructors with context
func NewInvalidParameter(name string, value float64, domain string) error {
	return fmt.Errorf("%w: %s=%g, expected %s", ErrInvalidParameter, name, value, domain)
}

func NewInvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func NewAlignmentError(what string, wantLen, gotLen int) error {
	return fmt.Errorf("%w: %s has length %d, expected %d", ErrAlignment, what, gotLen, wantLen)
}

func NewPeriodMismatchError(what, wantStart, gotStart string) error {
	return fmt.Errorf("%w: %s starts at %s, expected %s", ErrAlignment, what, gotStart, wantStart)
}

func NewInfeasibleError(bound string, limit, actual float64) error {
	return fmt.Errorf("%w: %s (limit %g, got %g)", ErrConstraintInfeasible, bound, limit, actual)
}

func NewNonConvergence(method string, iterations int, lastDelta float64) error {
	return fmt.Errorf("%w: %s stopped after %d iterations (last delta %g)", ErrNonConvergence, method, iterations, lastDelta)
}

// Error checking helpers
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsAlignmentError(err error) bool {
	return errors.Is(err, ErrAlignment)
}

func IsInfeasible(err error) bool {
	return errors.Is(err, ErrConstraintInfeasible)
}

func IsNonConvergence(err error) bool {
	return errors.Is(err, ErrNonConvergence)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
