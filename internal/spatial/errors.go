package spatial

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the outcome of building a loop.
type ErrorKind int

// Loop build outcomes. The numeric values are stable and exposed through the
// HTTP API and metrics labels.
const (
	Success ErrorKind = iota
	Failure
	OuterCurvature
	InnerCurvature
	TooFewVertices
)

// String returns a label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case OuterCurvature:
		return "outer_curvature"
	case InnerCurvature:
		return "inner_curvature"
	case TooFewVertices:
		return "too_few_vertices"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinel errors for loop construction.
var (
	ErrInvalidLoop      = errors.New("invalid loop")
	ErrOuterCurvature   = errors.New("outer loop must be clockwise")
	ErrInnerCurvature   = errors.New("inner loop must be counter-clockwise")
	ErrTooFewVertices   = errors.New("too few vertices")
	ErrEmptyPolygon     = errors.New("polygon has no loops")
	ErrNoOuterLoop      = errors.New("polygon has no outer loop")
	ErrPolygonCommitted = errors.New("polygon already committed")
)

// LoopError is returned by BuildLoop.
type LoopError struct {
	Kind      ErrorKind
	Vertices  int     // number of input points
	Curvature float64 // turning angle, set for curvature errors
	Err       error   // underlying validation error, if any
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	switch e.Kind {
	case OuterCurvature, InnerCurvature:
		return fmt.Sprintf("loop %s: curvature %.6f over %d vertices", e.Kind, e.Curvature, e.Vertices)
	}
	if e.Err != nil {
		return fmt.Sprintf("loop %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("loop %s: %d vertices", e.Kind, e.Vertices)
}

// Unwrap returns the sentinel matching the kind, joined with the validation
// error when present.
func (e *LoopError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *LoopError) sentinel() error {
	switch e.Kind {
	case OuterCurvature:
		return ErrOuterCurvature
	case InnerCurvature:
		return ErrInnerCurvature
	case TooFewVertices:
		return ErrTooFewVertices
	default:
		return ErrInvalidLoop
	}
}

// KindOf returns the ErrorKind carried by err. A nil error is Success and
// any error that is not a LoopError is Failure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return Success
	}
	var le *LoopError
	if errors.As(err, &le) {
		return le.Kind
	}
	return Failure
}
