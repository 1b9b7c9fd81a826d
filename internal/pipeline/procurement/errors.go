package procurement

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBusinessDate = errors.New("business date is required")
	ErrEmptyMasterData     = errors.New("master data has no products or warehouses")
)

// StructuralError aborts a run. Data-quality problems are never structural;
// they become exception records instead.
type StructuralError struct {
	Stage string
	Err   error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

func structural(stage string, err error) error {
	return &StructuralError{Stage: stage, Err: err}
}

// IsStructural reports whether err aborted the run.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
