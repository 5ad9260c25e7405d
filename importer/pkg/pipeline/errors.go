package pipeline

import (
	"errors"
	"fmt"
)

// ErrMapperRequired is returned when a non-first version reaches the mapping
// flow without a mapper configured.
var ErrMapperRequired = errors.New("a mapper is required to import a non-first data set version")

// LinkCountError reports a mismatch between the options discovered for a
// dimension and the links stored for it. This is a consistency bug, not a
// data problem, and must never be silently tolerated.
type LinkCountError struct {
	Dimension string
	Expected  int64
	Actual    int64
}

func (e *LinkCountError) Error() string {
	return fmt.Sprintf("dimension %q: expected %d option links, found %d", e.Dimension, e.Expected, e.Actual)
}
