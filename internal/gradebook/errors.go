package gradebook

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrDependencyUnavailable = errors.New("dependency unavailable")

// DependencyError reports a failed collaborator call.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependencyUnavailable }

func dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DependencyError{Op: op, Err: err}
}
