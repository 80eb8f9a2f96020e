package errors

import (
	"errors"
	"fmt"
)

var ErrInvalid = errors.New("invalid")

// ValidationError describes a rejected request field. It matches ErrInvalid
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
