package ai

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("ai provider not configured")
	ErrEmptyResponse = errors.New("empty ai response")
)

// ExternalServiceError reports a failed call to an embedding or generation
// provider, including timeouts and malformed responses.
type ExternalServiceError struct {
	Op       string
	Provider string
	Model    string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s via %s (%s): %v", e.Op, e.Provider, e.Model, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
