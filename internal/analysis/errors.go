package analysis

import (
	"errors"
	"fmt"
)

// ErrValidation is returned when a request carries neither image nor text
var ErrValidation = errors.New("provide at least one of image or text")

// ErrConfiguration is returned when the model client cannot be built
var ErrConfiguration = errors.New("generative model is not configured")

// UpstreamModelError wraps any failure of the generative model call
type UpstreamModelError struct {
	Model string
	Err   error
}

func (e *UpstreamModelError) Error() string {
	return fmt.Sprintf("gemini request failed (model %s): %v", e.Model, e.Err)
}

func (e *UpstreamModelError) Unwrap() error {
	return e.Err
}
