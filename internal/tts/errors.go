package tts

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when there is nothing to synthesize
var ErrEmptyText = errors.New("text cannot be empty")

// CredentialError means a fresh access token could not be obtained
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("failed to obtain access token: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// MalformedResponseError means the provider answered without usable audio.
// It is never retried.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed tts response: " + e.Reason
}

// SynthesisError is returned once the bounded attempt sequence is spent
type SynthesisError struct {
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// transportError is any network failure or non-2xx answer from the provider
type transportError struct {
	Status int
	Body   string
	Err    error
}

func (e *transportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tts request failed: %v", e.Err)
	}
	return fmt.Sprintf("tts request failed with status %d: %s", e.Status, e.Body)
}

func (e *transportError) Unwrap() error { return e.Err }
