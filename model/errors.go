package model

import (
	"errors"
	"net/http"
)

var (
	// ErrEmptyAudio is returned before any provider call when a recording has no data.
	ErrEmptyAudio = &ValidationError{Message: "audio data is empty"}

	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
)

// ValidationError is a bad input: a missing field or a wrong method.
type ValidationError struct {
	Message string
	Status  int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusBadRequest
}

// ProviderError means the provider answered and rejected the call. Message is
// the provider's own message when it sent one.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) StatusCode() int {
	return http.StatusInternalServerError
}

// NetworkError is a transport failure before the provider produced an answer.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) StatusCode() int {
	return http.StatusInternalServerError
}

// DeviceError wraps ErrPermissionDenied or ErrDeviceUnavailable.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return "audio device error"
	}
	return e.Err.Error()
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func (e *DeviceError) StatusCode() int {
	return http.StatusServiceUnavailable
}

// StatusCode maps any error to the HTTP status the proxy answers with.
func StatusCode(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text surfaced to clients. Unclassified errors get a
// generic message so internals do not leak.
func PublicMessage(err error) string {
	var (
		verr *ValidationError
		perr *ProviderError
		nerr *NetworkError
		derr *DeviceError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &perr):
		return perr.Message
	case errors.As(err, &nerr):
		return "Failed to reach the AI provider"
	case errors.As(err, &derr):
		return derr.Error()
	default:
		return "Internal server error"
	}
}
