// ABOUTME: Response envelope and structured error type shared by every tool.
// ABOUTME: Domain failures travel as data, never as Go errors across the tool boundary.

package tools

import (
	"fmt"
	"time"
)

// Envelope is the uniform result of every tool call.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries request correlation data on successful responses.
type Meta struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is a structured domain error with a stable machine-readable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a domain error with a formatted message.
func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// OK wraps data in a successful envelope.
func OK(data any, requestID string, ts time.Time) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{RequestID: requestID, Timestamp: ts},
	}
}

// Fail wraps a domain error in a failure envelope.
func Fail(err *Error) Envelope {
	return Envelope{Success: false, Error: err}
}
