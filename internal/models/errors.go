package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid payment request")
	ErrUnknownProduct = errors.New("product not offered by session")
)

type FailureReason string

const (
	FailureTransport FailureReason = "transport"
	FailureTimeout   FailureReason = "timeout"
	FailureStatus    FailureReason = "status"
	FailureMalformed FailureReason = "malformed"
	FailureRejected  FailureReason = "rejected"
)

// SessionCreationError describes why a remote session could not be created.
type SessionCreationError struct {
	Reason     FailureReason
	StatusCode int
	Detail     string
	Err        error
}

func (e *SessionCreationError) Error() string {
	msg := "session creation failed: " + string(e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionCreationError) Unwrap() error {
	return e.Err
}

type InvalidStateError struct {
	Op    string
	State SessionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

// MissingResultError is reported when the checkout result carrier arrives empty.
type MissingResultError struct {
	Reason string
}

func (e *MissingResultError) Error() string {
	if e.Reason == "" {
		return "checkout result is missing"
	}
	return "checkout result is missing: " + e.Reason
}
