// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used to classify why a route message was not applied.
var (
	ErrMalformed     = errors.New("malformed message")
	ErrUnsupported   = errors.New("unsupported route")
	ErrInvalidRoute  = errors.New("invalid route")
	ErrNotConnected  = errors.New("transport not connected")
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidState  = errors.New("invalid state transition")
)

// DecodeError reports a message that could not be decoded: a truncated
// buffer or a missing mandatory attribute.
type DecodeError struct {
	What    string
	Details string
}

func (e *DecodeError) Error() string {
	msg := "malformed " + e.What
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// NewDecodeError creates a new decode error
func NewDecodeError(what, details string) *DecodeError {
	return &DecodeError{What: what, Details: details}
}

// UnsupportedError reports a well-formed route this engine does not handle.
type UnsupportedError struct {
	Route  string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported route %s: %s", e.Route, e.Reason)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewUnsupportedError creates a new unsupported-route error
func NewUnsupportedError(route, reason string) *UnsupportedError {
	return &UnsupportedError{Route: route, Reason: reason}
}

// RuleError reports a decoded route that violates a domain rule.
type RuleError struct {
	Route string
	Rule  string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("route %s rejected: %s", e.Route, e.Rule)
}

func (e *RuleError) Unwrap() error {
	return ErrInvalidRoute
}

// NewRuleError creates a new rule violation error
func NewRuleError(route, rule string) *RuleError {
	return &RuleError{Route: route, Rule: rule}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
