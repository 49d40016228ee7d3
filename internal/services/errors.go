package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/clinic-service/internal/models"
	"github.com/SAP-F-2025/clinic-service/internal/validator"
)

// Common service errors
var (
	ErrValidationFailed = validator.ErrValidation
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)

// Login failures
var (
	ErrAuthFailed     = fmt.Errorf("authentication failed: %w", ErrUnauthorized)
	ErrProfileMissing = fmt.Errorf("user profile missing: %w", ErrForbidden)
	ErrAccountBlocked = fmt.Errorf("account blocked: %w", ErrForbidden)
	ErrRoleMismatch   = fmt.Errorf("role mismatch: %w", ErrForbidden)
)

// Session errors
var (
	ErrSessionExpired    = fmt.Errorf("session expired: %w", ErrUnauthorized)
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidView       = errors.New("view not available for role")
)

var (
	ErrStudentNotFound = fmt.Errorf("student %w", ErrNotFound)
	ErrStationNotFound = fmt.Errorf("station %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	ErrStudentExists = fmt.Errorf("student id already registered: %w", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", ErrConflict)

	ErrSubscription       = errors.New("room subscription failed")
	ErrRoomReleased       = errors.New("room released")
	ErrCodeSpaceExhausted = errors.New("could not generate an unused session code")
)

// NewValidationError builds a single-field validation error
func NewValidationError(field, message string, value interface{}) error {
	return validator.ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}

// SessionEndedError is returned for tokens whose session already closed
type SessionEndedError struct {
	Reason models.LogoutReason
}

func (e *SessionEndedError) Error() string {
	return fmt.Sprintf("session ended (%s)", e.Reason)
}

func (e *SessionEndedError) Unwrap() error {
	return ErrSessionExpired
}

// Notice is the text shown to the user, if any
func (e *SessionEndedError) Notice() string {
	if e.Reason == models.LogoutTimeout {
		return models.TimeoutNotice
	}
	return ""
}
