// Package domain contains entities without logic, just meta-data and input rules.
package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Lengths count characters, not bytes.
const (
	MaxRoomNameLen    = 128
	DefaultMaxNameLen = 64
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNameTooLong    = errors.New("name too long")
)

// InvalidRequest reports a malformed inbound message. It matches ErrInvalidRequest.
type InvalidRequest struct {
	Field  string
	Reason string
}

func (e *InvalidRequest) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func (e *InvalidRequest) Is(target error) bool { return target == ErrInvalidRequest }

func Invalid(field, reason string) error {
	return &InvalidRequest{Field: field, Reason: reason}
}

// ValidateRoom rejects empty or oversized room keys before they reach the registry.
func ValidateRoom(room RoomName) error {
	if room == "" {
		return Invalid("room", "is required")
	}
	if utf8.RuneCountInString(string(room)) > MaxRoomNameLen {
		return Invalid("room", "is too long")
	}
	return nil
}

func ValidateName(name string, maxLen int) error {
	if name == "" {
		return Invalid("name", "is required")
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return fmt.Errorf("%w: %w", &InvalidRequest{Field: "name", Reason: "is too long"}, ErrNameTooLong)
	}
	return nil
}
