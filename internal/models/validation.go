package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation errors.
var (
	ErrEmptyBody       = errors.New("message body is empty")
	ErrBodyTooLong     = errors.New("message body exceeds maximum length")
	ErrMissingRoomID   = errors.New("room id is required")
	ErrMissingID       = errors.New("message id is required")
	ErrMissingUsername = errors.New("username is required")
	ErrMissingEmoji    = errors.New("emoji is required")
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors aggregates multiple validation failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Add records a validation error for a field.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	var nested *ValidationErrors
	if errors.As(err, &nested) {
		for _, sub := range nested.Errors {
			v.Errors = append(v.Errors, ValidationError{
				Field:   joinField(field, sub.Field),
				Message: sub.Message,
				Cause:   sub.Cause,
			})
		}
		return
	}
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: err.Error(), Cause: err})
}

// Err returns nil if there are no errors.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.Errors))
	for _, err := range v.Errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// Is allows errors.Is to match nested causes.
func (v *ValidationErrors) Is(target error) bool {
	if v == nil {
		return false
	}
	for _, err := range v.Errors {
		if err.Cause != nil && errors.Is(err.Cause, target) {
			return true
		}
	}
	return false
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}

// OutgoingMessage is a send request before it reaches the server.
type OutgoingMessage struct {
	ID          string
	RoomID      string
	Body        string
	Attachments []Attachment
}

// Validate checks an outgoing message. maxLength <= 0 disables the length check.
func (o OutgoingMessage) Validate(maxLength int) error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(o.RoomID) == "" {
		validation.Add("room_id", ErrMissingRoomID)
	}
	if strings.TrimSpace(o.Body) == "" && len(o.Attachments) == 0 {
		validation.Add("body", ErrEmptyBody)
	}
	if maxLength > 0 && utf8.RuneCountInString(o.Body) > maxLength {
		validation.Add("body", ErrBodyTooLong)
	}
	return validation.Err()
}

// ValidateEdit checks an edit request.
func ValidateEdit(roomID, messageID, body string, maxLength int) error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(roomID) == "" {
		validation.Add("room_id", ErrMissingRoomID)
	}
	if strings.TrimSpace(messageID) == "" {
		validation.Add("message_id", ErrMissingID)
	}
	if strings.TrimSpace(body) == "" {
		validation.Add("body", ErrEmptyBody)
	}
	if maxLength > 0 && utf8.RuneCountInString(body) > maxLength {
		validation.Add("body", ErrBodyTooLong)
	}
	return validation.Err()
}
