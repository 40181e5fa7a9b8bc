// Package apperrors defines the error kinds surfaced by the registry and
// their HTTP mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindPermission
	KindConflict
	KindNotFound
)

// Error is a domain error carrying optional per-field messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	cause   error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func (e *Error) Unwrap() error { return e.cause }

// Add appends a message for field and returns the receiver.
func (e *Error) Add(field, message string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// HasFields reports whether any field message has been collected.
func (e *Error) HasFields() bool { return len(e.Fields) > 0 }

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// FieldError is a validation error for a single field.
func FieldError(field, message string) *Error {
	return Validation("validation failed").Add(field, message)
}

func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "authentication required"}
}

// Forbidden never names the object so callers cannot probe existence.
func Forbidden() *Error {
	return &Error{Kind: KindPermission, Message: "permission denied"}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// KindOf returns the kind of err, KindInternal for unknown errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindConflict
	}
	return KindInternal
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// FromDB translates gorm sentinel errors into domain errors.
func FromDB(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: what + " not found", cause: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: what + " violates a uniqueness constraint", cause: err}
	}
	return err
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Fields returns the per-field messages of err, if any.
func Fields(err error) map[string][]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
