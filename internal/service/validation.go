package service

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

var (
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrFunctionFailed          = errors.New("identity function failed")
)

// ValidationError carries per-field messages collected before any write.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func newValidation() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add keeps the first message recorded for a field.
func (e *ValidationError) add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// DeleteBlockedError is returned when a delete guard refuses the operation.
type DeleteBlockedError struct {
	ID     string
	Reason string
}

func (e *DeleteBlockedError) Error() string {
	return fmt.Sprintf("cannot delete %s: %s", e.ID, e.Reason)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
