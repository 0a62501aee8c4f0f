package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidForm        = errors.New("invalid form")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FormError carries the per-field messages shown next to the form inputs.
// It unwraps to ErrInvalidForm or ErrInvalidCredentials.
type FormError struct {
	Fields map[string]string
	cause  error
}

func newFormError(cause error, fields map[string]string) *FormError {
	return &FormError{
		Fields: fields,
		cause:  cause,
	}
}

func (e *FormError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", e.cause, strings.Join(fields, ", "))
}

func (e *FormError) Unwrap() error {
	return e.cause
}
