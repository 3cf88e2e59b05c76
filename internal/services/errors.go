package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

// ValidationError lists the offending fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+v.Fields[name])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (v *ValidationError) Is(target error) bool { return target == ErrValidation }

func (v *ValidationError) add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = msg
}

func (v *ValidationError) orNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

// denial carries a user-facing message while still matching its sentinel.
type denial struct {
	kind error
	msg  string
}

func (d *denial) Error() string { return d.msg }
func (d *denial) Unwrap() error { return d.kind }

func forbidden(msg string) error { return &denial{kind: ErrForbidden, msg: msg} }
func notFound(msg string) error  { return &denial{kind: ErrNotFound, msg: msg} }
func conflict(msg string) error  { return &denial{kind: ErrConflict, msg: msg} }

func invalid(field, msg string) error {
	v := &ValidationError{}
	v.add(field, msg)
	return v
}
