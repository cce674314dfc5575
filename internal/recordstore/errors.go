package recordstore

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, use with errors.Is.
var (
	ErrNotFound         = errors.New("recordstore: table not found")
	ErrAlreadyExists    = errors.New("recordstore: table already exists")
	ErrEmptySchema      = errors.New("recordstore: empty schema")
	ErrUnknownField     = errors.New("recordstore: unknown field")
	ErrIncompleteRecord = errors.New("recordstore: incomplete record")
	ErrParse            = errors.New("recordstore: malformed table file")
	ErrPersistence      = errors.New("recordstore: persistence failure")
)

// NotFoundError reports a table file that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("recordstore: table %s not found", e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnknownFieldError reports a field name that is not part of the table schema.
type UnknownFieldError struct {
	Path  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("recordstore: field %q does not exist in %s", e.Field, e.Path)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// IncompleteRecordError reports schema fields a record left out.
type IncompleteRecordError struct {
	Path    string
	Missing []string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("recordstore: record for %s is missing fields %s", e.Path, strings.Join(e.Missing, ", "))
}

func (e *IncompleteRecordError) Unwrap() error { return ErrIncompleteRecord }

// ParseError reports a table file that could not be decoded. Line is 1-based,
// zero when the problem is not tied to a single line.
type ParseError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "recordstore: parsing " + e.Path
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// PersistenceError wraps a filesystem failure while reading or writing a table.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("recordstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// IsNotFound reports whether err means a table has not been created yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSchemaViolation reports whether err is a caller bug against a table schema.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrIncompleteRecord) ||
		errors.Is(err, ErrEmptySchema)
}
