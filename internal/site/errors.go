package site

import (
	"errors"
	"fmt"
)

// Sentinel errors, use with errors.Is.
var (
	ErrNotFound            = errors.New("site: not found")
	ErrAlreadyExists       = errors.New("site: already exists")
	ErrInvalidName         = errors.New("site: invalid name")
	ErrUnsupportedSiteType = errors.New("site: unsupported site type")
	ErrMissingParent       = errors.New("site: apartment requires a parent building")
	ErrParentNotFound      = errors.New("site: parent building not found")
	ErrInvalidParent       = errors.New("site: invalid parent")
	ErrDataIntegrity       = errors.New("site: data integrity violation")
)

// DataIntegrityError reports a unique name shared by several rows. It should
// never happen while Create enforces uniqueness, so callers surface it
// rather than recover.
type DataIntegrityError struct {
	Name  string
	Count int
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("site: %d rows share the unique name %q", e.Count, e.Name)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// UnsupportedSiteTypeError reports a site type with no handling.
type UnsupportedSiteTypeError struct {
	Type Type
}

func (e *UnsupportedSiteTypeError) Error() string {
	return fmt.Sprintf("site: unsupported site type %q", string(e.Type))
}

func (e *UnsupportedSiteTypeError) Unwrap() error { return ErrUnsupportedSiteType }

// IsClientError reports whether err comes from bad caller input that can be
// shown to a user and retried with different arguments.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrMissingParent) ||
		errors.Is(err, ErrParentNotFound) ||
		errors.Is(err, ErrInvalidParent) ||
		errors.Is(err, ErrUnsupportedSiteType)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
