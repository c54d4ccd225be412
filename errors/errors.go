// Package errors exports the error taxonomy raised by module generation,
// without pulling in the serialization machinery a networked service
// would need.
package errors

import (
	stderrors "errors"
)

// ErrCancelled is returned by generator operations that observe the
// cooperative cancellation flag: at a batch launch and at FinishModule's
// entry.
var ErrCancelled = stderrors.New("module generation cancelled")

// PublicError is an error with a safe-to-expose summary distinct from its
// internal Error() text, which may include details not meant to cross a
// trust boundary.
type PublicError interface {
	error
	PublicError() string
}

// ModuleError indicates that the error is caused by an unsupported or
// malformed module: a bad import signature, a table index out of range, an
// element segment that doesn't fit. It may wrap an underlying error.
type ModuleError interface {
	PublicError
	ModuleError()
}

// ResourceLimit indicates that the error is caused by exceeding a
// configured or architectural limit: a code buffer size cap, the maximum
// branch range, the global-data region overflowing its offset type. It may
// wrap an underlying error.
type ResourceLimit interface {
	PublicError
	ResourceLimit()
}

type publicError struct {
	s       string
	public  string
	wrapped error
}

func (e *publicError) Error() string       { return e.s }
func (e *publicError) PublicError() string { return e.public }
func (e *publicError) Unwrap() error       { return e.wrapped }

// NewPublicError constructs a PublicError whose internal and public text
// are the same.
func NewPublicError(s string) error {
	return &publicError{s: s, public: s}
}

type moduleError struct {
	publicError
}

func (*moduleError) ModuleError() {}

// NewModuleError constructs a ModuleError. wrapped may be nil.
func NewModuleError(s string, wrapped error) error {
	return &moduleError{publicError{s: s, public: s, wrapped: wrapped}}
}

type resourceLimit struct {
	publicError
}

func (*resourceLimit) ResourceLimit() {}

// NewResourceLimit constructs a ResourceLimit. wrapped may be nil.
func NewResourceLimit(s string, wrapped error) error {
	return &resourceLimit{publicError{s: s, public: s, wrapped: wrapped}}
}
