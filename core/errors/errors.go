// Package errors provides the error types shared by the score merge packages.
//
// Fatal conditions (usage, I/O, parse) surface as errors. Per-source
// conditions (structural mismatch, skipped compatibility checks, identifier
// collisions) are reported as data by the merge packages and only reach this
// package when a caller escalates them.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal indicates an internal invariant was violated
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrNoDocumentEntry indicates a container without a score entry
	ErrNoDocumentEntry = errors.New("no document entry")
)

// Kind classifies an error according to the merge error taxonomy.
type Kind int

const (
	// KindUnknown is an error outside the taxonomy.
	KindUnknown Kind = iota
	// KindUsage is a caller mistake detected before any I/O.
	KindUsage
	// KindIO is a read, write or parse failure of a container.
	KindIO
	// KindStructural is a staff layout mismatch between two documents.
	KindStructural
	// KindCompatibility is an instrumentation mismatch between two documents.
	KindCompatibility
	// KindCollision is an identifier collision. Never fatal on its own.
	KindCollision
	// KindInternal is a violated invariant inside the engine.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindIO:
		return "io"
	case KindStructural:
		return "structural"
	case KindCompatibility:
		return "compatibility"
	case KindCollision:
		return "collision"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MergeError is the typed error returned by the merge entry points.
type MergeError struct {
	Kind   Kind   // Taxonomy kind
	Path   string // Offending file, if any
	Reason string // Human-readable cause
	Err    error  // Underlying error, if any
}

func (e *MergeError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Path, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *MergeError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Kind {
	case KindUsage:
		return ErrInvalidInput
	case KindInternal:
		return ErrInternal
	}
	return nil
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "entry", "part", "staff")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "mscx", "zip", "container.xml")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewUsage creates a MergeError of kind KindUsage.
func NewUsage(path, reason string) *MergeError {
	return &MergeError{Kind: KindUsage, Path: path, Reason: reason}
}

// NewCompatibility creates a MergeError of kind KindCompatibility.
func NewCompatibility(path, reason string) *MergeError {
	return &MergeError{Kind: KindCompatibility, Path: path, Reason: reason}
}

// NewInternal creates a MergeError of kind KindInternal.
func NewInternal(reason string) *MergeError {
	return &MergeError{Kind: KindInternal, Reason: reason}
}

// AsIO wraps err into a KindIO MergeError for path. Nil stays nil.
func AsIO(path string, err error) error {
	if err == nil {
		return nil
	}
	var me *MergeError
	if errors.As(err, &me) {
		return err
	}
	return &MergeError{Kind: KindIO, Path: path, Err: err}
}

// KindOf classifies err. Errors without a MergeError in their chain are
// classified from the typed errors of this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var me *MergeError
	if errors.As(err, &me) {
		return me.Kind
	}
	var (
		ioErr    *IOError
		parseErr *ParseError
		valErr   *ValidationError
	)
	switch {
	case errors.As(err, &ioErr), errors.As(err, &parseErr):
		return KindIO
	case errors.As(err, &valErr):
		return KindUsage
	case errors.Is(err, ErrInternal):
		return KindInternal
	}
	return KindUnknown
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
