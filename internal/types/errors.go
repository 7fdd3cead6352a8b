package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for x12keeper operations.
var (
	// ErrFieldNotFound indicates a reference matched neither the tag+index
	// pattern nor a registered field name.
	ErrFieldNotFound = errors.New("field not found")

	// ErrIndexOutOfRange indicates a reference resolved to a position with no
	// backing element (or to position 0, which holds the tag).
	ErrIndexOutOfRange = errors.New("element index out of range")

	// ErrEmptySegmentID indicates a segment was constructed without a tag.
	ErrEmptySegmentID = errors.New("segment id is empty")

	// ErrInvalidIndex indicates a name registration for a position below 1.
	ErrInvalidIndex = errors.New("field index must be at least 1")

	// ErrCoercionFailed indicates an element value does not parse as its
	// declared X12 data type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrInvalidSchema indicates a malformed segment schema definition.
	ErrInvalidSchema = errors.New("invalid segment schema")

	// ErrDocumentNotFound indicates no stored document matches the ID.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrTooManySegments indicates a document exceeds the configured segment limit.
	ErrTooManySegments = errors.New("document has too many segments")

	// ErrEmptyDocument indicates a document with no segments.
	ErrEmptyDocument = errors.New("document has no segments")
)

// FieldError reports a failed field resolution together with the reference
// that caused it. Err is ErrFieldNotFound or ErrIndexOutOfRange.
type FieldError struct {
	Reference string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("cannot access %q: %v", e.Reference, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
