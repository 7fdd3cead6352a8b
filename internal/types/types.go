// Package types provides domain models shared across x12keeper components.
//
// errors.go and types.go use only the standard library so the segment core
// stays dependency-free. ID utilities in ids.go import uuid and are only
// needed by storage and the API layer.
package types

// DocumentID represents a UUIDv7 identifier for a stored document.
// String alias keeps JSON and SQL serialization as plain strings.
type DocumentID string

// PartnerID identifies the trading partner that owns a document.
// Resolved from the API key during authentication.
type PartnerID string

// Resource limits enforced by the API and storage layers.
const (
	// MaxSegmentsPerDocument caps a single stored document.
	// Large interchanges should be split by functional group before storage.
	MaxSegmentsPerDocument = 10000

	// MaxElementsPerSegment bounds a single segment. ISA, the widest
	// envelope segment, has 16 fields; 512 leaves room for any transaction set.
	MaxElementsPerSegment = 512
)
