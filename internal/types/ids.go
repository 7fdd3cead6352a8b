package types

import (
	"time"

	"github.com/google/uuid"
)

// NewDocumentID generates a UUIDv7 document identifier.
// Time-ordered IDs keep sequential inserts clustered in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.Must(uuid.NewV7()).String())
}

// NewAPIKeyID generates a UUIDv7 identifier for an API key record.
func NewAPIKeyID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseDocumentID validates and converts a string to DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return DocumentID(s), nil
}

// DocumentIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func DocumentIDTime(id DocumentID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
