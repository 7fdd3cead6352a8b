package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

// Document is a stored, ordered list of segments owned by one partner.
type Document struct {
	ID        types.DocumentID
	PartnerID types.PartnerID
	CreatedAt time.Time
	Segments  []*segment.Segment
}

// DocumentSummary is a document row without its segments.
type DocumentSummary struct {
	ID           types.DocumentID `db:"document_id"`
	PartnerID    types.PartnerID  `db:"partner_id"`
	SegmentCount int              `db:"segment_count"`
	CreatedAt    string           `db:"created_at"`
}

// Created returns the creation time at millisecond resolution, read from the
// UUIDv7 document ID. The created_at column only carries whole seconds and
// is used when the ID does not parse.
func (d DocumentSummary) Created() time.Time {
	if ts := types.DocumentIDTime(d.ID); !ts.IsZero() {
		return ts.UTC()
	}
	ts, err := time.Parse(time.RFC3339, d.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

type segmentRow struct {
	Position  int    `db:"position"`
	SegmentID string `db:"segment_id"`
	Elements  string `db:"elements"`
}

// Store persists documents. Segments are stored as their raw element lists
// (tag included) and rebuilt through the schema on load, so name indexes
// always reflect the current schema rather than the one at write time.
type Store struct {
	db          *sqlx.DB
	queries     *Queries
	schema      segment.Schema
	maxSegments int
}

// NewStore creates a document store. maxSegments <= 0 means
// types.MaxSegmentsPerDocument.
func NewStore(db *sqlx.DB, queries *Queries, schema segment.Schema, maxSegments int) *Store {
	if maxSegments <= 0 || maxSegments > types.MaxSegmentsPerDocument {
		maxSegments = types.MaxSegmentsPerDocument
	}
	return &Store{db: db, queries: queries, schema: schema, maxSegments: maxSegments}
}

// SaveDocument stores segments in order under a new document ID.
// Document row and all segment rows commit in one transaction.
func (s *Store) SaveDocument(ctx context.Context, partnerID types.PartnerID, segments []*segment.Segment) (types.DocumentID, error) {
	if len(segments) == 0 {
		return "", types.ErrEmptyDocument
	}
	if len(segments) > s.maxSegments {
		return "", fmt.Errorf("%w: %d > %d", types.ErrTooManySegments, len(segments), s.maxSegments)
	}

	id := types.NewDocumentID()
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.queries.ExecContext(ctx, tx, "insert-document", id, partnerID, len(segments), now); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	for i, seg := range segments {
		elements, err := json.Marshal(seg.DataElements())
		if err != nil {
			return "", fmt.Errorf("failed to encode segment %d: %w", i, err)
		}
		if _, err := s.queries.ExecContext(ctx, tx, "insert-segment", id, i, seg.ID(), string(elements)); err != nil {
			return "", fmt.Errorf("failed to insert segment %d (%s): %w", i, seg.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit document: %w", err)
	}
	return id, nil
}

// LoadDocument returns a document owned by partnerID.
// Returns ErrDocumentNotFound if the ID is unknown or owned by another partner.
func (s *Store) LoadDocument(ctx context.Context, partnerID types.PartnerID, id types.DocumentID) (*Document, error) {
	var summary DocumentSummary
	err := s.queries.GetContext(ctx, s.db, "get-document", &summary, id, partnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	var rows []segmentRow
	if err := s.queries.SelectContext(ctx, s.db, "list-segments", &rows, id); err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}

	doc := &Document{
		ID:        summary.ID,
		PartnerID: summary.PartnerID,
		CreatedAt: summary.Created(),
		Segments:  make([]*segment.Segment, 0, len(rows)),
	}

	for _, row := range rows {
		var elements []string
		if err := json.Unmarshal([]byte(row.Elements), &elements); err != nil {
			return nil, fmt.Errorf("segment %d: corrupt elements: %w", row.Position, err)
		}
		seg, err := s.schema.Build(elements)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", row.Position, err)
		}
		doc.Segments = append(doc.Segments, seg)
	}
	return doc, nil
}

// ListDocuments returns the newest documents owned by partnerID.
func (s *Store) ListDocuments(ctx context.Context, partnerID types.PartnerID, limit int) ([]DocumentSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []DocumentSummary
	if err := s.queries.SelectContext(ctx, s.db, "list-documents", &out, partnerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return out, nil
}

// DeleteDocument removes a document and its segments.
func (s *Store) DeleteDocument(ctx context.Context, partnerID types.PartnerID, id types.DocumentID) error {
	res, err := s.queries.ExecContext(ctx, s.db, "delete-document", id, partnerID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n == 0 {
		return types.ErrDocumentNotFound
	}
	return nil
}

// CreateAPIKey records the HMAC hash of a newly issued API key.
// The plaintext key is never stored.
func (s *Store) CreateAPIKey(ctx context.Context, partnerID types.PartnerID, keyHash []byte) (string, error) {
	apiKeyID := types.NewAPIKeyID()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.queries.ExecContext(ctx, s.db, "insert-api-key", apiKeyID, partnerID, keyHash, now); err != nil {
		return "", fmt.Errorf("failed to insert api key: %w", err)
	}
	return apiKeyID, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is a no-op.
func (s *Store) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	if _, err := s.queries.ExecContext(ctx, s.db, "revoke-api-key", time.Now().UTC(), apiKeyID); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}
