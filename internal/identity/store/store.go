// Package store provides keyed, versioned storage for identity records over
// two interchangeable backends selected at process start: a relational table
// or a file-mirrored in-memory map. Backends are never mixed at runtime.
package store

import (
	"context"

	"yatri/internal/identity/models"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
	pkgerrors "yatri/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "identity record not found")
)

// UpsertParams carries the full replacement state for one (subject, trip)
// key. The store is the only place version arithmetic happens.
type UpsertParams struct {
	SubjectID       domain.SubjectID
	TripID          domain.TripID
	DID             domain.DID
	AnchorHash      string
	TxRef           ledger.TxRef
	FullName        string
	Destination     string
	StartDate       string
	EndDate         string
	EncryptedPIIRef string
	Contacts        []models.Contact
}

// Store is the single mutation surface for identity records. Upsert is the
// only write primitive: absent keys are created at version 1, present keys
// are replaced with version+1. After Upsert returns, a Get with the same key
// observes the new values within the same process.
type Store interface {
	Get(ctx context.Context, subject domain.SubjectID, trip domain.TripID) (*models.IdentityRecord, error)

	// Latest returns the most recent record for a subject across all trips.
	// Lookups fall back to case-insensitive matching so records stored
	// before subject normalization existed stay discoverable.
	Latest(ctx context.Context, subject domain.SubjectID) (*models.IdentityRecord, error)

	// List returns records newest-first by creation time, optionally
	// filtered to one subject.
	List(ctx context.Context, subject *domain.SubjectID) ([]*models.IdentityRecord, error)

	Upsert(ctx context.Context, params UpsertParams) (*models.IdentityRecord, error)
}
