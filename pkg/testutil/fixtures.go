// Package testutil provides shared fixtures for tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"yatri/internal/identity/models"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
)

// TestSubjects provides pre-generated subject addresses for deterministic
// test data.
var TestSubjects = struct {
	Subject1 domain.SubjectID
	Subject2 domain.SubjectID
}{
	Subject1: domain.SubjectID("0x1111111111111111111111111111111111111111"),
	Subject2: domain.SubjectID("0x2222222222222222222222222222222222222222"),
}

// RecordBuilder provides a fluent interface for building test identity records.
type RecordBuilder struct {
	record *models.IdentityRecord
}

// NewRecordBuilder creates a RecordBuilder with sensible defaults.
func NewRecordBuilder() *RecordBuilder {
	now := time.Now().UTC()
	subject := TestSubjects.Subject1
	trip := domain.TripID("trip-20260901-abc123")
	return &RecordBuilder{
		record: &models.IdentityRecord{
			ID:          uuid.NewString(),
			SubjectID:   subject,
			TripID:      trip,
			DID:         domain.DeriveDID("testnet", subject, trip),
			AnchorHash:  "0f1e2d3c4b5a",
			Version:     1,
			LedgerTxRef: ledger.TxRef("tx-fixture-001"),
			FullName:    "Asha Nair",
			Destination: "Kerala",
			StartDate:   "2026-09-01",
			EndDate:     "2026-09-14",
			Contacts:    []models.Contact{{Name: "Ravi", Phone: "+91-98765-43210"}},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

func (b *RecordBuilder) WithSubject(subject domain.SubjectID) *RecordBuilder {
	b.record.SubjectID = subject
	return b
}

func (b *RecordBuilder) WithTrip(trip domain.TripID) *RecordBuilder {
	b.record.TripID = trip
	return b
}

func (b *RecordBuilder) WithVersion(version int64) *RecordBuilder {
	b.record.Version = version
	return b
}

func (b *RecordBuilder) WithAnchorHash(hash string) *RecordBuilder {
	b.record.AnchorHash = hash
	return b
}

func (b *RecordBuilder) WithTxRef(ref ledger.TxRef) *RecordBuilder {
	b.record.LedgerTxRef = ref
	return b
}

func (b *RecordBuilder) WithDestination(destination string) *RecordBuilder {
	b.record.Destination = destination
	return b
}

// Build returns the constructed record.
func (b *RecordBuilder) Build() *models.IdentityRecord {
	out := *b.record
	out.Contacts = append([]models.Contact(nil), b.record.Contacts...)
	return &out
}
