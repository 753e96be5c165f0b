// Package qr renders scannable verification payloads for stored identity
// records. The payload is a compact JSON projection of the record; it never
// includes PII references or anything not already in the hash input.
package qr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skip2/go-qrcode"

	"yatri/internal/audit"
	"yatri/internal/identity/metrics"
	"yatri/internal/identity/models"
	"yatri/internal/identity/store"
	"yatri/pkg/domain"
)

// PNGSize is the rendered code's edge length in pixels.
const PNGSize = 256

// Builder issues QR payloads from stored records.
type Builder struct {
	store   store.Store
	metrics *metrics.Metrics
	auditor *audit.Publisher
	logger  *slog.Logger
}

// Option configures optional builder collaborators.
type Option func(*Builder)

// WithAuditor records an audit event for every issued payload.
func WithAuditor(p *audit.Publisher) Option {
	return func(b *Builder) { b.auditor = p }
}

// WithLogger sets the logger for audit emission failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

func NewBuilder(st store.Store, m *metrics.Metrics, opts ...Option) *Builder {
	b := &Builder{store: st, metrics: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders the QR payload for a subject. With a trip ID the exact
// (subject, trip) record is used; without one the subject's most recent
// record is.
func (b *Builder) Build(ctx context.Context, subjectRaw, tripRaw string) (*models.QRResponse, error) {
	subject, err := domain.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}

	var record *models.IdentityRecord
	if tripRaw == "" {
		record, err = b.store.Latest(ctx, subject)
	} else {
		var trip domain.TripID
		trip, err = domain.ParseTripID(tripRaw)
		if err == nil {
			record, err = b.store.Get(ctx, subject, trip)
		}
	}
	if err != nil {
		return nil, err
	}

	payload := PayloadFor(record, time.Now().UTC())
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	png, err := qrcode.Encode(string(encoded), qrcode.Medium, PNGSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	if b.metrics != nil {
		b.metrics.QRIssuedTotal.Inc()
	}
	if b.auditor != nil {
		err := b.auditor.Emit(ctx, audit.Event{
			Subject: record.SubjectID.String(),
			TripID:  record.TripID.String(),
			Action:  string(audit.ActionQRIssued),
			Outcome: "issued",
		})
		if err != nil {
			b.logger.Error("emit audit event", "error", err, "subject", record.SubjectID)
		}
	}
	return &models.QRResponse{Payload: payload, PNG: png}, nil
}

// PayloadFor projects one record into the scannable payload shape.
func PayloadFor(record *models.IdentityRecord, issuedAt time.Time) models.QRPayload {
	return models.QRPayload{
		SubjectID:   record.SubjectID.String(),
		DID:         record.DID.String(),
		TripID:      record.TripID.String(),
		FullName:    record.FullName,
		Destination: record.Destination,
		StartDate:   record.StartDate,
		EndDate:     record.EndDate,
		Contacts:    record.Contacts,
		AnchorHash:  record.AnchorHash,
		Version:     record.Version,
		IssuedAt:    issuedAt,
	}
}
