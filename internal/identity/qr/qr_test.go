package qr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"yatri/internal/audit"
	"yatri/internal/identity/models"
	"yatri/internal/identity/store"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
)

const qrSubject = "0x3333333333333333333333333333333333333333"

func seededStore(t *testing.T) *store.File {
	t.Helper()
	st, err := store.NewFile(filepath.Join(t.TempDir(), "identities.json"), nil, nil)
	require.NoError(t, err)

	_, err = st.Upsert(context.Background(), store.UpsertParams{
		SubjectID:   domain.SubjectID(qrSubject),
		TripID:      domain.TripID("trip-kerala-01"),
		DID:         domain.DeriveDID("testnet", domain.SubjectID(qrSubject), domain.TripID("trip-kerala-01")),
		AnchorHash:  "0a1b2c3d",
		TxRef:       ledger.TxRef("tx-001"),
		FullName:    "Asha Nair",
		Destination: "Kerala",
		StartDate:   "2026-09-01",
		EndDate:     "2026-09-14",
		Contacts:    []models.Contact{{Name: "Ravi", Phone: "+91-98765-43210"}},
	})
	require.NoError(t, err)
	return st
}

func TestBuildRendersDecodablePNG(t *testing.T) {
	builder := NewBuilder(seededStore(t), nil)

	resp, err := builder.Build(context.Background(), qrSubject, "")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(resp.PNG))
	require.NoError(t, err)
	require.Equal(t, PNGSize, img.Bounds().Dx())
}

func TestBuildPayloadProjectsRecord(t *testing.T) {
	builder := NewBuilder(seededStore(t), nil)

	resp, err := builder.Build(context.Background(), qrSubject, "trip-kerala-01")
	require.NoError(t, err)

	p := resp.Payload
	require.Equal(t, qrSubject, p.SubjectID)
	require.Equal(t, "trip-kerala-01", p.TripID)
	require.Equal(t, "Asha Nair", p.FullName)
	require.Equal(t, "0a1b2c3d", p.AnchorHash)
	require.Equal(t, int64(1), p.Version)
	require.False(t, p.IssuedAt.IsZero())

	// The payload must round-trip as JSON since scanners parse it raw.
	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded models.QRPayload
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, p.SubjectID, decoded.SubjectID)
}

func TestBuildUnknownSubjectIsNotFound(t *testing.T) {
	builder := NewBuilder(seededStore(t), nil)

	_, err := builder.Build(context.Background(), "0x4444444444444444444444444444444444444444", "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBuildRejectsMalformedSubject(t *testing.T) {
	builder := NewBuilder(seededStore(t), nil)

	_, err := builder.Build(context.Background(), "nope", "")
	require.Error(t, err)
}

// failingAuditStore rejects every append.
type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit sink down")
}

func (failingAuditStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

func TestBuildSucceedsWhenAuditSinkFails(t *testing.T) {
	auditor := audit.NewPublisher(failingAuditStore{})
	builder := NewBuilder(seededStore(t), nil, WithAuditor(auditor))

	resp, err := builder.Build(context.Background(), qrSubject, "")
	require.NoError(t, err, "audit failures must not block issuance")
	require.NotEmpty(t, resp.PNG)
}
