package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"yatri/internal/identity/models"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
)

type FileStoreSuite struct {
	suite.Suite
	dir   string
	path  string
	store *File
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.path = filepath.Join(s.dir, "identities.json")

	store, err := NewFile(s.path, nil, nil)
	s.Require().NoError(err)
	s.store = store
}

func (s *FileStoreSuite) params(subject, trip string) UpsertParams {
	return UpsertParams{
		SubjectID:   domain.SubjectID(subject),
		TripID:      domain.TripID(trip),
		DID:         domain.DID("did:yatri:testnet:" + subject + ":" + trip),
		AnchorHash:  "a1b2c3",
		TxRef:       ledger.TxRef("tx-001"),
		FullName:    "Asha Nair",
		Destination: "Kerala",
		StartDate:   "2026-09-01",
		EndDate:     "2026-09-14",
		Contacts:    []models.Contact{{Name: "Ravi", Phone: "+91-98765-43210"}},
	}
}

func (s *FileStoreSuite) TestUpsertCreatesAtVersionOne() {
	record, err := s.store.Upsert(context.Background(), s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)

	s.Equal(int64(1), record.Version)
	s.NotEmpty(record.ID)
	s.Equal("a1b2c3", record.AnchorHash)
	s.False(s.store.MirrorDegraded())
}

func (s *FileStoreSuite) TestUpsertBumpsVersionForSameKey() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)

	params := s.params("0xaa11", "trip-1")
	params.Destination = "Goa"
	params.AnchorHash = "d4e5f6"
	record, err := s.store.Upsert(ctx, params)
	s.Require().NoError(err)

	s.Equal(int64(2), record.Version)
	s.Equal("Goa", record.Destination)
	s.Equal("d4e5f6", record.AnchorHash)

	got, err := s.store.Get(ctx, domain.SubjectID("0xaa11"), domain.TripID("trip-1"))
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
}

func (s *FileStoreSuite) TestDistinctTripsAreIndependentRecords() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)
	_, err = s.store.Upsert(ctx, s.params("0xaa11", "trip-2"))
	s.Require().NoError(err)

	first, err := s.store.Get(ctx, domain.SubjectID("0xaa11"), domain.TripID("trip-1"))
	s.Require().NoError(err)
	second, err := s.store.Get(ctx, domain.SubjectID("0xaa11"), domain.TripID("trip-2"))
	s.Require().NoError(err)

	s.Equal(int64(1), first.Version)
	s.Equal(int64(1), second.Version)
}

func (s *FileStoreSuite) TestGetUnknownKeyReturnsNotFound() {
	_, err := s.store.Get(context.Background(), domain.SubjectID("0xdead"), domain.TripID("trip-x"))
	s.ErrorIs(err, ErrNotFound)
}

func (s *FileStoreSuite) TestLatestIgnoresSubjectCase() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, s.params("0xAA11", "trip-1"))
	s.Require().NoError(err)

	record, err := s.store.Latest(ctx, domain.SubjectID("0xaa11"))
	s.Require().NoError(err)
	s.Equal(domain.TripID("trip-1"), record.TripID)
}

func (s *FileStoreSuite) TestListFiltersBySubject() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)
	_, err = s.store.Upsert(ctx, s.params("0xbb22", "trip-1"))
	s.Require().NoError(err)

	all, err := s.store.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	subject := domain.SubjectID("0xaa11")
	filtered, err := s.store.List(ctx, &subject)
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal(subject, filtered[0].SubjectID)
}

func (s *FileStoreSuite) TestMirrorSurvivesRestart() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)

	reopened, err := NewFile(s.path, nil, nil)
	s.Require().NoError(err)

	record, err := reopened.Get(ctx, domain.SubjectID("0xaa11"), domain.TripID("trip-1"))
	s.Require().NoError(err)
	s.Equal(int64(1), record.Version)
	s.Equal("Asha Nair", record.FullName)
}

func (s *FileStoreSuite) TestMirrorFileIsValidJSONArray() {
	_, err := s.store.Upsert(context.Background(), s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)

	data, err := os.ReadFile(s.path)
	s.Require().NoError(err)

	var records []*models.IdentityRecord
	s.Require().NoError(json.Unmarshal(data, &records))
	s.Len(records, 1)
}

func (s *FileStoreSuite) TestMirrorFailureFlagsDegradedButKeepsRecord() {
	ctx := context.Background()

	// Point the mirror at a path whose parent is a file, so writes fail.
	blocker := filepath.Join(s.dir, "blocker")
	s.Require().NoError(os.WriteFile(blocker, []byte("x"), 0o600))
	s.store.path = filepath.Join(blocker, "identities.json")

	record, err := s.store.Upsert(ctx, s.params("0xaa11", "trip-1"))
	s.Require().NoError(err)
	s.Equal(int64(1), record.Version)
	s.True(s.store.MirrorDegraded())

	got, err := s.store.Get(ctx, domain.SubjectID("0xaa11"), domain.TripID("trip-1"))
	s.Require().NoError(err)
	s.Equal(record.ID, got.ID)
}

func TestNewFileRejectsCorruptMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path, nil, nil)
	require.Error(t, err)
}

func TestNewFileMissingFileIsCleanStart(t *testing.T) {
	store, err := NewFile(filepath.Join(t.TempDir(), "missing.json"), nil, nil)
	require.NoError(t, err)

	records, err := store.List(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, records)
}
