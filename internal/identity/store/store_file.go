package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yatri/internal/identity/metrics"
	"yatri/internal/identity/models"
	"yatri/pkg/domain"
)

// File keeps identity records in memory behind a mutex and mirrors every
// mutation to a JSON array on disk. The in-memory map is the source of truth
// while the process runs; the file exists so records survive restarts and so
// operators can inspect state without a database. A failed mirror write never
// fails the mutation: the store flags itself degraded and keeps serving.
type File struct {
	mu       sync.Mutex
	records  map[string]*models.IdentityRecord
	path     string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	degraded bool
}

var _ Store = (*File)(nil)

// NewFile loads existing records from path (if present) and returns a
// file-mirrored store. A missing file is a clean first start; a corrupt file
// is an error so operators notice before records silently vanish.
func NewFile(path string, logger *slog.Logger, m *metrics.Metrics) (*File, error) {
	s := &File{
		records: make(map[string]*models.IdentityRecord),
		path:    path,
		logger:  logger,
		metrics: m,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read identity file %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var loaded []*models.IdentityRecord
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("decode identity file %s: %w", path, err)
	}
	for _, record := range loaded {
		s.records[fileKey(record.SubjectID, record.TripID)] = record
	}
	return s, nil
}

// MirrorDegraded reports whether the most recent mirror write failed. The
// flag clears on the next successful write.
func (s *File) MirrorDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *File) Get(_ context.Context, subject domain.SubjectID, trip domain.TripID) (*models.IdentityRecord, error) {
	defer s.observe("get", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[fileKey(subject, trip)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *File) Latest(_ context.Context, subject domain.SubjectID) (*models.IdentityRecord, error) {
	defer s.observe("latest", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	want := strings.ToLower(subject.String())
	var latest *models.IdentityRecord
	for _, record := range s.records {
		if strings.ToLower(record.SubjectID.String()) != want {
			continue
		}
		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(latest), nil
}

func (s *File) List(_ context.Context, subject *domain.SubjectID) ([]*models.IdentityRecord, error) {
	defer s.observe("list", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	var want string
	if subject != nil {
		want = strings.ToLower(subject.String())
	}

	var records []*models.IdentityRecord
	for _, record := range s.records {
		if want != "" && strings.ToLower(record.SubjectID.String()) != want {
			continue
		}
		records = append(records, cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *File) Upsert(_ context.Context, params UpsertParams) (*models.IdentityRecord, error) {
	defer s.observe("upsert", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := fileKey(params.SubjectID, params.TripID)

	record, ok := s.records[key]
	if !ok {
		record = &models.IdentityRecord{
			ID:        uuid.NewString(),
			SubjectID: params.SubjectID,
			TripID:    params.TripID,
			Version:   0,
			CreatedAt: now,
		}
	}

	record.DID = params.DID
	record.AnchorHash = params.AnchorHash
	record.Version++
	record.LedgerTxRef = params.TxRef
	record.FullName = params.FullName
	record.Destination = params.Destination
	record.StartDate = params.StartDate
	record.EndDate = params.EndDate
	record.EncryptedPIIRef = params.EncryptedPIIRef
	record.Contacts = append([]models.Contact(nil), params.Contacts...)
	record.UpdatedAt = now

	s.records[key] = record
	s.mirror()
	return cloneRecord(record), nil
}

// mirror rewrites the whole file from the in-memory map. Callers hold s.mu.
func (s *File) mirror() {
	records := make([]*models.IdentityRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	if err := s.writeFile(records); err != nil {
		s.degraded = true
		if s.metrics != nil {
			s.metrics.MirrorFailures.Inc()
		}
		if s.logger != nil {
			s.logger.Error("identity file mirror write failed", "path", s.path, "error", err)
		}
		return
	}
	s.degraded = false
}

func (s *File) writeFile(records []*models.IdentityRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity records: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace identity file: %w", err)
	}
	return nil
}

func (s *File) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOpDuration.WithLabelValues(op, "file").Observe(time.Since(start).Seconds())
	}
}

func fileKey(subject domain.SubjectID, trip domain.TripID) string {
	return subject.String() + "|" + trip.String()
}

func cloneRecord(record *models.IdentityRecord) *models.IdentityRecord {
	out := *record
	out.Contacts = append([]models.Contact(nil), record.Contacts...)
	return &out
}
