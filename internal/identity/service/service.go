// Package service implements the identity registry pipeline: validate a KYC
// submission, derive its canonical anchor hash, anchor it on the ledger when
// one is configured, and persist the versioned record.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yatri/internal/audit"
	"yatri/internal/identity/events"
	"yatri/internal/identity/metrics"
	"yatri/internal/identity/models"
	"yatri/internal/identity/store"
	"yatri/internal/ledger"
	"yatri/pkg/canonical"
	"yatri/pkg/domain"
	platformsync "yatri/pkg/platform/sync"
	"yatri/pkg/requestcontext"
)

const storageWarningDegraded = "record stored in memory only; file mirror is degraded"

// mirrorAware is implemented by stores that mirror state to a secondary
// medium and can report when that mirror is behind.
type mirrorAware interface {
	MirrorDegraded() bool
}

// Service orchestrates submissions, verification and lookups. All writes for
// one (subject, trip) key are serialized through a sharded lock so the
// hash-then-anchor-then-store sequence never interleaves for the same key.
type Service struct {
	store   store.Store
	ledger  ledger.Client
	network string
	fast    bool
	locks   *platformsync.ShardedMutex
	metrics *metrics.Metrics
	auditor *audit.Publisher
	emitter *events.Emitter
	logger  *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLedger attaches a ledger client. Without one, submissions are stored
// locally with the anchoring-failed sentinel skipped entirely (no anchoring
// is attempted and TxRef stays empty).
func WithLedger(client ledger.Client) Option {
	return func(s *Service) { s.ledger = client }
}

// WithFastWrites makes anchoring use the no-wait ledger variants.
func WithFastWrites(fast bool) Option {
	return func(s *Service) { s.fast = fast }
}

// WithAuditor attaches an audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithEmitter attaches an anchor event emitter.
func WithEmitter(e *events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

func NewService(st store.Store, network string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		network: network,
		locks:   platformsync.NewShardedMutex(),
		metrics: m,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the full ingestion pipeline for one KYC submission. The record
// is stored even when anchoring fails; callers distinguish the outcomes via
// the response's Anchored flag and TxRef.
func (s *Service) Submit(ctx context.Context, req *models.SubmitIdentityRequest) (*models.SubmitIdentityResponse, error) {
	if err := req.Validate(); err != nil {
		s.count("rejected")
		return nil, err
	}

	subject, err := domain.ParseSubjectID(req.SubjectID)
	if err != nil {
		s.count("rejected")
		return nil, err
	}

	trip, err := s.resolveTrip(ctx, req.TripID)
	if err != nil {
		s.count("rejected")
		return nil, err
	}

	did, err := s.resolveDID(req.DID, subject, trip)
	if err != nil {
		s.count("rejected")
		return nil, err
	}

	contacts := req.ContactModels()
	payload := models.HashPayload(subject, trip, req.FullName, req.Destination, req.StartDate, req.EndDate, contacts)
	hash, err := canonical.Hash(payload)
	if err != nil {
		s.count("rejected")
		return nil, err
	}

	// Serialize the anchor-then-store sequence per key so two concurrent
	// submissions for the same trip cannot interleave ledger and store
	// writes.
	lockKey := subject.String() + "|" + trip.String()
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	existing, err := s.store.Get(ctx, subject, trip)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.count("failed")
		return nil, err
	}

	txRef := ledger.TxRef("")
	anchored := false
	if s.ledger != nil {
		txRef, err = s.anchor(ctx, subject, hash, did)
		if err != nil {
			// Any ledger-layer failure, outage or otherwise, degrades to
			// the sentinel; the submission itself still succeeds.
			s.logger.Warn("anchoring failed, storing with sentinel",
				"subject", subject, "trip", trip, "error", err)
			txRef = ledger.TxRefAnchoringFailed
		}
		anchored = txRef != ledger.TxRefAnchoringFailed
	}

	record, err := s.store.Upsert(ctx, store.UpsertParams{
		SubjectID:       subject,
		TripID:          trip,
		DID:             did,
		AnchorHash:      hash,
		TxRef:           txRef,
		FullName:        req.FullName,
		Destination:     req.Destination,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		EncryptedPIIRef: req.EncryptedPIIRef,
		Contacts:        contacts,
	})
	if err != nil {
		s.count("failed")
		return nil, err
	}

	result := "created"
	if existing != nil {
		result = "updated"
	}
	s.count(result)

	s.emitAudit(ctx, record, anchored)
	s.emitter.Emit(ctx, events.EventFor(subject, trip, did, hash, record.Version, txRef, anchored))

	resp := &models.SubmitIdentityResponse{
		RecordID:   record.ID,
		SubjectID:  record.SubjectID.String(),
		TripID:     record.TripID.String(),
		DID:        record.DID.String(),
		AnchorHash: record.AnchorHash,
		Version:    record.Version,
		TxRef:      record.LedgerTxRef,
		Anchored:   anchored,
	}
	if ma, ok := s.store.(mirrorAware); ok && ma.MirrorDegraded() {
		resp.StorageWarning = storageWarningDegraded
	}
	return resp, nil
}

// Get returns the record for one exact (subject, trip) key.
func (s *Service) Get(ctx context.Context, subjectRaw, tripRaw string) (*models.IdentityRecord, error) {
	subject, err := domain.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}
	trip, err := domain.ParseTripID(tripRaw)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, subject, trip)
}

// List returns stored records newest-first, optionally filtered by subject.
func (s *Service) List(ctx context.Context, subjectRaw string) ([]*models.IdentityRecord, error) {
	if subjectRaw == "" {
		return s.store.List(ctx, nil)
	}
	subject, err := domain.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, &subject)
}

// anchor writes the hash to the ledger, trying the branch suggested by local
// state first and the opposite on a typed state mismatch. The ledger keeps
// one anchor per subject, so a subject's second trip lands as an update even
// though the local record is new.
func (s *Service) anchor(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (ledger.TxRef, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.LedgerWriteDuration.Observe(time.Since(start).Seconds())
		}
	}()

	registerFirst := true
	if _, err := s.store.Latest(ctx, subject); err == nil {
		registerFirst = false
	}

	first, second := s.registerOp(), s.updateOp()
	firstName, secondName := "register", "update"
	mismatch := ledger.ErrAlreadyRegistered
	if !registerFirst {
		first, second = second, first
		firstName, secondName = secondName, firstName
		mismatch = ledger.ErrNotRegistered
	}

	txRef, err := first(ctx, subject, hash, did)
	if err == nil {
		s.countLedger(firstName, "ok")
		return txRef, nil
	}
	if !errors.Is(err, mismatch) {
		s.countLedger(firstName, "error")
		return "", err
	}

	// Local state disagreed with the ledger; the opposite operation is the
	// correct one.
	s.countLedger(firstName, "state_mismatch")
	txRef, err = second(ctx, subject, hash, did)
	if err != nil {
		s.countLedger(secondName, "error")
		return "", err
	}
	s.countLedger(secondName, "ok")
	return txRef, nil
}

type ledgerOp func(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (ledger.TxRef, error)

func (s *Service) registerOp() ledgerOp {
	if s.fast {
		return s.ledger.RegisterNoWait
	}
	return s.ledger.Register
}

func (s *Service) updateOp() ledgerOp {
	if s.fast {
		return s.ledger.UpdateNoWait
	}
	return s.ledger.Update
}

func (s *Service) resolveTrip(ctx context.Context, raw string) (domain.TripID, error) {
	if raw == "" {
		return domain.NewTripID(requestcontext.Now(ctx)), nil
	}
	return domain.ParseTripID(raw)
}

func (s *Service) resolveDID(raw string, subject domain.SubjectID, trip domain.TripID) (domain.DID, error) {
	if raw == "" {
		return domain.DeriveDID(s.network, subject, trip), nil
	}
	return domain.ParseDID(raw)
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countLedger(op, outcome string) {
	if s.metrics != nil {
		s.metrics.LedgerWritesTotal.WithLabelValues(op, outcome).Inc()
	}
}

func (s *Service) emitAudit(ctx context.Context, record *models.IdentityRecord, anchored bool) {
	if s.auditor == nil {
		return
	}
	action := audit.ActionIdentityAnchored
	outcome := "anchored"
	if !anchored {
		action = audit.ActionAnchoringFailed
		outcome = "stored_unanchored"
		if s.ledger == nil {
			action = audit.ActionIdentitySubmitted
			outcome = "stored"
		}
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Subject: record.SubjectID.String(),
		TripID:  record.TripID.String(),
		Action:  string(action),
		Outcome: outcome,
		TxRef:   string(record.LedgerTxRef),
	})
	if err != nil {
		s.logger.Error("emit audit event", "error", err, "subject", record.SubjectID)
	}
}
