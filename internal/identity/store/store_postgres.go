package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"yatri/internal/identity/metrics"
	"yatri/internal/identity/models"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
	dErrors "yatri/pkg/domain-errors"
)

// Postgres persists identity records in PostgreSQL. This is the only backend
// safe for concurrent writers across processes: the upsert is a single
// conditional statement, so version arithmetic happens inside the database.
type Postgres struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

var _ Store = (*Postgres)(nil)

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB, m *metrics.Metrics) *Postgres {
	return &Postgres{db: db, metrics: m}
}

const recordColumns = `
	id, subject_id, trip_id, did, anchor_hash, version, ledger_tx_ref,
	full_name, destination, start_date, end_date, encrypted_pii_ref,
	contacts, created_at, updated_at
`

func (s *Postgres) Get(ctx context.Context, subject domain.SubjectID, trip domain.TripID) (*models.IdentityRecord, error) {
	defer s.observe("get", time.Now())
	query := `SELECT ` + recordColumns + `
		FROM identity_records
		WHERE subject_id = $1 AND trip_id = $2
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, subject.String(), trip.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get identity record", err)
	}
	return record, nil
}

func (s *Postgres) Latest(ctx context.Context, subject domain.SubjectID) (*models.IdentityRecord, error) {
	defer s.observe("latest", time.Now())
	// lower(subject_id) keeps pre-normalization rows discoverable; new rows
	// are already lowercase so the predicate is a no-op for them.
	query := `SELECT ` + recordColumns + `
		FROM identity_records
		WHERE lower(subject_id) = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, subject.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("latest identity record", err)
	}
	return record, nil
}

func (s *Postgres) List(ctx context.Context, subject *domain.SubjectID) ([]*models.IdentityRecord, error) {
	defer s.observe("list", time.Now())

	query := `SELECT ` + recordColumns + ` FROM identity_records`
	var args []any
	if subject != nil {
		query += ` WHERE lower(subject_id) = $1`
		args = append(args, subject.String())
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list identity records", err)
	}
	defer rows.Close() //nolint:errcheck // read-side close

	var records []*models.IdentityRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr("scan identity record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list identity records", err)
	}
	return records, nil
}

func (s *Postgres) Upsert(ctx context.Context, params UpsertParams) (*models.IdentityRecord, error) {
	defer s.observe("upsert", time.Now())

	contacts, err := json.Marshal(params.Contacts)
	if err != nil {
		return nil, fmt.Errorf("encode contacts: %w", err)
	}

	query := `
		INSERT INTO identity_records (
			id, subject_id, trip_id, did, anchor_hash, version, ledger_tx_ref,
			full_name, destination, start_date, end_date, encrypted_pii_ref,
			contacts, created_at, updated_at
		)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 1, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (subject_id, trip_id) DO UPDATE SET
			did = EXCLUDED.did,
			anchor_hash = EXCLUDED.anchor_hash,
			version = identity_records.version + 1,
			ledger_tx_ref = EXCLUDED.ledger_tx_ref,
			full_name = EXCLUDED.full_name,
			destination = EXCLUDED.destination,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			encrypted_pii_ref = EXCLUDED.encrypted_pii_ref,
			contacts = EXCLUDED.contacts,
			updated_at = now()
		RETURNING ` + recordColumns

	record, err := scanRecord(s.db.QueryRowContext(ctx, query,
		params.SubjectID.String(),
		params.TripID.String(),
		params.DID.String(),
		params.AnchorHash,
		string(params.TxRef),
		params.FullName,
		params.Destination,
		params.StartDate,
		params.EndDate,
		params.EncryptedPIIRef,
		contacts,
	))
	if err != nil {
		return nil, storageErr("upsert identity record", err)
	}
	return record, nil
}

// HealthCheck pings the database so readiness probes can observe storage.
func (s *Postgres) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("identity store ping: %w", err)
	}
	return nil
}

func (s *Postgres) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOpDuration.WithLabelValues(op, "postgres").Observe(time.Since(start).Seconds())
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.IdentityRecord, error) {
	var (
		record      models.IdentityRecord
		subject     string
		trip        string
		did         string
		txRef       string
		piiRef      sql.NullString
		contactsRaw []byte
	)
	err := row.Scan(
		&record.ID, &subject, &trip, &did, &record.AnchorHash, &record.Version, &txRef,
		&record.FullName, &record.Destination, &record.StartDate, &record.EndDate, &piiRef,
		&contactsRaw, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.SubjectID = domain.SubjectID(subject)
	record.TripID = domain.TripID(trip)
	record.DID = domain.DID(did)
	record.LedgerTxRef = ledger.TxRef(txRef)
	record.EncryptedPIIRef = piiRef.String
	if len(contactsRaw) > 0 {
		if err := json.Unmarshal(contactsRaw, &record.Contacts); err != nil {
			return nil, fmt.Errorf("decode contacts: %w", err)
		}
	}
	return &record, nil
}

func storageErr(msg string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, msg)
}
