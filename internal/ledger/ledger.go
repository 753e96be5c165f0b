// Package ledger adapts the external append-only anchor ledger behind a
// typed client interface. The ledger keeps one latest anchor per subject;
// register and update are mutually exclusive against existing state, so
// callers must be prepared to try the other on a typed mismatch.
package ledger

import (
	"context"

	"yatri/pkg/domain"
	dErrors "yatri/pkg/domain-errors"

	anchorcontract "yatri/contracts/anchor"
)

// TxRef is an opaque reference to a ledger write. NoWait variants return a
// provisional TxRef that must not be treated as proof of durability.
type TxRef string

// TxRefAnchoringFailed marks a record whose ledger write never succeeded.
// Submissions still succeed with this sentinel; anchoring is best-effort.
const TxRefAnchoringFailed TxRef = "anchoring-failed"

// Expected ledger conditions. All are domain errors so callers classify with
// errors.Is instead of matching message text.
var (
	ErrAlreadyRegistered = dErrors.New(dErrors.CodeAlreadyRegistered, "subject already has a ledger entry")
	ErrNotRegistered     = dErrors.New(dErrors.CodeNotRegistered, "subject has no ledger entry")
	ErrNotFound          = dErrors.New(dErrors.CodeNotFound, "no anchor on ledger for subject")
	ErrUnavailable       = dErrors.New(dErrors.CodeLedgerUnavailable, "ledger unreachable")
	ErrInsufficientFunds = dErrors.New(dErrors.CodeInsufficientFunds, "signer cannot pay write fees")
)

// Client is the full ledger surface. Register fails with ErrAlreadyRegistered
// when the subject has an entry; Update fails with ErrNotRegistered when it
// has none. Any operation may fail with ErrUnavailable or
// ErrInsufficientFunds; both are retryable by the caller.
type Client interface {
	Register(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error)
	Update(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error)

	// NoWait variants return as soon as the write is submitted, without
	// waiting for finalization.
	RegisterNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error)
	UpdateNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error)

	GetLatest(ctx context.Context, subject domain.SubjectID) (*anchorcontract.Anchor, error)
}
