package ledger

import (
	"context"
	"errors"
	"log/slog"

	"yatri/pkg/domain"
	"yatri/pkg/platform/circuit"

	anchorcontract "yatri/contracts/anchor"
)

// Resilient wraps a Client with a circuit breaker so a dead gateway fails
// fast to ErrUnavailable instead of burning the full HTTP timeout on every
// submission. Expected ledger outcomes (already registered, not registered,
// not found, insufficient funds) do not count as failures; only transport
// unavailability trips the breaker.
type Resilient struct {
	inner   Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

var _ Client = (*Resilient)(nil)

// NewResilient wraps inner with a breaker named for the ledger gateway.
func NewResilient(inner Client, logger *slog.Logger, opts ...circuit.Option) *Resilient {
	return &Resilient{
		inner:   inner,
		breaker: circuit.New("ledger-gateway", opts...),
		logger:  logger,
	}
}

func (r *Resilient) Register(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return r.guardWrite(func() (TxRef, error) { return r.inner.Register(ctx, subject, hash, did) })
}

func (r *Resilient) Update(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return r.guardWrite(func() (TxRef, error) { return r.inner.Update(ctx, subject, hash, did) })
}

func (r *Resilient) RegisterNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return r.guardWrite(func() (TxRef, error) { return r.inner.RegisterNoWait(ctx, subject, hash, did) })
}

func (r *Resilient) UpdateNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return r.guardWrite(func() (TxRef, error) { return r.inner.UpdateNoWait(ctx, subject, hash, did) })
}

// GetLatest always reaches the inner client, even while the circuit is open.
// Reads double as probes: their successes close the circuit again.
func (r *Resilient) GetLatest(ctx context.Context, subject domain.SubjectID) (*anchorcontract.Anchor, error) {
	anchor, err := r.inner.GetLatest(ctx, subject)
	r.record(err)
	return anchor, err
}

func (r *Resilient) guardWrite(op func() (TxRef, error)) (TxRef, error) {
	if r.breaker.IsOpen() {
		return "", ErrUnavailable
	}
	ref, err := op()
	r.record(err)
	return ref, err
}

func (r *Resilient) record(err error) {
	if isUnavailable(err) {
		if _, change := r.breaker.RecordFailure(); change.Opened && r.logger != nil {
			r.logger.Warn("ledger circuit opened", "breaker", r.breaker.Name())
		}
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed && r.logger != nil {
		r.logger.Info("ledger circuit closed", "breaker", r.breaker.Name())
	}
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnavailable)
}
