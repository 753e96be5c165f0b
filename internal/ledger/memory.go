package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yatri/pkg/domain"

	anchorcontract "yatri/contracts/anchor"
)

// Memory is an in-process ledger used in tests and local development. It
// enforces the same register/update exclusivity as the real gateway.
type Memory struct {
	mu      sync.RWMutex
	anchors map[domain.SubjectID]*anchorcontract.Anchor
	seq     int
}

var _ Client = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{anchors: make(map[domain.SubjectID]*anchorcontract.Anchor)}
}

func (m *Memory) Register(_ context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anchors[subject]; ok {
		return "", ErrAlreadyRegistered
	}
	return m.put(subject, hash, did, 1), nil
}

func (m *Memory) Update(_ context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.anchors[subject]
	if !ok {
		return "", ErrNotRegistered
	}
	return m.put(subject, hash, did, existing.Version+1), nil
}

func (m *Memory) RegisterNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return m.Register(ctx, subject, hash, did)
}

func (m *Memory) UpdateNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return m.Update(ctx, subject, hash, did)
}

func (m *Memory) GetLatest(_ context.Context, subject domain.SubjectID) (*anchorcontract.Anchor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	anchor, ok := m.anchors[subject]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *anchor
	return &copied, nil
}

func (m *Memory) put(subject domain.SubjectID, hash string, did domain.DID, version int64) TxRef {
	m.seq++
	m.anchors[subject] = &anchorcontract.Anchor{
		Subject:    subject.String(),
		AnchorHash: hash,
		DID:        did.String(),
		Version:    version,
		UpdatedAt:  time.Now().UTC(),
	}
	return TxRef(fmt.Sprintf("mem-tx-%06d", m.seq))
}
