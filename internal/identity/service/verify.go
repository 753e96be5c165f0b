package service

import (
	"context"
	"errors"
	"fmt"

	"yatri/internal/audit"
	"yatri/internal/identity/models"
	"yatri/internal/ledger"
	"yatri/pkg/domain"
)

// Verify compares the most recent stored record for a subject against the
// ledger's latest anchor. Match is true when the hashes agree or when the
// ledger holds no anchor: absent on-chain data cannot contradict the store,
// so it is never reported as a mismatch. Ledger outages surface as errors
// rather than a fabricated verdict.
func (s *Service) Verify(ctx context.Context, subjectRaw string) (*models.VerifyResponse, error) {
	subject, err := domain.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Latest(ctx, subject)
	if err != nil {
		return nil, err
	}

	resp := &models.VerifyResponse{Stored: stored, Match: true}

	if s.ledger != nil {
		onChain, err := s.ledger.GetLatest(ctx, subject)
		switch {
		case err == nil:
			resp.OnChain = onChain
			resp.Match = onChain.AnchorHash == stored.AnchorHash
		case errors.Is(err, ledger.ErrNotFound):
			// No anchor on the ledger: nothing to contradict.
		default:
			return nil, fmt.Errorf("fetch latest anchor: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(fmt.Sprintf("%t", resp.Match)).Inc()
	}
	if s.auditor != nil {
		outcome := "match"
		if !resp.Match {
			outcome = "mismatch"
		}
		if err := s.auditor.Emit(ctx, audit.Event{
			Subject: subject.String(),
			TripID:  stored.TripID.String(),
			Action:  string(audit.ActionIdentityVerified),
			Outcome: outcome,
		}); err != nil {
			s.logger.Error("emit audit event", "error", err, "subject", subject)
		}
	}
	return resp, nil
}
