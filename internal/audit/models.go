package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Subject   string
	TripID    string
	Action    string
	Outcome   string
	TxRef     string
	Reason    string
}

type AuditAction string

const (
	ActionIdentitySubmitted AuditAction = "identity_submitted"
	ActionIdentityAnchored  AuditAction = "identity_anchored"
	ActionAnchoringFailed   AuditAction = "anchoring_failed"
	ActionIdentityVerified  AuditAction = "identity_verified"
	ActionQRIssued          AuditAction = "qr_issued"
)
