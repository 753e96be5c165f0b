package models

import (
	"time"

	"yatri/pkg/domain"
	"yatri/internal/ledger"
)

// IdentityRecord is the registry's versioned local copy of one KYC issuance.
// (SubjectID, TripID) is the unique key; at most one live record per key.
// AnchorHash is a pure function of the business payload: any payload change
// recomputes the hash and bumps Version in the same operation. Records are
// never physically deleted.
type IdentityRecord struct {
	ID              string           `json:"id"`
	SubjectID       domain.SubjectID `json:"subject_id"`
	TripID          domain.TripID    `json:"trip_id"`
	DID             domain.DID       `json:"did"`
	AnchorHash      string           `json:"anchor_hash"`
	Version         int64            `json:"version"`
	LedgerTxRef     ledger.TxRef     `json:"ledger_tx_ref"`
	FullName        string           `json:"full_name"`
	Destination     string           `json:"destination"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	EncryptedPIIRef string           `json:"encrypted_pii_ref,omitempty"`
	Contacts        []Contact        `json:"contacts,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Contact is one entry of the minimal emergency contact list carried in the
// hash input.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Anchored reports whether the record's current hash made it onto the ledger.
func (r *IdentityRecord) Anchored() bool {
	return r.LedgerTxRef != "" && r.LedgerTxRef != ledger.TxRefAnchoringFailed
}

// HashPayload projects the business fields that feed the anchor hash. The
// shape is part of the external contract: independent verifiers rebuild this
// exact structure to reproduce the hash.
func (r *IdentityRecord) HashPayload() map[string]any {
	return HashPayload(r.SubjectID, r.TripID, r.FullName, r.Destination, r.StartDate, r.EndDate, r.Contacts)
}

// HashPayload builds the canonical hash input for one identity payload.
func HashPayload(subject domain.SubjectID, trip domain.TripID, fullName, destination, startDate, endDate string, contacts []Contact) map[string]any {
	contactList := make([]any, 0, len(contacts))
	for _, c := range contacts {
		contactList = append(contactList, map[string]any{
			"name":  c.Name,
			"phone": c.Phone,
		})
	}
	return map[string]any{
		"subject":     subject.String(),
		"trip_id":     trip.String(),
		"full_name":   fullName,
		"destination": destination,
		"start_date":  startDate,
		"end_date":    endDate,
		"contacts":    contactList,
	}
}
