package models

import (
	"time"

	"yatri/internal/ledger"

	anchorcontract "yatri/contracts/anchor"
)

// SubmitIdentityResponse reports the outcome of one KYC submission. A
// submission can succeed without a ledger anchor; callers must check Anchored
// or the TxRef sentinel rather than assume anchoring happened.
type SubmitIdentityResponse struct {
	RecordID       string       `json:"record_id"`
	SubjectID      string       `json:"subject_id"`
	TripID         string       `json:"trip_id"`
	DID            string       `json:"did"`
	AnchorHash     string       `json:"anchor_hash"`
	Version        int64        `json:"version"`
	TxRef          ledger.TxRef `json:"tx_ref"`
	Anchored       bool         `json:"anchored"`
	StorageWarning string       `json:"storage_warning,omitempty"`
}

// VerifyResponse compares the most recent stored record for a subject with
// the ledger's latest anchor. Match is true when no on-chain data exists: no
// contradiction is possible, so no false mismatch may be asserted.
type VerifyResponse struct {
	Stored  *IdentityRecord        `json:"stored"`
	OnChain *anchorcontract.Anchor `json:"on_chain,omitempty"`
	Match   bool                   `json:"match"`
}

// QRPayload is the compact, non-secret projection of a stored record that is
// embedded in the scannable code.
type QRPayload struct {
	SubjectID   string    `json:"subject_id"`
	DID         string    `json:"did"`
	TripID      string    `json:"trip_id"`
	FullName    string    `json:"full_name"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Contacts    []Contact `json:"contacts,omitempty"`
	AnchorHash  string    `json:"anchor_hash"`
	Version     int64     `json:"version"`
	IssuedAt    time.Time `json:"issued_at"`
}

// QRResponse carries both the raw payload and the rendered PNG so a caller
// can display either.
type QRResponse struct {
	Payload QRPayload `json:"payload"`
	PNG     []byte    `json:"png_base64"`
}
