package anchor

import "time"

// ContractVersion identifies the wire schema for ledger anchors. Bump when
// the anchor shape changes so independent verifiers can detect drift.
const ContractVersion = "v0.1.0"

// Anchor is the ledger's view of the latest identity anchor for one subject.
// The ledger keeps a single slot per subject; the trip that produced the
// current anchor is encoded in the DID rather than in the key.
type Anchor struct {
	Subject    string    `json:"subject"`
	AnchorHash string    `json:"anchor_hash"`
	DID        string    `json:"did"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}
