// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "yatri/pkg/domain-errors"
)

// SubjectID is the normalized wallet-style address identifying one tourist.
// Stored and compared in lowercase only; ParseSubjectID is the single place
// where normalization happens.
type SubjectID string

// TripID groups one journey/issuance for a subject. A subject may hold many
// records, one per trip.
type TripID string

// DID is the globally unique identifier minted for one (subject, trip) issuance.
type DID string

var (
	subjectPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tripPattern    = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)
)

// ParseSubjectID validates and normalizes a subject address. Normalization is
// one-directional: the lowercase form is what every downstream lookup, hash
// input, and stored row uses.
func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID cannot be empty")
	}
	if !subjectPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject ID must be a 0x-prefixed 40-hex-digit address")
	}
	return SubjectID(strings.ToLower(s)), nil
}

// ParseTripID validates a caller-supplied trip identifier.
func ParseTripID(s string) (TripID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "trip ID cannot be empty")
	}
	if !tripPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "trip ID must be 1-64 chars of [a-zA-Z0-9._-]")
	}
	return TripID(s), nil
}

// NewTripID synthesizes a trip identifier from the current date plus random
// entropy. Uniqueness is overwhelmingly likely, not cryptographically
// guaranteed; the store key is (subject, trip) so a collision only matters
// within one subject.
func NewTripID(now time.Time) TripID {
	entropy := strings.Split(uuid.New().String(), "-")[0]
	return TripID(fmt.Sprintf("trip-%s-%s", now.UTC().Format("20060102"), entropy))
}

// DeriveDID mints the deterministic DID for a (subject, trip) issuance on the
// given network. Independent verifiers can re-derive it from the same inputs.
func DeriveDID(network string, subject SubjectID, trip TripID) DID {
	return DID(fmt.Sprintf("did:yatri:%s:%s:%s", network, subject, trip))
}

// ParseDID validates a caller-supplied DID URI.
func ParseDID(s string) (DID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "DID cannot be empty")
	}
	if !strings.HasPrefix(s, "did:") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "DID must start with did:")
	}
	return DID(s), nil
}

// String methods - for logging and debugging.

func (id SubjectID) String() string { return string(id) }
func (id TripID) String() string    { return string(id) }
func (id DID) String() string       { return string(id) }

// IsNil checks - used for service-layer validation.

func (id SubjectID) IsNil() bool { return id == "" }
func (id TripID) IsNil() bool    { return id == "" }
func (id DID) IsNil() bool       { return id == "" }
