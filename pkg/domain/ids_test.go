package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "yatri/pkg/domain-errors"
)

func TestParseSubjectIDNormalizesToLowercase(t *testing.T) {
	subject, err := ParseSubjectID("0xAbCdEf0123456789aBcDeF0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, SubjectID("0xabcdef0123456789abcdef0123456789abcdef01"), subject)
}

func TestParseSubjectIDIdempotent(t *testing.T) {
	once, err := ParseSubjectID("0xAbCdEf0123456789aBcDeF0123456789ABCDEF01")
	require.NoError(t, err)
	twice, err := ParseSubjectID(once.String())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestParseSubjectIDRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"abcdef0123456789abcdef0123456789abcdef01", // missing 0x
		"0x1234",                                   // too short
		"0x" + strings.Repeat("g", 40),             // non-hex
	}
	for _, input := range cases {
		_, err := ParseSubjectID(input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
	}
}

func TestNewTripIDEmbedsDate(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	trip := NewTripID(now)
	assert.True(t, strings.HasPrefix(trip.String(), "trip-20250115-"))

	// Entropy keeps two trips minted at the same instant distinct.
	assert.NotEqual(t, trip, NewTripID(now))
}

func TestDeriveDIDIsDeterministic(t *testing.T) {
	subject := SubjectID("0xabcdef0123456789abcdef0123456789abcdef01")
	trip := TripID("trip-1")

	a := DeriveDID("testnet", subject, trip)
	b := DeriveDID("testnet", subject, trip)
	assert.Equal(t, a, b)
	assert.Equal(t, DID("did:yatri:testnet:0xabcdef0123456789abcdef0123456789abcdef01:trip-1"), a)
}

func TestParseDID(t *testing.T) {
	_, err := ParseDID("urn:not-a-did")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	did, err := ParseDID("did:yatri:testnet:0xab:trip-1")
	require.NoError(t, err)
	assert.False(t, did.IsNil())
}
