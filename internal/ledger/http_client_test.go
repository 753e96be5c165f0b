package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatri/internal/platform/config"
	"yatri/pkg/domain"
)

const testSubject = domain.SubjectID("0xabcdef0123456789abcdef0123456789abcdef01")

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.LedgerConfig{
		Endpoint:    srv.URL,
		SigningKey:  "test-signing-key",
		ContractRef: "anchor-registry-v1",
		Timeout:     5 * time.Second,
	})
}

func TestRegisterReturnsTxRef(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/anchors", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testSubject.String(), body["subject"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_ref": "0xfeed01"})
	})

	ref, err := client.Register(context.Background(), testSubject, "aabb", "did:yatri:testnet:x:y")
	require.NoError(t, err)
	assert.Equal(t, TxRef("0xfeed01"), ref)
}

func TestRegisterConflictIsTyped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "conflict"})
	})

	_, err := client.Register(context.Background(), testSubject, "aabb", "did:x")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestUpdateMissingEntryIsTyped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/anchors/"+testSubject.String(), r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Update(context.Background(), testSubject, "aabb", "did:x")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestInsufficientFundsIsTyped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})

	_, err := client.Register(context.Background(), testSubject, "aabb", "did:x")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestGatewayErrorsMapToUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Update(context.Background(), testSubject, "aabb", "did:x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoWaitVariantsDisableWait(t *testing.T) {
	var sawWait string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		sawWait = r.URL.Query().Get("wait")
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_ref": "0xprov"})
	})

	ref, err := client.RegisterNoWait(context.Background(), testSubject, "aabb", "did:x")
	require.NoError(t, err)
	assert.Equal(t, TxRef("0xprov"), ref)
	assert.Equal(t, "false", sawWait)
}

func TestGetLatestDecodesObjectShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"subject":     testSubject.String(),
			"anchor_hash": "ccdd",
			"did":         "did:yatri:testnet:x:y",
			"version":     3,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
		})
	})

	anchor, err := client.GetLatest(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Equal(t, "ccdd", anchor.AnchorHash)
	assert.EqualValues(t, 3, anchor.Version)
}

func TestGetLatestDecodesPositionalTuple(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["ccdd","did:yatri:testnet:x:y",1735689600,2]`))
	})

	anchor, err := client.GetLatest(context.Background(), testSubject)
	require.NoError(t, err)
	assert.Equal(t, "ccdd", anchor.AnchorHash)
	assert.Equal(t, "did:yatri:testnet:x:y", anchor.DID)
	assert.EqualValues(t, 2, anchor.Version)
	assert.Equal(t, testSubject.String(), anchor.Subject)
	assert.Equal(t, int64(1735689600), anchor.UpdatedAt.Unix())
}

func TestGetLatestNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetLatest(context.Background(), testSubject)
	assert.ErrorIs(t, err, ErrNotFound)
}
