// Mock anchor ledger gateway for local development and e2e runs.
// Implements the gateway surface the registry's ledger client speaks:
//
//	POST /anchors            register a new anchor (409 if the subject has one)
//	PUT  /anchors/{subject}  update an existing anchor (404 if it has none)
//	GET  /anchors/{subject}  fetch the latest anchor
//
// Magic subjects steer behavior so tests can exercise failure paths:
//
//	0xbroke... (all b's)  -> 402 insufficient funds on writes
//	0xdead...  (all d's)  -> 502 simulated outage on every call
//	0xfee1...  (all f's)  -> responses use the legacy positional tuple shape
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8082"
	defaultLatencyMs = "50"
)

var (
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

	subjectBroke  = "0x" + strings.Repeat("b", 40)
	subjectOutage = "0x" + strings.Repeat("d", 40)
	subjectTuple  = "0x" + strings.Repeat("f", 40)
)

type anchor struct {
	Subject    string    `json:"subject"`
	AnchorHash string    `json:"anchor_hash"`
	DID        string    `json:"did"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type writeRequest struct {
	Subject    string `json:"subject"`
	AnchorHash string `json:"anchor_hash"`
	DID        string `json:"did"`
}

type ledgerState struct {
	mu      sync.Mutex
	anchors map[string]*anchor
	txSeq   int
}

func newLedgerState() *ledgerState {
	return &ledgerState{anchors: make(map[string]*anchor)}
}

func main() {
	port := getEnv("PORT", defaultPort)
	state := newLedgerState()

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/anchors", state.handleRegister)
	http.HandleFunc("/anchors/", state.handleSubject)

	log.Printf("⚓ Mock Anchor Ledger starting on port %s", port)
	log.Printf("⏱️  Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "anchor-ledger",
		"version": "1.0.0",
	})
}

func (s *ledgerState) handleRegister(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST /anchors")
		return
	}
	req, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	if intercepted(w, req.Subject, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.anchors[req.Subject]; exists {
		writeError(w, http.StatusConflict, "already_registered", "subject already has an anchor")
		return
	}
	s.anchors[req.Subject] = &anchor{
		Subject:    req.Subject,
		AnchorHash: req.AnchorHash,
		DID:        req.DID,
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
	}
	status := http.StatusCreated
	if r.URL.Query().Get("wait") == "false" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]string{"tx_ref": s.nextTxRef()})
}

func (s *ledgerState) handleSubject(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	subject := strings.TrimPrefix(r.URL.Path, "/anchors/")
	if subject == "" || strings.Contains(subject, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, subject)
	case http.MethodPut:
		s.handleUpdate(w, r, subject)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or PUT")
	}
}

func (s *ledgerState) handleGet(w http.ResponseWriter, subject string) {
	if intercepted(w, subject, false) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.anchors[subject]
	if !exists {
		writeError(w, http.StatusNotFound, "not_found", "no anchor for subject")
		return
	}
	if subject == subjectTuple {
		// Legacy gateway versions return a positional tuple.
		writeJSON(w, http.StatusOK, []any{a.AnchorHash, a.DID, a.UpdatedAt.Unix(), a.Version})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *ledgerState) handleUpdate(w http.ResponseWriter, r *http.Request, subject string) {
	req, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	if intercepted(w, subject, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.anchors[subject]
	if !exists {
		writeError(w, http.StatusNotFound, "not_registered", "subject has no anchor to update")
		return
	}
	a.AnchorHash = req.AnchorHash
	a.DID = req.DID
	a.Version++
	a.UpdatedAt = time.Now().UTC()

	status := http.StatusOK
	if r.URL.Query().Get("wait") == "false" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]string{"tx_ref": s.nextTxRef()})
}

// intercepted applies the magic-subject behaviors. Returns true when the
// response was already written.
func intercepted(w http.ResponseWriter, subject string, write bool) bool {
	switch subject {
	case subjectOutage:
		writeError(w, http.StatusBadGateway, "upstream_error", "simulated chain outage")
		return true
	case subjectBroke:
		if write {
			writeError(w, http.StatusPaymentRequired, "insufficient_funds", "signer balance too low")
			return true
		}
	}
	return false
}

func (s *ledgerState) nextTxRef() string {
	s.txSeq++
	return fmt.Sprintf("mocktx-%06d", s.txSeq)
}

func decodeWrite(w http.ResponseWriter, r *http.Request) (*writeRequest, bool) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return nil, false
	}
	if req.Subject == "" || req.AnchorHash == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "subject and anchor_hash are required")
		return nil, false
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": code, "message": message})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key, fallback string) int {
	v := getEnv(key, fallback)
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return n
}
