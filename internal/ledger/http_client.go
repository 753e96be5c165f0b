package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"yatri/internal/platform/config"
	"yatri/pkg/domain"

	anchorcontract "yatri/contracts/anchor"
)

// HTTPClient talks to the ledger gateway over REST. The gateway owns the
// chain-specific addressing and signing; this adapter only authenticates to
// the gateway (short-lived HS256 bearer tokens) and maps its responses to
// typed outcomes.
type HTTPClient struct {
	baseURL     string
	signingKey  []byte
	contractRef string
	httpClient  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// HTTPClientOption configures the HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// NewHTTPClient creates a new gateway-backed ledger client.
func NewHTTPClient(cfg config.LedgerConfig, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     cfg.Endpoint,
		signingKey:  []byte(cfg.SigningKey),
		contractRef: cfg.ContractRef,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// writeRequest is the body for register and update calls.
type writeRequest struct {
	Subject    string `json:"subject"`
	AnchorHash string `json:"anchor_hash"`
	DID        string `json:"did"`
}

// errorResponse is the gateway's structured error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) Register(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return c.write(ctx, http.MethodPost, c.baseURL+"/anchors", subject, hash, did, true)
}

func (c *HTTPClient) Update(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return c.write(ctx, http.MethodPut, c.baseURL+"/anchors/"+subject.String(), subject, hash, did, true)
}

func (c *HTTPClient) RegisterNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return c.write(ctx, http.MethodPost, c.baseURL+"/anchors", subject, hash, did, false)
}

func (c *HTTPClient) UpdateNoWait(ctx context.Context, subject domain.SubjectID, hash string, did domain.DID) (TxRef, error) {
	return c.write(ctx, http.MethodPut, c.baseURL+"/anchors/"+subject.String(), subject, hash, did, false)
}

func (c *HTTPClient) write(ctx context.Context, method, url string, subject domain.SubjectID, hash string, did domain.DID, wait bool) (TxRef, error) {
	body, err := json.Marshal(writeRequest{
		Subject:    subject.String(),
		AnchorHash: hash,
		DID:        did.String(),
	})
	if err != nil {
		return "", fmt.Errorf("encode ledger write: %w", err)
	}

	if !wait {
		url += "?wait=false"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req, subject); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted {
		var out struct {
			TxRef string `json:"tx_ref"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode ledger write response: %w", err)
		}
		if out.TxRef == "" {
			return "", fmt.Errorf("ledger write response missing tx_ref")
		}
		return TxRef(out.TxRef), nil
	}

	return "", c.mapError(resp)
}

func (c *HTTPClient) GetLatest(ctx context.Context, subject domain.SubjectID) (*anchorcontract.Anchor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/anchors/"+subject.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build ledger request: %w", err)
	}
	if err := c.authorize(req, subject); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ledger response: %w", err)
	}
	return decodeAnchor(raw, subject)
}

// decodeAnchor tolerates both the structured object shape and the legacy
// positional tuple [hash, did, updatedAtUnix, version] some gateway versions
// return. Normalizing the heterogeneity here keeps every caller on one shape.
func decodeAnchor(raw []byte, subject domain.SubjectID) (*anchorcontract.Anchor, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, fmt.Errorf("decode ledger tuple: %w", err)
		}
		if len(tuple) < 4 {
			return nil, fmt.Errorf("ledger tuple has %d elements, want 4", len(tuple))
		}
		out := &anchorcontract.Anchor{Subject: subject.String()}
		var updatedAt int64
		if err := json.Unmarshal(tuple[0], &out.AnchorHash); err != nil {
			return nil, fmt.Errorf("decode ledger tuple hash: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &out.DID); err != nil {
			return nil, fmt.Errorf("decode ledger tuple did: %w", err)
		}
		if err := json.Unmarshal(tuple[2], &updatedAt); err != nil {
			return nil, fmt.Errorf("decode ledger tuple timestamp: %w", err)
		}
		if err := json.Unmarshal(tuple[3], &out.Version); err != nil {
			return nil, fmt.Errorf("decode ledger tuple version: %w", err)
		}
		out.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		return out, nil
	}

	var out anchorcontract.Anchor
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode ledger anchor: %w", err)
	}
	if out.Subject == "" {
		out.Subject = subject.String()
	}
	return &out, nil
}

// authorize attaches a short-lived bearer token scoped to the contract and
// subject of this call.
func (c *HTTPClient) authorize(req *http.Request, subject domain.SubjectID) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "yatri-registry",
		"aud": c.contractRef,
		"sub": subject.String(),
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return fmt.Errorf("sign ledger token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}

// mapError converts gateway status codes into typed ledger conditions.
func (c *HTTPClient) mapError(resp *http.Response) error {
	var envelope errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	switch resp.StatusCode {
	case http.StatusConflict:
		return ErrAlreadyRegistered
	case http.StatusNotFound, http.StatusPreconditionFailed:
		return ErrNotRegistered
	case http.StatusPaymentRequired:
		return ErrInsufficientFunds
	default:
		if envelope.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnavailable, envelope.Message)
		}
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
}
