// Package mirror is the thin boundary to the upstream mirror
// repository spec.md §1 scopes out of the core: "the upstream mirror
// protocol (specified only at its call-site)". This package declares
// that call-site and a minimal HTTP client, not a wire protocol.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Blob is one content-addressed object the mirror needs to receive to
// materialize an approved change.
type Blob struct {
	Digest string
	Bytes  []byte
}

// Receipt is the opaque remote acknowledgement spec.md §4.5 says
// submit() returns.
type Receipt struct {
	RemoteRef string
	Timestamp time.Time
}

// Client is the boundary contract change.Machine.Submit invokes.
// Submission failure must not be retried inside the core (spec.md §7);
// callers decide retry policy.
type Client interface {
	Submit(ctx context.Context, changeID string, blobs []Blob) (Receipt, error)
}

// Config is the ExternalMirrorConfig of spec.md §3.
type Config struct {
	URL            string
	CredentialsRef string
	Timeout        time.Duration
}

// HTTPClient is the one concrete Client: it POSTs a change's blobs to
// a configured URL and expects a JSON receipt back. This is
// deliberately minimal — spec.md explicitly scopes the real mirror
// wire protocol out of the core (§1); this exists so Submit has a
// working default rather than no implementation at all.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type submitRequest struct {
	ChangeID string `json:"change_id"`
	Blobs    []Blob `json:"blobs"`
}

type submitResponse struct {
	RemoteRef string `json:"remote_ref"`
}

func (c *HTTPClient) Submit(ctx context.Context, changeID string, blobs []Blob) (Receipt, error) {
	if c.cfg.URL == "" {
		return Receipt{}, fmt.Errorf("mirror: no upstream URL configured")
	}
	payload, err := json.Marshal(submitRequest{ChangeID: changeID, Blobs: blobs})
	if err != nil {
		return Receipt{}, fmt.Errorf("mirror: encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("mirror: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.CredentialsRef != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.CredentialsRef)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("mirror: submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Receipt{}, fmt.Errorf("mirror: upstream returned status %d", resp.StatusCode)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, fmt.Errorf("mirror: decode receipt: %w", err)
	}
	return Receipt{RemoteRef: out.RemoteRef, Timestamp: time.Now().UTC()}, nil
}

// NoopClient is a Client that always fails, used when no
// ExternalMirrorConfig is configured — submission remains a valid,
// if currently impossible, call per spec.md's "approved-but-
// unsubmitted" state.
type NoopClient struct{}

func (NoopClient) Submit(ctx context.Context, changeID string, blobs []Blob) (Receipt, error) {
	return Receipt{}, fmt.Errorf("mirror: no upstream configured")
}
