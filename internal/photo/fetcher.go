package photo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBytes = 10 << 20

// Fetcher downloads reference photos and derives their content fingerprint.
// Fingerprinting is best-effort: any fetch failure yields an empty
// fingerprint, which downstream guards treat as "no photo on record".
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewFetcher builds a fetcher with an instrumented outbound transport.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Fetcher{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxBytes: defaultMaxBytes,
	}
}

// Fingerprint fetches the photo and returns the hex SHA-256 of its content.
// The same photo uploaded under a different URL yields the same fingerprint,
// so re-uploads never block a repeat-order discount.
func (f *Fetcher) Fingerprint(ctx context.Context, rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" || f == nil || f.Client == nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return ""
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	max := f.MaxBytes
	if max <= 0 {
		max = defaultMaxBytes
	}
	hasher := sha256.New()
	if _, err := io.Copy(hasher, io.LimitReader(resp.Body, max)); err != nil {
		return ""
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
