// Package qr renders the authority QR payload into a scannable PNG image.
//
// Images come from remote chart providers tried in order; the first one
// answering with an image content type wins. An optional local encoder
// covers deployments where every provider is unreachable.
package qr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	// defaultImageSize is the rendered image edge in pixels.
	defaultImageSize = 250
	// providerTimeout bounds each provider attempt.
	providerTimeout = 10 * time.Second
)

// defaultProviders are tried in order; the %s slot takes the URL-escaped payload.
var defaultProviders = []string{
	"https://chart.googleapis.com/chart?cht=qr&chs=250x250&chld=L|0&chl=%s",
	"https://quickchart.io/qr?size=250&text=%s",
}

// Fetcher renders QR payloads into PNG bytes.
type Fetcher struct {
	providers     []string
	httpClient    *http.Client
	logger        *zap.Logger
	localFallback bool
}

// FetcherOption configures the fetcher
type FetcherOption func(*Fetcher)

// WithProviders overrides the provider URL templates
func WithProviders(providers []string) FetcherOption {
	return func(f *Fetcher) {
		f.providers = providers
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithLocalFallback enables local PNG encoding when every remote provider
// fails.
func WithLocalFallback() FetcherOption {
	return func(f *Fetcher) {
		f.localFallback = true
	}
}

// NewFetcher creates a QR image fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		providers:  defaultProviders,
		httpClient: &http.Client{Timeout: providerTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns PNG bytes for the payload. All-provider failure yields an
// empty result without error; QR rendering is never fatal to a send.
func (f *Fetcher) Fetch(ctx context.Context, payload string) []byte {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	escaped := url.QueryEscape(payload)
	for _, provider := range f.providers {
		img, err := f.fetchOne(ctx, fmt.Sprintf(provider, escaped))
		if err != nil {
			f.logger.Debug("qr provider failed", zap.String("provider", provider), zap.Error(err))
			continue
		}
		return img
	}

	if f.localFallback {
		img, err := qrcode.Encode(payload, qrcode.Low, defaultImageSize)
		if err != nil {
			f.logger.Warn("local qr encode failed", zap.Error(err))
			return nil
		}
		return img
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return img, nil
}
