// Package transport submits UBL documents to the JoFotara API.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
)

// maskToken replaces secret header values in log output.
const maskToken = "********"

// responsePreviewLimit bounds the audit copy stored after each request.
const responsePreviewLimit = 1400

// secretHeaders are never logged in the clear.
var secretHeaders = []string{"Secret-Key", "Authorization", "Device-Secret"}

// AuditSink receives a truncated copy of every response body for operator
// inspection. Implementations are best-effort; errors are logged, not raised.
type AuditSink interface {
	SaveResponsePreview(ctx context.Context, preview string) error
}

// Response is the parsed authority response envelope.
type Response struct {
	StatusCode int
	// Fields is the parsed JSON object. When the body is not valid JSON it
	// holds {"text": <raw body>} so no response is ever lost.
	Fields map[string]any
	// Raw is the unmodified response body.
	Raw []byte
}

// Client submits invoices to the JoFotara endpoint.
type Client struct {
	settings   config.Settings
	httpClient *http.Client
	logger     *zap.Logger
	audit      AuditSink
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a custom request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAuditSink sets the response-preview sink
func WithAuditSink(sink AuditSink) ClientOption {
	return func(c *Client) {
		c.audit = sink
	}
}

// NewClient creates a submission client for the given settings.
func NewClient(settings config.Settings, opts ...ClientOption) *Client {
	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.RequestTimeout()},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Minify collapses redundant inter-tag whitespace into a single line while
// preserving textual content.
func Minify(xml string) string {
	if xml == "" {
		return xml
	}
	s := strings.NewReplacer("\r", "", "\n", "", "\t", "").Replace(xml)
	s = strings.TrimSpace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.ReplaceAll(s, "> <", "><")
}

// ToBase64 encodes the XML payload as required by the submission contract.
func ToBase64(xml string) string {
	return base64.StdEncoding.EncodeToString([]byte(xml))
}

// headers builds the authenticated request headers. Configuration failures
// are returned before any network attempt.
func (c *Client) headers() (http.Header, error) {
	creds, err := c.settings.ResolveCredentials()
	if err != nil {
		return nil, err
	}
	activity, err := c.settings.Activity()
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("Accept-Language", "ar")
	h.Set("Client-Id", creds.ClientID)
	h.Set("Secret-Key", creds.SecretKey)
	h.Set("Activity-Number", activity)
	// Some deployments expect the activity number under Key as well.
	h.Set("Key", activity)
	return h, nil
}

// maskHeaders returns a loggable copy with secret values replaced.
func maskHeaders(h http.Header) map[string]string {
	masked := make(map[string]string, len(h))
	for k := range h {
		masked[k] = h.Get(k)
	}
	for _, k := range secretHeaders {
		if masked[k] != "" {
			masked[k] = maskToken
		}
	}
	return masked
}

// Submit posts the serialized XML to the configured endpoint. The XML is
// minified and base64-encoded before transmission. An HTTP status >= 400
// returns both the parsed response and an APIError; the body is data for
// the caller to inspect, not control flow.
func (c *Client) Submit(ctx context.Context, xml string) (*Response, error) {
	headers, err := c.headers()
	if err != nil {
		return nil, err
	}

	url := c.settings.SubmitURL()
	payload, err := json.Marshal(map[string]string{"invoice": ToBase64(Minify(xml))})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	c.logger.Info("submitting invoice",
		zap.String("url", url),
		zap.Any("headers", maskHeaders(headers)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewTransportError(url, "build request", err)
	}
	req.Header = headers

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewTransportError(url, "request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, model.NewTransportError(url, "read response", err)
	}

	resp := parseResponse(httpResp.StatusCode, body)
	c.saveAudit(ctx, resp)

	if httpResp.StatusCode >= 400 {
		c.logger.Error("jofotara API error",
			zap.String("url", url),
			zap.Int("status", httpResp.StatusCode),
			zap.Any("headers", maskHeaders(headers)),
			zap.ByteString("body", resp.Raw),
		)
		return resp, model.NewAPIError(httpResp.StatusCode, truncate(string(resp.Raw), responsePreviewLimit))
	}

	return resp, nil
}

// parseResponse decodes the body as a JSON object, wrapping non-JSON bodies
// in a text envelope.
func parseResponse(status int, body []byte) *Response {
	resp := &Response{StatusCode: status, Raw: body}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		resp.Fields = map[string]any{"text": string(body)}
		return resp
	}
	resp.Fields = fields
	return resp
}

func (c *Client) saveAudit(ctx context.Context, resp *Response) {
	if c.audit == nil {
		return
	}
	if err := c.audit.SaveResponsePreview(ctx, truncate(string(resp.Raw), responsePreviewLimit)); err != nil {
		c.logger.Warn("failed to store response preview", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
