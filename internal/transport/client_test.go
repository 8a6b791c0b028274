package transport_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/transport"
)

func testSettings(baseURL string) config.Settings {
	return config.Settings{
		BaseURL:        baseURL,
		ClientID:       "client",
		SecretKey:      "secret",
		ActivityNumber: "123456",
	}
}

type memorySink struct {
	previews []string
}

func (m *memorySink) SaveResponsePreview(_ context.Context, preview string) error {
	m.previews = append(m.previews, preview)
	return nil
}

func TestMinify(t *testing.T) {
	xml := "<a>\n\t<b>  keep this text </b>\r\n</a>"
	assert.Equal(t, "<a><b> keep this text </b></a>", transport.Minify(xml))
	assert.Equal(t, "", transport.Minify(""))
}

func TestMinify_CollapsesInterTagWhitespace(t *testing.T) {
	xml := "<a>   <b/>     <c/>  </a>"
	assert.Equal(t, "<a><b/><c/></a>", transport.Minify(xml))
}

func TestToBase64_RoundTrip(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?><Invoice><cbc:ID>X</cbc:ID></Invoice>`
	decoded, err := base64.StdEncoding.DecodeString(transport.ToBase64(xml))
	require.NoError(t, err)
	assert.Equal(t, xml, string(decoded))
}

func TestSubmit_Success(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"EINV_INV_UUID":"X","EINV_QR":"Y"}`))
	}))
	defer srv.Close()

	client := transport.NewClient(testSettings(srv.URL))
	resp, err := client.Submit(context.Background(), "<Invoice>\n  <cbc:ID>1</cbc:ID>\n</Invoice>")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "X", resp.Fields["EINV_INV_UUID"])
	assert.Equal(t, "Y", resp.Fields["EINV_QR"])

	// Auth and compatibility headers.
	assert.Equal(t, "client", gotHeaders.Get("Client-Id"))
	assert.Equal(t, "secret", gotHeaders.Get("Secret-Key"))
	assert.Equal(t, "123456", gotHeaders.Get("Activity-Number"))
	assert.Equal(t, "123456", gotHeaders.Get("Key"))
	assert.Equal(t, "ar", gotHeaders.Get("Accept-Language"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	// Body carries the minified XML, base64-encoded.
	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	decoded, err := base64.StdEncoding.DecodeString(payload["invoice"])
	require.NoError(t, err)
	assert.Equal(t, "<Invoice><cbc:ID>1</cbc:ID></Invoice>", string(decoded))
}

func TestSubmit_DeviceCredentialFallback(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	settings := config.Settings{
		BaseURL:        srv.URL,
		DeviceUser:     "device",
		DeviceSecret:   "dsecret",
		ActivityNumber: "99",
	}
	_, err := transport.NewClient(settings).Submit(context.Background(), "<Invoice/>")
	require.NoError(t, err)
	assert.Equal(t, "device", gotHeaders.Get("Client-Id"))
	assert.Equal(t, "dsecret", gotHeaders.Get("Secret-Key"))
}

func TestSubmit_MissingCredentialsFailsBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	settings := config.Settings{BaseURL: srv.URL, ActivityNumber: "123"}
	_, err := transport.NewClient(settings).Submit(context.Background(), "<Invoice/>")

	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, called, "no network call expected on config error")
}

func TestSubmit_InvalidActivityNumber(t *testing.T) {
	settings := testSettings("http://unused.test")
	settings.ActivityNumber = "not-a-number"
	_, err := transport.NewClient(settings).Submit(context.Background(), "<Invoice/>")

	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSubmit_HTTPErrorReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"EINV_RESULTS":"invalid tax number"}`))
	}))
	defer srv.Close()

	resp, err := transport.NewClient(testSettings(srv.URL)).Submit(context.Background(), "<Invoice/>")

	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	// The parsed body still reaches the caller for inspection.
	require.NotNil(t, resp)
	assert.Equal(t, "invalid tax number", resp.Fields["EINV_RESULTS"])
}

func TestSubmit_NonJSONBodyWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text response"))
	}))
	defer srv.Close()

	resp, err := transport.NewClient(testSettings(srv.URL)).Submit(context.Background(), "<Invoice/>")
	require.NoError(t, err)
	assert.Equal(t, "plain text response", resp.Fields["text"])
}

func TestSubmit_NetworkErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	resp, err := transport.NewClient(testSettings(srv.URL)).Submit(context.Background(), "<Invoice/>")
	assert.Nil(t, resp)

	var trErr *model.TransportError
	require.ErrorAs(t, err, &trErr)
}

func TestSubmit_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := transport.NewClient(testSettings(srv.URL), transport.WithTimeout(20*time.Millisecond))
	_, err := client.Submit(context.Background(), "<Invoice/>")

	var trErr *model.TransportError
	require.ErrorAs(t, err, &trErr)
}

func TestSubmit_AuditPreviewStoredAndTruncated(t *testing.T) {
	long := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	sink := &memorySink{}
	client := transport.NewClient(testSettings(srv.URL), transport.WithAuditSink(sink))
	_, err := client.Submit(context.Background(), "<Invoice/>")
	require.Error(t, err)

	// The audit copy is stored even on failure, truncated to the limit.
	require.Len(t, sink.previews, 1)
	assert.Len(t, sink.previews[0], 1400)
}
