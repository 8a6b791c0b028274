package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/server"
	"github.com/rezonia/jofotara-bridge/internal/store"
)

func testInvoice(id string) *model.Invoice {
	return &model.Invoice{
		ID:         id,
		IssueDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Currency:   "JOD",
		GrandTotal: decimal.RequireFromString("23.200"),
		Supplier:   model.Party{Name: "Amman Trading Co", TaxID: "123456789"},
		Customer:   model.Party{Name: "Consumer"},
		Items: []model.LineItem{
			{
				Name:     "Widget",
				Quantity: decimal.NewFromInt(2),
				Rate:     decimal.RequireFromString("10.000"),
			},
		},
		Taxes: []model.TaxLine{{Rate: decimal.RequireFromString("16.0")}},
	}
}

func newTestServer(t *testing.T, authority http.HandlerFunc) (*server.Server, *store.MemoryStore) {
	t.Helper()

	upstream := httptest.NewServer(authority)
	t.Cleanup(upstream.Close)

	st := store.NewMemoryStore()
	srv := server.NewServer(&server.Config{
		Settings: config.Settings{
			BaseURL:        upstream.URL,
			ClientID:       "client-1",
			SecretKey:      "secret-1",
			ActivityNumber: "123456",
		},
	}, st)
	return srv, st
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_GetInvoice(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	st.Put(testInvoice("SINV-0001"))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/SINV-0001", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var inv model.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, "SINV-0001", inv.ID)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SendSuccess(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"EINV_INV_UUID": "uuid-123", "EINV_QR": "qr-payload"}`))
	})
	st.Put(testInvoice("SINV-0001"))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/SINV-0001/send", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.SendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(model.StatusSubmitted), resp.Status)
	assert.Equal(t, "uuid-123", resp.UUID)
	assert.Equal(t, "qr-payload", resp.QR)
	assert.Equal(t, "uuid-123", resp.Response["EINV_INV_UUID"])
}

func TestServer_SendUnknownInvoice(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/nope/send", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SendRejectedByAuthority(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"EINV_RESULTS": "missing field"}`))
	})
	st.Put(testInvoice("SINV-0001"))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/SINV-0001/send", nil))
	require.Equal(t, http.StatusBadGateway, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	resp, ok := body["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "missing field", resp["EINV_RESULTS"])

	inv, err := st.Invoice(t.Context(), "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, inv.Status)
}

func TestServer_SendMissingCredentials(t *testing.T) {
	st := store.NewMemoryStore()
	st.Put(testInvoice("SINV-0001"))
	srv := server.NewServer(&server.Config{
		Settings: config.Settings{ActivityNumber: "123456"},
	}, st)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/SINV-0001/send", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_AttachQRWithoutPayload(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	st.Put(testInvoice("SINV-0001"))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/SINV-0001/qr", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServer_Retry(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"EINV_INV_UUID": "uuid-retry"}`))
	})
	st.Put(testInvoice("SINV-0001"))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/retry", nil))
	require.Equal(t, http.StatusOK, w.Code)

	inv, err := st.Invoice(t.Context(), "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, inv.Status)
	assert.Equal(t, "uuid-retry", inv.UUID)
}
