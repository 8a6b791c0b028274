package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/store"
)

func TestMemoryStore_PutAndFetch(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(&model.Invoice{ID: "SINV-0001"})

	inv, err := s.Invoice(context.Background(), "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, "SINV-0001", inv.ID)
	assert.Equal(t, model.StatusPending, inv.Status)

	_, err = s.Invoice(context.Background(), "nope")
	require.Error(t, err)
}

func TestMemoryStore_SetField(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(&model.Invoice{ID: "SINV-0001"})
	ctx := context.Background()

	require.NoError(t, s.SetField(ctx, "SINV-0001", model.FieldStatus, "Submitted"))
	require.NoError(t, s.SetField(ctx, "SINV-0001", model.FieldUUID, "u-1"))
	require.NoError(t, s.SetField(ctx, "SINV-0001", model.FieldQR, "qr-1"))
	require.NoError(t, s.SetField(ctx, "SINV-0001", model.FieldXML, "<Invoice/>"))

	inv, err := s.Invoice(ctx, "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, inv.Status)
	assert.Equal(t, "u-1", inv.UUID)
	assert.Equal(t, "qr-1", inv.QR)
	assert.Equal(t, "<Invoice/>", s.Field("SINV-0001", model.FieldXML))

	require.Error(t, s.SetField(ctx, "nope", model.FieldStatus, "Error"))
}

func TestMemoryStore_PendingInvoices(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(&model.Invoice{ID: "a"})
	s.Put(&model.Invoice{ID: "b", Status: model.StatusSubmitted})
	s.Put(&model.Invoice{ID: "c", Status: model.StatusError})

	ids, err := s.PendingInvoices(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}

func TestMemoryStore_AttachToDisk(t *testing.T) {
	dir := t.TempDir()
	s := store.NewMemoryStore()
	s.SetAttachmentDir(dir)

	url, err := s.Attach(context.Background(), "SINV-0001", "SINV-0001-ubl.xml", []byte("<Invoice/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "SINV-0001-ubl.xml"), url)

	content, err := os.ReadFile(url)
	require.NoError(t, err)
	assert.Equal(t, "<Invoice/>", string(content))
}

func TestLoadFile_SingleInvoice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"id": "SINV-0001",
		"currency": "JOD",
		"items": [{"name": "Widget", "qty": "2", "rate": "10.000", "discount_amount": "0"}],
		"discount_amount": "0",
		"grand_total": "23.200",
		"supplier": {"name": "Amman Trading Co", "tax_id": "123456789"},
		"customer": {"name": "Consumer"}
	}`), 0o644))

	s, err := store.LoadFile(path)
	require.NoError(t, err)

	inv, err := s.Invoice(context.Background(), "SINV-0001")
	require.NoError(t, err)
	assert.Equal(t, "JOD", inv.Currency)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestLoadFile_InvoiceArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "a", "items": [], "discount_amount": "0", "grand_total": "0",
		 "supplier": {"name": "S"}, "customer": {"name": "C"}},
		{"id": "b", "items": [], "discount_amount": "0", "grand_total": "0",
		 "supplier": {"name": "S"}, "customer": {"name": "C"}}
	]`), 0o644))

	s, err := store.LoadFile(path)
	require.NoError(t, err)

	_, err = s.Invoice(context.Background(), "a")
	require.NoError(t, err)
	_, err = s.Invoice(context.Background(), "b")
	require.NoError(t, err)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := store.LoadFile(path)
	require.Error(t, err)

	_, err = store.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestMemoryStore_SaveResponsePreview(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.SaveResponsePreview(context.Background(), `{"ok":true}`))
	assert.Equal(t, `{"ok":true}`, s.LastResponse())
}
