// Package store provides an in-memory invoice store for the CLI and the
// standalone server. Production hosts plug their own record store into the
// reconcile interfaces instead.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rezonia/jofotara-bridge/internal/model"
)

// MemoryStore keeps invoices, derived fields and attachments in memory.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	invoices    map[string]*model.Invoice
	derived     map[string]map[model.Field]string
	comments    map[string][]string
	attachments map[string][]byte

	// attachmentDir, when set, also writes attachments to disk.
	attachmentDir string

	lastResponse string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices:    map[string]*model.Invoice{},
		derived:     map[string]map[model.Field]string{},
		comments:    map[string][]string{},
		attachments: map[string][]byte{},
	}
}

// LoadFile reads one invoice or an array of invoices from a JSON file.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	s := NewMemoryStore()

	var many []model.Invoice
	if err := json.Unmarshal(data, &many); err == nil {
		for i := range many {
			s.Put(&many[i])
		}
		return s, nil
	}

	var one model.Invoice
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.Put(&one)
	return s, nil
}

// SetAttachmentDir also writes attachments under dir.
func (s *MemoryStore) SetAttachmentDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachmentDir = dir
}

// Put adds or replaces an invoice.
func (s *MemoryStore) Put(inv *model.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.Status == "" {
		inv.Status = model.StatusPending
	}
	s.invoices[inv.ID] = inv
}

// Invoice implements reconcile.InvoiceStore.
func (s *MemoryStore) Invoice(_ context.Context, id string) (*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", id)
	}
	copied := *inv
	return &copied, nil
}

// SetField implements reconcile.InvoiceStore. All bridge fields are
// supported; status, UUID and QR also update the invoice record itself.
func (s *MemoryStore) SetField(_ context.Context, id string, field model.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s not found", id)
	}

	switch field {
	case model.FieldStatus:
		inv.Status = model.Status(value)
	case model.FieldUUID:
		inv.UUID = value
	case model.FieldQR:
		inv.QR = value
	}

	if s.derived[id] == nil {
		s.derived[id] = map[model.Field]string{}
	}
	s.derived[id][field] = value
	return nil
}

// AddComment implements reconcile.InvoiceStore.
func (s *MemoryStore) AddComment(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[id] = append(s.comments[id], text)
	return nil
}

// Attach implements reconcile.AttachmentStore.
func (s *MemoryStore) Attach(_ context.Context, invoiceID, filename string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attachments[filename] = content

	if s.attachmentDir != "" {
		path := filepath.Join(s.attachmentDir, filename)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return "", fmt.Errorf("write attachment %s: %w", path, err)
		}
		return path, nil
	}
	return "/files/" + filename, nil
}

// PendingInvoices implements reconcile.PendingLister, returning invoices
// not yet successfully submitted.
func (s *MemoryStore) PendingInvoices(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, inv := range s.invoices {
		if inv.Status != model.StatusSubmitted {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// IDs returns every invoice ID in the store.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.invoices))
	for id := range s.invoices {
		ids = append(ids, id)
	}
	return ids
}

// Field returns a derived field value previously written back.
func (s *MemoryStore) Field(id string, field model.Field) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.derived[id][field]
}

// Comments returns the audit notes recorded for an invoice.
func (s *MemoryStore) Comments(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.comments[id]...)
}

// SaveResponsePreview implements transport.AuditSink by keeping the last
// truncated response body for operator inspection.
func (s *MemoryStore) SaveResponsePreview(_ context.Context, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponse = preview
	return nil
}

// LastResponse returns the most recent stored response preview.
func (s *MemoryStore) LastResponse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResponse
}
