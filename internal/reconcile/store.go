package reconcile

import (
	"context"

	"github.com/rezonia/jofotara-bridge/internal/model"
)

// InvoiceStore is the host record store the reconciler reads invoices from
// and writes derived fields back to.
type InvoiceStore interface {
	// Invoice fetches one invoice with its resolved parties.
	Invoice(ctx context.Context, id string) (*model.Invoice, error)

	// SetField persists one derived field. Stores whose schema lacks the
	// field return model.ErrFieldUnsupported; the reconciler tolerates it.
	SetField(ctx context.Context, id string, field model.Field, value string) error

	// AddComment appends an audit note to the invoice.
	AddComment(ctx context.Context, id, text string) error
}

// AttachmentStore persists files against an invoice and returns their URL.
type AttachmentStore interface {
	Attach(ctx context.Context, invoiceID, filename string, content []byte) (string, error)
}

// PendingLister is optionally implemented by stores that can enumerate
// invoices still awaiting a successful submission.
type PendingLister interface {
	PendingInvoices(ctx context.Context) ([]string, error)
}
