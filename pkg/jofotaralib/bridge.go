package jofotaralib

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/rezonia/jofotara-bridge/internal/qr"
	"github.com/rezonia/jofotara-bridge/internal/reconcile"
	"github.com/rezonia/jofotara-bridge/internal/transport"
	"github.com/rezonia/jofotara-bridge/internal/ubl"
)

// Bridge is the embeddable entry point for host systems. It wires the
// transport client and reconciler over the host's invoice store.
type Bridge struct {
	settings   Settings
	store      InvoiceStore
	reconciler *reconcile.Reconciler
}

// BridgeOption configures the bridge
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	attachments AttachmentStore
	httpClient  *http.Client
	logger      *zap.Logger
	renderQR    bool
	auditSink   transport.AuditSink
}

// WithAttachments enables XML snapshot and QR image attachments.
func WithAttachments(s AttachmentStore) BridgeOption {
	return func(o *bridgeOptions) {
		o.attachments = s
	}
}

// WithQRRendering renders returned QR payloads into PNG attachments.
func WithQRRendering() BridgeOption {
	return func(o *bridgeOptions) {
		o.renderQR = true
	}
}

// WithHTTPClient overrides the HTTP client used for submissions.
func WithHTTPClient(hc *http.Client) BridgeOption {
	return func(o *bridgeOptions) {
		o.httpClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) BridgeOption {
	return func(o *bridgeOptions) {
		o.logger = logger
	}
}

// WithAuditSink records a truncated copy of every authority response.
func WithAuditSink(sink transport.AuditSink) BridgeOption {
	return func(o *bridgeOptions) {
		o.auditSink = sink
	}
}

// NewBridge creates a bridge over the host's invoice store.
func NewBridge(settings Settings, store InvoiceStore, opts ...BridgeOption) *Bridge {
	options := bridgeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []transport.ClientOption{transport.WithLogger(options.logger)}
	if options.httpClient != nil {
		clientOpts = append(clientOpts, transport.WithHTTPClient(options.httpClient))
	}
	clientOpts = append(clientOpts, transport.WithTimeout(settings.RequestTimeout()))
	if options.auditSink != nil {
		clientOpts = append(clientOpts, transport.WithAuditSink(options.auditSink))
	}
	client := transport.NewClient(settings, clientOpts...)

	recOpts := []reconcile.Option{reconcile.WithLogger(options.logger)}
	if options.attachments != nil {
		recOpts = append(recOpts, reconcile.WithAttachmentStore(options.attachments))
	}
	if options.renderQR {
		fetcherOpts := []qr.FetcherOption{
			qr.WithLogger(options.logger),
			qr.WithLocalFallback(),
		}
		if options.httpClient != nil {
			fetcherOpts = append(fetcherOpts, qr.WithHTTPClient(options.httpClient))
		}
		recOpts = append(recOpts, reconcile.WithQRFetcher(qr.NewFetcher(fetcherOpts...)))
	}

	return &Bridge{
		settings:   settings,
		store:      store,
		reconciler: reconcile.NewReconciler(settings, store, client, recOpts...),
	}
}

// Send builds, submits and reconciles one invoice. The authority response is
// returned even on rejection so callers can inspect it.
func (b *Bridge) Send(ctx context.Context, invoiceID string) (*Response, error) {
	return b.reconciler.Send(ctx, invoiceID)
}

// BuildXML produces the UBL 2.1 document for an invoice without submitting
// it. Credit notes resolve their original invoice through the store.
func (b *Bridge) BuildXML(ctx context.Context, invoiceID string) (string, error) {
	inv, err := b.store.Invoice(ctx, invoiceID)
	if err != nil {
		return "", err
	}

	in := ubl.Input{Invoice: inv, DefaultVATRate: b.settings.FallbackVATRate()}
	if activity, err := b.settings.Activity(); err == nil {
		in.ActivityNumber = activity
	}
	if inv.IsReturn && inv.ReturnAgainst != "" {
		if orig, err := b.store.Invoice(ctx, inv.ReturnAgainst); err == nil {
			in.Original = &ubl.OriginalInvoice{
				ID:         orig.ID,
				UUID:       orig.UUID,
				GrandTotal: orig.GrandTotal,
			}
		}
	}

	result, err := ubl.Build(in)
	if err != nil {
		return "", err
	}
	return result.XML, nil
}

// AttachQRImage renders the QR payload stored on the invoice into a PNG
// attachment and returns its URL.
func (b *Bridge) AttachQRImage(ctx context.Context, invoiceID string) (string, error) {
	return b.reconciler.AttachQRImage(ctx, invoiceID)
}

// OnInvoiceFinalized submits automatically when SendOnSubmit is enabled.
// Safe to call from host hooks; failures never propagate.
func (b *Bridge) OnInvoiceFinalized(ctx context.Context, invoiceID string) {
	b.reconciler.OnInvoiceFinalized(ctx, invoiceID)
}

// RetryPending re-sends every invoice not yet successfully submitted.
func (b *Bridge) RetryPending(ctx context.Context) error {
	return b.reconciler.RetryPending(ctx)
}
