// Package reconcile drives the end-to-end invoice send and maps the
// authority response back onto the invoice record.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/transport"
	"github.com/rezonia/jofotara-bridge/internal/ubl"
)

// errorDetailLimit bounds the failure text retained on the invoice.
const errorDetailLimit = 1000

// Response field candidates, evaluated in priority order; the first
// non-empty match wins. The upstream API is not contractually stable
// across environments.
var (
	uuidFields = []string{"EINV_INV_UUID", "UUID", "invoice_uuid", "invoiceUUID", "id"}
	qrFields   = []string{"EINV_QR", "qr", "qrCode", "qr_code"}
)

// Submitter posts a serialized document to the authority.
type Submitter interface {
	Submit(ctx context.Context, xml string) (*transport.Response, error)
}

// QRFetcher renders a QR payload into image bytes.
type QRFetcher interface {
	Fetch(ctx context.Context, payload string) []byte
}

// Reconciler orchestrates build, submit and response reconciliation for one
// invoice at a time. It holds no per-invoice state; concurrent sends of
// different invoices are safe. Serializing re-sends of the same invoice is
// the caller's job.
type Reconciler struct {
	settings    config.Settings
	store       InvoiceStore
	submitter   Submitter
	attachments AttachmentStore
	qr          QRFetcher
	logger      *zap.Logger
}

// Option configures the reconciler
type Option func(*Reconciler)

// WithAttachmentStore enables XML and QR image attachments
func WithAttachmentStore(s AttachmentStore) Option {
	return func(r *Reconciler) {
		r.attachments = s
	}
}

// WithQRFetcher enables QR image rendering after submission
func WithQRFetcher(f QRFetcher) Option {
	return func(r *Reconciler) {
		r.qr = f
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a reconciler over the given store and submitter.
func NewReconciler(settings config.Settings, store InvoiceStore, submitter Submitter, opts ...Option) *Reconciler {
	r := &Reconciler{
		settings:  settings,
		store:     store,
		submitter: submitter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send builds, submits and reconciles one invoice. The response is returned
// even when it carries no identifier; the invoice status then records the
// logical failure.
func (r *Reconciler) Send(ctx context.Context, invoiceID string) (*transport.Response, error) {
	inv, err := r.store.Invoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fetch invoice %s: %w", invoiceID, err)
	}

	result, err := r.buildXML(ctx, inv)
	if err != nil {
		return nil, err
	}

	minified := transport.Minify(result.XML)
	r.snapshotXML(ctx, inv.ID, minified)
	// Persist the document UUID before transmission so a retry of the same
	// record reuses it instead of diverging.
	r.setField(ctx, inv.ID, model.FieldUUID, result.UUID)

	resp, err := r.submitter.Submit(ctx, minified)
	if err != nil {
		r.setField(ctx, inv.ID, model.FieldStatus, string(model.StatusError))
		r.setField(ctx, inv.ID, model.FieldError, truncate(err.Error(), errorDetailLimit))
		if resp != nil {
			r.auditResponse(ctx, inv.ID, resp)
		}
		r.logger.Error("invoice submission failed",
			zap.String("invoice", inv.ID), zap.Error(err))
		return resp, err
	}

	r.applyResponse(ctx, inv.ID, resp)
	return resp, nil
}

// buildXML produces the UBL document, resolving the original invoice for
// credit notes. An empty document is a fatal transform error.
func (r *Reconciler) buildXML(ctx context.Context, inv *model.Invoice) (*ubl.Result, error) {
	in := ubl.Input{
		Invoice:        inv,
		DefaultVATRate: r.settings.FallbackVATRate(),
	}
	// Transform-time activity resolution is lenient; strict validation
	// happens in the transport client before any network call.
	if activity, err := r.settings.Activity(); err == nil {
		in.ActivityNumber = activity
	}

	if inv.IsReturn && inv.ReturnAgainst != "" {
		if orig, err := r.store.Invoice(ctx, inv.ReturnAgainst); err == nil {
			in.Original = &ubl.OriginalInvoice{
				ID:         orig.ID,
				UUID:       orig.UUID,
				GrandTotal: orig.GrandTotal,
			}
		} else {
			r.logger.Warn("original invoice not resolvable",
				zap.String("invoice", inv.ID),
				zap.String("return_against", inv.ReturnAgainst),
				zap.Error(err))
		}
	}

	result, err := ubl.Build(in)
	if err != nil {
		return nil, err
	}
	if result.XML == "" {
		return nil, model.NewTransformError(inv.ID, "empty document", nil)
	}
	return result, nil
}

// applyResponse extracts the authority identifiers and moves the invoice to
// Submitted or Error. A response lacking both identifiers is a logical
// failure even on HTTP 200.
func (r *Reconciler) applyResponse(ctx context.Context, invoiceID string, resp *transport.Response) {
	uuid := firstField(resp.Raw, uuidFields)
	qrPayload := firstField(resp.Raw, qrFields)

	if uuid != "" {
		r.setField(ctx, invoiceID, model.FieldUUID, uuid)
	}
	if qrPayload != "" {
		r.setField(ctx, invoiceID, model.FieldQR, qrPayload)
	}
	r.setField(ctx, invoiceID, model.FieldSentAt, time.Now().UTC().Format(time.RFC3339))

	status := model.StatusError
	if uuid != "" || qrPayload != "" {
		status = model.StatusSubmitted
	}
	r.setField(ctx, invoiceID, model.FieldStatus, string(status))

	r.auditResponse(ctx, invoiceID, resp)

	if qrPayload != "" {
		r.attachQRImage(ctx, invoiceID, qrPayload)
	}
}

// AttachQRImage regenerates the QR image from the payload stored on the
// invoice. Useful for records submitted before image rendering existed.
func (r *Reconciler) AttachQRImage(ctx context.Context, invoiceID string) (string, error) {
	inv, err := r.store.Invoice(ctx, invoiceID)
	if err != nil {
		return "", fmt.Errorf("fetch invoice %s: %w", invoiceID, err)
	}
	if strings.TrimSpace(inv.QR) == "" {
		return "", fmt.Errorf("invoice %s has no QR payload", invoiceID)
	}

	url := r.attachQRImage(ctx, invoiceID, inv.QR)
	if url == "" {
		return "", fmt.Errorf("could not fetch QR image from providers")
	}
	return url, nil
}

// OnInvoiceFinalized submits automatically when the toggle is enabled.
// Failures are recorded on the invoice and never disrupt the host's
// finalize flow.
func (r *Reconciler) OnInvoiceFinalized(ctx context.Context, invoiceID string) {
	if !r.settings.SendOnSubmit {
		return
	}
	if _, err := r.Send(ctx, invoiceID); err != nil {
		r.setField(ctx, invoiceID, model.FieldStatus, string(model.StatusError))
		r.setField(ctx, invoiceID, model.FieldError, truncate(err.Error(), errorDetailLimit))
		r.logger.Error("automatic submission failed",
			zap.String("invoice", invoiceID), zap.Error(err))
	}
}

// RetryPending re-sends invoices still awaiting a successful submission.
// Stores that cannot enumerate them make this a no-op. Backoff policy is
// the scheduler's responsibility, not ours.
func (r *Reconciler) RetryPending(ctx context.Context) error {
	lister, ok := r.store.(PendingLister)
	if !ok {
		return nil
	}

	ids, err := lister.PendingInvoices(ctx)
	if err != nil {
		return fmt.Errorf("list pending invoices: %w", err)
	}

	for _, id := range ids {
		if _, err := r.Send(ctx, id); err != nil {
			// Already recorded on the invoice; keep going.
			r.logger.Warn("retry failed", zap.String("invoice", id), zap.Error(err))
		}
	}
	return nil
}

// snapshotXML stores the minified document on the invoice and as an
// attachment for audit and reproducibility.
func (r *Reconciler) snapshotXML(ctx context.Context, invoiceID, xml string) {
	r.setField(ctx, invoiceID, model.FieldXML, xml)

	if r.attachments == nil {
		return
	}
	name := fmt.Sprintf("%s-ubl.xml", invoiceID)
	if _, err := r.attachments.Attach(ctx, invoiceID, name, []byte(xml)); err != nil {
		r.logger.Warn("failed to attach XML snapshot",
			zap.String("invoice", invoiceID), zap.Error(err))
	}
}

// attachQRImage renders and attaches the QR image, recording its URL on the
// invoice. Returns the attachment URL, or empty on failure.
func (r *Reconciler) attachQRImage(ctx context.Context, invoiceID, payload string) string {
	if r.qr == nil || r.attachments == nil {
		return ""
	}

	img := r.qr.Fetch(ctx, payload)
	if len(img) == 0 {
		return ""
	}

	name := fmt.Sprintf("%s-qr.png", invoiceID)
	url, err := r.attachments.Attach(ctx, invoiceID, name, img)
	if err != nil {
		r.logger.Warn("failed to attach QR image",
			zap.String("invoice", invoiceID), zap.Error(err))
		return ""
	}
	r.setField(ctx, invoiceID, model.FieldQRImage, url)
	return url
}

// auditResponse appends the full response to the invoice audit trail.
func (r *Reconciler) auditResponse(ctx context.Context, invoiceID string, resp *transport.Response) {
	text, err := json.MarshalIndent(resp.Fields, "", "  ")
	if err != nil {
		text = resp.Raw
	}
	if err := r.store.AddComment(ctx, invoiceID, string(text)); err != nil {
		r.logger.Warn("failed to record response comment",
			zap.String("invoice", invoiceID), zap.Error(err))
	}
}

// setField writes one derived field, tolerating hosts whose schema lacks
// it. No single field failure may abort the reconciliation.
func (r *Reconciler) setField(ctx context.Context, invoiceID string, field model.Field, value string) {
	if err := r.store.SetField(ctx, invoiceID, field, value); err != nil {
		r.logger.Debug("field write skipped",
			zap.String("invoice", invoiceID),
			zap.String("field", string(field)),
			zap.Error(err))
	}
}

// firstField returns the first non-empty candidate field from the raw
// response body.
func firstField(raw []byte, candidates []string) string {
	for _, name := range candidates {
		if v := gjson.GetBytes(raw, name); v.Exists() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
