// Package jofotaralib provides a public API for submitting invoices to
// JoFotara, Jordan's national e-invoicing platform.
//
// This package exposes the core types and the Bridge facade for building
// UBL 2.1 documents, submitting them and reconciling the authority
// response back onto the invoice record.
//
// Example usage:
//
//	bridge := jofotaralib.NewBridge(settings, store)
//	resp, err := bridge.Send(ctx, "SINV-0001")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Fields["EINV_INV_UUID"])
package jofotaralib

import (
	"github.com/rezonia/jofotara-bridge/internal/config"
	"github.com/rezonia/jofotara-bridge/internal/model"
	"github.com/rezonia/jofotara-bridge/internal/reconcile"
	"github.com/rezonia/jofotara-bridge/internal/transport"
)

// Re-export core types for public API
type (
	Invoice  = model.Invoice
	LineItem = model.LineItem
	Party    = model.Party
	TaxLine  = model.TaxLine
	Status   = model.Status
	Field    = model.Field

	Settings    = config.Settings
	Credentials = config.Credentials

	Response = transport.Response

	InvoiceStore    = reconcile.InvoiceStore
	AttachmentStore = reconcile.AttachmentStore
	PendingLister   = reconcile.PendingLister
)

// Re-export invoice statuses
const (
	StatusPending   = model.StatusPending
	StatusSubmitted = model.StatusSubmitted
	StatusError     = model.StatusError
)

// Re-export derived field names
const (
	FieldStatus  = model.FieldStatus
	FieldError   = model.FieldError
	FieldUUID    = model.FieldUUID
	FieldQR      = model.FieldQR
	FieldQRImage = model.FieldQRImage
	FieldSentAt  = model.FieldSentAt
	FieldXML     = model.FieldXML
)

// Re-export error types
type (
	ConfigError    = model.ConfigError
	TransformError = model.TransformError
	TransportError = model.TransportError
	APIError       = model.APIError
)

// ErrFieldUnsupported marks a derived field the host store cannot persist.
var ErrFieldUnsupported = model.ErrFieldUnsupported
