package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the submission state of an invoice with the tax authority.
type Status string

const (
	// StatusPending means the invoice has not been submitted yet.
	StatusPending Status = "Pending"
	// StatusSubmitted means the authority returned a UUID or QR payload.
	StatusSubmitted Status = "Submitted"
	// StatusError means submission failed or the response carried no identifier.
	StatusError Status = "Error"
)

// Party is a supplier or customer on the invoice.
// TaxID may be empty for customers.
type Party struct {
	Name             string `json:"name"`
	TaxID            string `json:"tax_id,omitempty"`
	PostalZone       string `json:"postal_zone,omitempty"`
	CountrySubentity string `json:"country_subentity,omitempty"`
	CountryCode      string `json:"country_code,omitempty"`
}

// LineItem is one item row on an invoice. Quantity, Rate and Discount keep
// the sign they carry in the host record; credit notes store them negative.
type LineItem struct {
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"qty"`
	Rate           decimal.Decimal `json:"rate"`
	UOM            string          `json:"uom,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	// ItemTaxRate is the host's per-item tax map serialized as JSON,
	// e.g. {"VAT - JO": 16.0}. Empty when the item has no own rate.
	ItemTaxRate string `json:"item_tax_rate,omitempty"`
}

// VATRate returns the first non-zero rate from the per-item tax map,
// or zero when the item carries none.
func (li LineItem) VATRate() decimal.Decimal {
	if li.ItemTaxRate == "" {
		return decimal.Zero
	}
	var rates map[string]float64
	if err := json.Unmarshal([]byte(li.ItemTaxRate), &rates); err != nil {
		return decimal.Zero
	}
	for _, v := range rates {
		rate := decimal.NewFromFloat(v)
		if !rate.IsZero() {
			return rate.Abs()
		}
	}
	return decimal.Zero
}

// TaxLine is a document-level tax row.
type TaxLine struct {
	Description string          `json:"description,omitempty"`
	Rate        decimal.Decimal `json:"rate"`
}

// Invoice is the host invoice record as read by the bridge.
// The bridge never mutates it directly; derived fields are written back
// through the store interfaces.
type Invoice struct {
	ID             string          `json:"id"`
	IssueDate      time.Time       `json:"issue_date"`
	Currency       string          `json:"currency,omitempty"`
	IsReturn       bool            `json:"is_return"`
	ReturnAgainst  string          `json:"return_against,omitempty"`
	Remarks        string          `json:"remarks,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	Items          []LineItem      `json:"items"`
	Taxes          []TaxLine       `json:"taxes,omitempty"`

	Supplier Party `json:"supplier"`
	Customer Party `json:"customer"`

	// Authority-issued identifiers, present after a successful submission.
	UUID string `json:"uuid,omitempty"`
	QR   string `json:"qr,omitempty"`

	Status Status `json:"status,omitempty"`
}

// DocumentVATRate returns the first non-zero rate among the document-level
// tax lines, or zero when there is none.
func (inv *Invoice) DocumentVATRate() decimal.Decimal {
	for _, t := range inv.Taxes {
		if !t.Rate.IsZero() {
			return t.Rate.Abs()
		}
	}
	return decimal.Zero
}

// Field names an invoice field the reconciler persists back to the host.
// Stores may reject fields their schema lacks with ErrFieldUnsupported.
type Field string

const (
	FieldStatus  Field = "status"
	FieldError   Field = "error"
	FieldUUID    Field = "uuid"
	FieldQR      Field = "qr"
	FieldQRImage Field = "qr_image"
	FieldSentAt  Field = "sent_at"
	FieldXML     Field = "xml"
)
