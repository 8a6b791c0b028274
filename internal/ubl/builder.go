// Package ubl builds UBL 2.1 invoice documents in the JoFotara profile.
//
// The destination validator mandates a fixed element order. The order is
// encoded declaratively in the sections slice below: each entry pairs a
// condition with a builder, and the slice order is the schema order.
// Reordering entries is a compliance bug, not a style choice.
package ubl

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/jofotara-bridge/internal/decimal"
	"github.com/rezonia/jofotara-bridge/internal/model"
)

// UBL 2.1 namespaces. The document namespace is unprefixed; the component
// namespaces are bound to fixed prefixes.
const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

const (
	profileID   = "reporting:1.0"
	typeInvoice = "388"
	typeCredit  = "381"
	// The type-name attribute is a fixed constant for both document types.
	typeNameAttr = "022"

	// Header currency code and the currencyID carried by every amount.
	defaultCurrency  = "JOD"
	amountCurrencyID = "JO"

	vatSchemeAgency = "6"
	vatScheme5305   = "UN/ECE 5305"
	vatScheme5153   = "UN/ECE 5153"

	// Reversal payment means for credit notes.
	paymentMeansCode   = "10"
	paymentMeansListID = "UN/ECE 4461"

	defaultSubentity = "JO-AM"
	countryCode      = "JO"
)

// OriginalInvoice carries the referenced invoice data for a credit note.
type OriginalInvoice struct {
	ID         string
	UUID       string
	GrandTotal decimal.Decimal
}

// Input is the invoice plus resolved party and settings data the builder
// needs. Parties travel on the invoice itself.
type Input struct {
	Invoice *model.Invoice

	// ActivityNumber is the normalized authority activity id. Empty skips
	// the SellerSupplierParty block.
	ActivityNumber string

	// DefaultVATRate is used when neither the item nor the document
	// carries a rate.
	DefaultVATRate decimal.Decimal

	// Original is the referenced invoice for returns, when resolvable.
	Original *OriginalInvoice
}

// Result is the built document.
type Result struct {
	XML string
	// UUID is the document UUID, either reused from the invoice or freshly
	// generated. The caller persists it so retries stay stable.
	UUID string
}

// line is a computed invoice line ready for rendering.
type line struct {
	name     string
	unitCode string
	qty      decimal.Decimal
	price    decimal.Decimal
	discount decimal.Decimal
	net      decimal.Decimal
	vat      decimal.Decimal
	rate     decimal.Decimal
}

// document is the computed intermediate the section builders render from.
type document struct {
	in        Input
	inv       *model.Invoice
	uuid      string
	issueDate string
	typeCode  string
	currency  string
	activity  string

	lines            []line
	headerDiscount   decimal.Decimal
	vatSum           decimal.Decimal
	netAfterDiscount decimal.Decimal
	inclusiveTotal   decimal.Decimal
	payable          decimal.Decimal
	globalRate       decimal.Decimal
}

// section pairs a condition with an element builder. The slice order below
// is the schema-mandated element order.
type section struct {
	name  string
	when  func(d *document) bool
	build func(d *document, root *etree.Element)
}

func always(*document) bool { return true }

var sections = []section{
	{"ProfileID", always, buildProfileID},
	{"ID", always, buildID},
	{"UUID", always, buildUUID},
	{"IssueDate", always, buildIssueDate},
	{"InvoiceTypeCode", always, buildTypeCode},
	{"CurrencyCodes", always, buildCurrencyCodes},
	{"BillingReference", isReturn, buildBillingReference},
	{"AdditionalDocumentReference", always, buildICVReference},
	{"AccountingSupplierParty", always, buildSupplierParty},
	{"AccountingCustomerParty", always, buildCustomerParty},
	{"SellerSupplierParty", hasActivity, buildSellerSupplierParty},
	{"PaymentMeans", isReturn, buildPaymentMeans},
	{"AllowanceCharge", always, buildHeaderAllowance},
	{"TaxTotal", always, buildHeaderTaxTotal},
	{"LegalMonetaryTotal", always, buildMonetaryTotal},
	{"InvoiceLines", always, buildInvoiceLines},
}

func isReturn(d *document) bool    { return d.inv.IsReturn }
func hasActivity(d *document) bool { return d.activity != "" }

// Build produces the UBL 2.1 document for one invoice or credit note.
func Build(in Input) (*Result, error) {
	if in.Invoice == nil {
		return nil, model.NewTransformError("", "nil invoice", nil)
	}

	d, err := compute(in)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", nsInvoice)
	root.CreateAttr("xmlns:cac", nsCAC)
	root.CreateAttr("xmlns:cbc", nsCBC)
	root.CreateAttr("xmlns:ext", nsEXT)

	for _, s := range sections {
		if s.when(d) {
			s.build(d, root)
		}
	}

	xml, err := doc.WriteToString()
	if err != nil {
		return nil, model.NewTransformError(in.Invoice.ID, "serialize document", err)
	}
	return &Result{XML: xml, UUID: d.uuid}, nil
}

// compute derives per-line and document totals. Amount rounding happens per
// line, then the rounded values are summed; the header VAT is the exact sum
// of rounded line VAT amounts.
func compute(in Input) (*document, error) {
	inv := in.Invoice

	d := &document{in: in, inv: inv, activity: in.ActivityNumber}

	d.uuid = inv.UUID
	if d.uuid == "" {
		d.uuid = uuid.NewString()
	}

	issue := inv.IssueDate
	if issue.IsZero() {
		issue = time.Now()
	}
	d.issueDate = issue.Format("2006-01-02")

	d.typeCode = typeInvoice
	if inv.IsReturn {
		d.typeCode = typeCredit
	}

	d.currency = defaultCurrency
	if inv.Currency != "" {
		d.currency = inv.Currency
	}

	fallbackRate := in.DefaultVATRate
	if fallbackRate.IsZero() {
		fallbackRate = decimal.RequireFromString("16.0")
	}
	d.globalRate = inv.DocumentVATRate()
	if d.globalRate.IsZero() {
		d.globalRate = fallbackRate
	}

	netSum := decimal.Zero
	vatSum := decimal.Zero
	for _, it := range inv.Items {
		qty, price, discount := it.Quantity, it.Rate, it.DiscountAmount
		if inv.IsReturn {
			// Credit notes emit non-negative magnitudes regardless of
			// the sign stored on the host record.
			qty, price, discount = qty.Abs(), price.Abs(), discount.Abs()
		}

		rate := it.VATRate()
		if rate.IsZero() {
			rate = d.globalRate
		}

		net := money.Round3(money.Clamp(qty.Mul(price).Sub(discount)))
		vat := money.Round3(net.Mul(rate).Div(decimal.NewFromInt(100)))

		netSum = netSum.Add(net)
		vatSum = vatSum.Add(vat)

		name := it.Name
		if name == "" {
			name = "Item"
		}

		d.lines = append(d.lines, line{
			name:     name,
			unitCode: UnitCode(it.UOM),
			qty:      qty,
			price:    price,
			discount: discount,
			net:      net,
			vat:      vat,
			rate:     rate,
		})
	}

	d.headerDiscount = money.Round3(inv.DiscountAmount)
	d.vatSum = vatSum
	d.netAfterDiscount = money.Clamp(netSum.Sub(d.headerDiscount))
	d.inclusiveTotal = d.netAfterDiscount.Add(d.vatSum)
	d.payable = d.inclusiveTotal

	return d, nil
}

// Element builders, one per schema section.

func buildProfileID(d *document, root *etree.Element) {
	root.CreateElement("cbc:ProfileID").SetText(profileID)
}

func buildID(d *document, root *etree.Element) {
	root.CreateElement("cbc:ID").SetText(d.inv.ID)
}

func buildUUID(d *document, root *etree.Element) {
	root.CreateElement("cbc:UUID").SetText(d.uuid)
}

func buildIssueDate(d *document, root *etree.Element) {
	root.CreateElement("cbc:IssueDate").SetText(d.issueDate)
}

func buildTypeCode(d *document, root *etree.Element) {
	tc := root.CreateElement("cbc:InvoiceTypeCode")
	tc.CreateAttr("name", typeNameAttr)
	tc.SetText(d.typeCode)
}

func buildCurrencyCodes(d *document, root *etree.Element) {
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(d.currency)
	root.CreateElement("cbc:TaxCurrencyCode").SetText(d.currency)
}

func buildBillingReference(d *document, root *etree.Element) {
	ref := root.CreateElement("cac:BillingReference").
		CreateElement("cac:InvoiceDocumentReference")
	if d.in.Original == nil {
		if d.inv.ReturnAgainst != "" {
			ref.CreateElement("cbc:ID").SetText(d.inv.ReturnAgainst)
		}
		return
	}
	if d.in.Original.ID != "" {
		ref.CreateElement("cbc:ID").SetText(d.in.Original.ID)
	}
	if d.in.Original.UUID != "" {
		ref.CreateElement("cbc:UUID").SetText(d.in.Original.UUID)
	}
	// The original grand total travels as a description.
	ref.CreateElement("cbc:DocumentDescription").SetText(money.Amount(d.in.Original.GrandTotal))
}

func buildICVReference(d *document, root *etree.Element) {
	ref := root.CreateElement("cac:AdditionalDocumentReference")
	ref.CreateElement("cbc:ID").SetText("ICV")
	ref.CreateElement("cbc:UUID").SetText("1")
}

func buildSupplierParty(d *document, root *etree.Element) {
	party := root.CreateElement("cac:AccountingSupplierParty").CreateElement("cac:Party")

	addr := party.CreateElement("cac:PostalAddress")
	if d.inv.Supplier.PostalZone != "" {
		addr.CreateElement("cbc:PostalZone").SetText(d.inv.Supplier.PostalZone)
	}
	addr.CreateElement("cbc:CountrySubentityCode").SetText(subentity(d.inv.Supplier))
	addr.CreateElement("cac:Country").CreateElement("cbc:IdentificationCode").SetText(countryCode)

	pts := party.CreateElement("cac:PartyTaxScheme")
	if d.inv.Supplier.TaxID != "" {
		pts.CreateElement("cbc:CompanyID").SetText(d.inv.Supplier.TaxID)
	}
	pts.CreateElement("cac:TaxScheme").CreateElement("cbc:ID").SetText("VAT")

	party.CreateElement("cac:PartyLegalEntity").
		CreateElement("cbc:RegistrationName").SetText(d.inv.Supplier.Name)
}

func buildCustomerParty(d *document, root *etree.Element) {
	party := root.CreateElement("cac:AccountingCustomerParty").CreateElement("cac:Party")

	// Tax-number placeholder; text stays empty for consumers.
	id := party.CreateElement("cac:PartyIdentification").CreateElement("cbc:ID")
	id.CreateAttr("schemeID", "TN")
	if d.inv.Customer.TaxID != "" {
		id.SetText(d.inv.Customer.TaxID)
	}

	addr := party.CreateElement("cac:PostalAddress")
	addr.CreateElement("cbc:CountrySubentityCode").SetText(subentity(d.inv.Customer))
	addr.CreateElement("cac:Country").CreateElement("cbc:IdentificationCode").SetText(countryCode)

	pts := party.CreateElement("cac:PartyTaxScheme")
	pts.CreateElement("cac:TaxScheme").CreateElement("cbc:ID").SetText("VAT")

	name := d.inv.Customer.Name
	if name == "" {
		name = "Consumer"
	}
	party.CreateElement("cac:PartyLegalEntity").
		CreateElement("cbc:RegistrationName").SetText(name)
}

func buildSellerSupplierParty(d *document, root *etree.Element) {
	root.CreateElement("cac:SellerSupplierParty").
		CreateElement("cac:Party").
		CreateElement("cac:PartyIdentification").
		CreateElement("cbc:ID").SetText(d.activity)
}

func buildPaymentMeans(d *document, root *etree.Element) {
	pm := root.CreateElement("cac:PaymentMeans")
	code := pm.CreateElement("cbc:PaymentMeansCode")
	code.CreateAttr("listID", paymentMeansListID)
	code.SetText(paymentMeansCode)

	reason := d.inv.Remarks
	if reason == "" {
		reason = "مرتجع"
	}
	note := reason
	if d.inv.ReturnAgainst != "" {
		note = fmt.Sprintf("عكس: %s, %s", d.inv.ReturnAgainst, reason)
	}
	pm.CreateElement("cbc:InstructionNote").SetText(note)
}

func buildHeaderAllowance(d *document, root *etree.Element) {
	// Always present; the amount may be zero.
	ac := root.CreateElement("cac:AllowanceCharge")
	ac.CreateElement("cbc:ChargeIndicator").SetText("false")
	ac.CreateElement("cbc:AllowanceChargeReason").SetText("discount")
	amountElement(ac, "cbc:Amount", d.headerDiscount)
}

func buildHeaderTaxTotal(d *document, root *etree.Element) {
	tt := root.CreateElement("cac:TaxTotal")
	amountElement(tt, "cbc:TaxAmount", d.vatSum)

	if !d.inv.IsReturn {
		return
	}
	// Credit notes carry a nested subtotal with the tax category.
	sub := tt.CreateElement("cac:TaxSubtotal")
	amountElement(sub, "cbc:TaxableAmount", d.netAfterDiscount)
	amountElement(sub, "cbc:TaxAmount", d.vatSum)
	taxCategory(sub, d.globalRate)
}

func buildMonetaryTotal(d *document, root *etree.Element) {
	lmt := root.CreateElement("cac:LegalMonetaryTotal")
	amountElement(lmt, "cbc:TaxExclusiveAmount", d.netAfterDiscount)
	amountElement(lmt, "cbc:TaxInclusiveAmount", d.inclusiveTotal)
	amountElement(lmt, "cbc:AllowanceTotalAmount", d.headerDiscount)
	if d.inv.IsReturn {
		amountElement(lmt, "cbc:PrepaidAmount", decimal.Zero)
	}
	amountElement(lmt, "cbc:PayableAmount", d.payable)
}

func buildInvoiceLines(d *document, root *etree.Element) {
	singleLine := len(d.lines) == 1
	for i, l := range d.lines {
		il := root.CreateElement("cac:InvoiceLine")
		il.CreateElement("cbc:ID").SetText(strconv.Itoa(i + 1))

		qty := il.CreateElement("cbc:InvoicedQuantity")
		qty.CreateAttr("unitCode", l.unitCode)
		qty.SetText(money.Quantity(l.qty))

		amountElement(il, "cbc:LineExtensionAmount", l.net)

		tt := il.CreateElement("cac:TaxTotal")
		amountElement(tt, "cbc:TaxAmount", l.vat)
		if singleLine {
			amountElement(tt, "cbc:RoundingAmount", d.payable)
		}

		sub := tt.CreateElement("cac:TaxSubtotal")
		amountElement(sub, "cbc:TaxableAmount", l.net)
		amountElement(sub, "cbc:TaxAmount", l.vat)
		taxCategory(sub, l.rate)

		il.CreateElement("cac:Item").CreateElement("cbc:Name").SetText(l.name)

		price := il.CreateElement("cac:Price")
		amountElement(price, "cbc:PriceAmount", l.price)
		pac := price.CreateElement("cac:AllowanceCharge")
		pac.CreateElement("cbc:ChargeIndicator").SetText("false")
		pac.CreateElement("cbc:AllowanceChargeReason").SetText("DISCOUNT")
		amountElement(pac, "cbc:Amount", l.discount)
	}
}

// amountElement appends a monetary element with the fixed amount currencyID.
func amountElement(parent *etree.Element, tag string, v decimal.Decimal) {
	e := parent.CreateElement(tag)
	e.CreateAttr("currencyID", amountCurrencyID)
	e.SetText(money.Amount(v))
}

// taxCategory appends the standard-rate VAT category block.
func taxCategory(parent *etree.Element, rate decimal.Decimal) {
	cat := parent.CreateElement("cac:TaxCategory")
	id := cat.CreateElement("cbc:ID")
	id.CreateAttr("schemeAgencyID", vatSchemeAgency)
	id.CreateAttr("schemeID", vatScheme5305)
	id.SetText("S")
	cat.CreateElement("cbc:Percent").SetText(money.Percent(rate))
	scheme := cat.CreateElement("cac:TaxScheme").CreateElement("cbc:ID")
	scheme.CreateAttr("schemeAgencyID", vatSchemeAgency)
	scheme.CreateAttr("schemeID", vatScheme5153)
	scheme.SetText("VAT")
}

func subentity(p model.Party) string {
	if p.CountrySubentity != "" {
		return p.CountrySubentity
	}
	return defaultSubentity
}
