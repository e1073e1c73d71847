package domain

// Fixed codes carried on every outgoing document. The source rows have no
// payment or customer-identification metadata, so the values the remote
// service requires are filled with the standard placeholders.
const (
	PaymentFormCash          = "1"
	PaymentMethodCode        = "10"
	TaxCodeStandard          = "1"
	TaxNameStandard          = "IVA"
	DefaultDiscountRate      = "0"
	CustomerIdentification   = "1"
	IdentificationDocumentID = "13"
	LegalOrganizationID      = "2"
)

// DocumentTax is the nested single-tax block on a line item.
type DocumentTax struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// DocumentItem is one dispatch-ready invoice line.
type DocumentItem struct {
	CodeReference string      `json:"code_reference"`
	Name          string      `json:"name"`
	Quantity      int64       `json:"quantity"`
	Price         float64     `json:"price"`
	TaxRate       float64     `json:"tax_rate"`
	DiscountRate  string      `json:"discount_rate"`
	Taxes         DocumentTax `json:"taxes"`
}

// DocumentCustomer is the customer block of a dispatch-ready invoice.
type DocumentCustomer struct {
	Names                    string `json:"names"`
	Email                    string `json:"email"`
	Identification           string `json:"identification"`
	IdentificationDocumentID string `json:"identification_document_id"`
	LegalOrganizationID      string `json:"legal_organization_id"`
}

// InvoiceDocument is the canonical, fully computed representation of one
// invoice, ready for dispatch to the external invoicing service. It lives
// only for the duration of one pipeline run and is never persisted.
type InvoiceDocument struct {
	NumberingRangeID  string           `json:"numbering_range_id"`
	ReferenceCode     string           `json:"reference_code"`
	PaymentForm       string           `json:"payment_form"`
	PaymentMethodCode string           `json:"payment_method_code"`
	GrossTotal        float64          `json:"total_bruto"`
	TaxTotal          float64          `json:"total_impuestos"`
	Customer          DocumentCustomer `json:"customer"`
	Items             []DocumentItem   `json:"items"`
}
