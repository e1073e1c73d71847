// Package transform turns accepted ingestion rows into canonical invoice
// documents ready for dispatch. It performs no network or storage access.
package transform

import (
	"github.com/shopspring/decimal"

	"github.com/facturio/invoice-engine/internal/domain"
	"github.com/facturio/invoice-engine/internal/ingest"
)

var hundred = decimal.NewFromInt(100)

// groupKey splits documents by invoice identifier AND customer name/email.
// Two rows sharing an invoice id but differing in customer fields produce
// two documents; that strictness is inherited behavior, kept on purpose.
type groupKey struct {
	invoiceID     string
	customerName  string
	customerEmail string
}

// Documents groups accepted rows into one canonical document per
// (invoice id, customer name, customer email), computing line subtotals,
// tax amounts and invoice totals. Groups keep first-seen order; line items
// keep source order within a group.
func Documents(rows []ingest.Row) []domain.InvoiceDocument {
	type group struct {
		key        groupKey
		items      []domain.DocumentItem
		grossTotal decimal.Decimal
		taxTotal   decimal.Decimal
	}

	var order []groupKey
	groups := make(map[groupKey]*group)

	for _, row := range rows {
		key := groupKey{
			invoiceID:     row.InvoiceID,
			customerName:  row.CustomerName,
			customerEmail: row.CustomerEmail,
		}

		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
			order = append(order, key)
		}

		item, subtotal, tax := lineItem(row)
		g.items = append(g.items, item)
		g.grossTotal = g.grossTotal.Add(subtotal)
		g.taxTotal = g.taxTotal.Add(tax)
	}

	documents := make([]domain.InvoiceDocument, 0, len(order))
	for _, key := range order {
		g := groups[key]
		documents = append(documents, domain.InvoiceDocument{
			NumberingRangeID:  key.invoiceID,
			ReferenceCode:     key.invoiceID,
			PaymentForm:       domain.PaymentFormCash,
			PaymentMethodCode: domain.PaymentMethodCode,
			GrossTotal:        g.grossTotal.InexactFloat64(),
			TaxTotal:          g.taxTotal.InexactFloat64(),
			Customer: domain.DocumentCustomer{
				Names:                    key.customerName,
				Email:                    key.customerEmail,
				Identification:           domain.CustomerIdentification,
				IdentificationDocumentID: domain.IdentificationDocumentID,
				LegalOrganizationID:      domain.LegalOrganizationID,
			},
			Items: g.items,
		})
	}

	return documents
}

// lineItem computes one dispatch-ready line: subtotal = price * quantity,
// tax = subtotal * rate / 100. Rows reaching the transformer already
// passed validation, so price and quantity are present; a missing tax rate
// means an untaxed line.
func lineItem(row ingest.Row) (domain.DocumentItem, decimal.Decimal, decimal.Decimal) {
	var price float64
	if row.UnitPrice != nil {
		price = *row.UnitPrice
	}
	var quantity int64
	if row.Quantity != nil {
		quantity = *row.Quantity
	}
	var taxRate float64
	if row.TaxRate != nil {
		taxRate = *row.TaxRate
	}

	subtotal := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Div(hundred)

	return domain.DocumentItem{
		CodeReference: row.Product,
		Name:          row.Product,
		Quantity:      quantity,
		Price:         price,
		TaxRate:       taxRate,
		DiscountRate:  domain.DefaultDiscountRate,
		Taxes: domain.DocumentTax{
			Code:   domain.TaxCodeStandard,
			Name:   domain.TaxNameStandard,
			Rate:   taxRate,
			Amount: tax.InexactFloat64(),
		},
	}, subtotal, tax
}
