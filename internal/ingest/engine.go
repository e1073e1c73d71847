package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// firstDataLine is the 1-based position of the first data row; the header
// occupies line 1.
const firstDataLine = 2

// Engine ingests one tabular file and partitions it into accepted rows and
// rejected rows with traceable positions and reasons.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Ingest streams the file twice: the first pass validates each row and
// folds the results into a per-invoice validity map, the second routes
// every row into the accepted or rejected partition. Re-running Ingest on
// an unchanged file yields identical partitions.
//
// An empty file (or one with only a header) yields empty partitions, not
// an error. A row whose invoice identifier failed to parse is still
// reported in the rejected partition with the identifier as given.
func (e *Engine) Ingest(path string) (*Result, error) {
	validity, err := e.scanValidity(path)
	if err != nil {
		return nil, err
	}

	result, err := e.partition(path, validity)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("file ingested",
		zap.String("path", path),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", len(result.Rejected)),
	)

	return result, nil
}

func (e *Engine) scanValidity(path string) (invoiceValidity, error) {
	validity := make(invoiceValidity)

	err := e.forEachRow(path, func(row Row) {
		valid, _ := ValidateRow(row)
		validity.observe(row.InvoiceID, valid)
	})
	if err != nil {
		return nil, err
	}

	return validity, nil
}

func (e *Engine) partition(path string, validity invoiceValidity) (*Result, error) {
	result := &Result{}

	err := e.forEachRow(path, func(row Row) {
		if validity.valid(row.InvoiceID) {
			result.Accepted = append(result.Accepted, row)
			return
		}

		valid, reason := ValidateRow(row)
		if valid {
			reason = ReasonInvoiceAtomicity
		}

		result.Rejected = append(result.Rejected, RejectedRow{
			Position:  row.Position,
			InvoiceID: row.InvoiceID,
			Reason:    reason,
			Raw:       rawFields(row),
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// forEachRow streams the file once, mapping each record through the header
// and invoking fn per data row.
func (e *Engine) forEachRow(path string, fn func(Row)) error {
	source, err := openSource(path)
	if err != nil {
		return err
	}
	defer source.Close() //nolint:errcheck

	header, ok, err := source.Next()
	if err != nil {
		return err
	}
	if !ok {
		// Empty file: nothing to validate, nothing to reject.
		return nil
	}

	columns := normalizeHeader(header)
	position := firstDataLine

	for {
		record, ok, err := source.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		fn(mapRow(columns, record, position))
		position++
	}
}

// normalizeHeader lower-cases and trims column names, keeping the first
// occurrence when a name repeats.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return columns
}

func mapRow(columns []string, record []string, position int) Row {
	row := Row{Position: position, Extras: map[string]string{}}

	for i, name := range columns {
		if name == "" {
			continue
		}

		var value string
		if i < len(record) {
			value = strings.TrimSpace(record[i])
		}

		switch name {
		case colInvoiceID:
			row.InvoiceID = value
		case colCustomerName:
			row.CustomerName = value
		case colCustomerEmail:
			row.CustomerEmail = value
		case colProduct:
			row.Product = value
		case colUnitPrice:
			row.UnitPrice = parseFloat(value)
		case colQuantity:
			row.Quantity = parseInt(value)
		case colTaxRate:
			row.TaxRate = parseFloat(value)
		default:
			row.Extras[name] = value
		}
	}

	return row
}

// rawFields rebuilds the original field values for diagnostics, excluding
// everything the pipeline computed itself.
func rawFields(row Row) map[string]string {
	raw := map[string]string{
		colInvoiceID:     row.InvoiceID,
		colCustomerName:  row.CustomerName,
		colCustomerEmail: row.CustomerEmail,
		colProduct:       row.Product,
		colUnitPrice:     formatFloat(row.UnitPrice),
		colQuantity:      formatInt(row.Quantity),
		colTaxRate:       formatFloat(row.TaxRate),
	}
	for name, value := range row.Extras {
		raw[name] = value
	}
	return raw
}

// parseFloat treats unparseable values as absent. Coercion failure is
// data-invalid, never a fault.
func parseFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseInt(value string) *int64 {
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatInt(value *int64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%d", *value)
}
