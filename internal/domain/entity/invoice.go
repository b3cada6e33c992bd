package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice after creation
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

// invoiceIDPrefix makes invoice ids a function of the quotation id,
// which is what keeps conversion idempotent at the store level
const invoiceIDPrefix = "INV-"

// InvoiceIDFor returns the invoice id a quotation converts into
func InvoiceIDFor(quotationID string) string {
	return invoiceIDPrefix + quotationID
}

// Invoice is the billable artifact created from an approved quotation
type Invoice struct {
	ID           string `json:"id"`
	QuotationID  string `json:"quotation_id"`
	ProjectID    string `json:"project_id"`
	ClientID     string `json:"client_id"`
	ContractorID string `json:"contractor_id"`

	Items   []LineItem      `json:"items"`
	TaxRate decimal.Decimal `json:"tax_rate"`
	Totals

	Status    InvoiceStatus `json:"status"`
	IssuedAt  time.Time     `json:"issued_at"`
	DueAt     time.Time     `json:"due_at"`
	CreatedAt time.Time     `json:"created_at"`
}
