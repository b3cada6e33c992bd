package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/sitequote/internal/domain/workflow"
)

// EntityTypeQuotation is the audit entity type for quotations
const EntityTypeQuotation = "Quotation"

// LineItem is one priced row of a quotation or invoice.
// LineTotal is derived by the pricing engine and never taken from input.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Totals holds the derived money aggregates of a priced document
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Quotation is a priced proposal awaiting internal and client approval
type Quotation struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`

	ProjectID            string  `json:"project_id"`
	ClientID             string  `json:"client_id"`
	ContractorID         string  `json:"contractor_id"`
	ProjectManagerID     string  `json:"project_manager_id"`
	MaintenanceRequestID *string `json:"maintenance_request_id,omitempty"`
	EstimateID           *string `json:"estimate_id,omitempty"`

	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`

	Items   []LineItem      `json:"items"`
	TaxRate decimal.Decimal `json:"tax_rate"`
	Totals

	Status          workflow.State `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	ClientNote      string         `json:"client_note,omitempty"`
	InvoiceID       *string        `json:"invoice_id,omitempty"`

	ValidUntil       time.Time  `json:"valid_until"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	ClientNotifiedAt *time.Time `json:"client_notified_at,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely
func (q *Quotation) Clone() *Quotation {
	if q == nil {
		return nil
	}
	c := *q
	c.Items = append([]LineItem(nil), q.Items...)
	c.MaintenanceRequestID = cloneString(q.MaintenanceRequestID)
	c.EstimateID = cloneString(q.EstimateID)
	c.InvoiceID = cloneString(q.InvoiceID)
	c.ApprovedAt = cloneTime(q.ApprovedAt)
	c.SentAt = cloneTime(q.SentAt)
	c.ClientNotifiedAt = cloneTime(q.ClientNotifiedAt)
	c.DecidedAt = cloneTime(q.DecidedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
