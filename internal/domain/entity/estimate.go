package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstimateItem is a line of a preliminary, non-binding estimate
type EstimateItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Estimate can seed a new quotation
type Estimate struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	ContractorID string         `json:"contractor_id"`
	Title        string         `json:"title"`
	Items        []EstimateItem `json:"items"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Project links the parties a quotation is exchanged between
type Project struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ClientID         string    `json:"client_id"`
	ProjectManagerID string    `json:"project_manager_id"`
	ContractorID     string    `json:"contractor_id"`
	CreatedAt        time.Time `json:"created_at"`
}
