package entity

import "time"

// Notification kinds
const (
	NotificationQuotationSent     = "QuotationSentToClient"
	NotificationQuotationAccepted = "QuotationAccepted"
	NotificationQuotationRejected = "QuotationRejected"
)

// Notification message template keys
const (
	TemplateSentToClient   = "quotation.sent_to_client"
	TemplateClientAccepted = "quotation.client_accepted"
	TemplateClientRejected = "quotation.client_rejected"
)

// Notification is a delivery record for one outbound message
type Notification struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	EntityID    string    `json:"entity_id"`
	ActorID     string    `json:"actor_id"`
	RecipientID string    `json:"recipient_id"`
	TemplateKey string    `json:"template_key"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
