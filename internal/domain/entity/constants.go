package entity

// Role is the caller's role as resolved by the identity provider
type Role string

const (
	RoleProjectManager Role = "ProjectManager"
	RoleClient         Role = "Client"
	RoleContractor     Role = "Contractor"
	RoleAdmin          Role = "Admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleProjectManager, RoleClient, RoleContractor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email"`
}

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Document store collections
const (
	CollectionQuotations = "quotations"
	CollectionInvoices   = "invoices"
	CollectionEstimates  = "estimates"
	CollectionProjects   = "projects"
)
