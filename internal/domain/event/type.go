package event

// Type identifies the kind of side effect an event asks for
type Type string

const (
	// TypeAuditAppend asks for one append-only audit entry
	TypeAuditAppend Type = "audit.append"
	// TypeNotificationSend asks for a best-effort notification
	TypeNotificationSend Type = "notification.send"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeAuditAppend, TypeNotificationSend:
		return true
	default:
		return false
	}
}
