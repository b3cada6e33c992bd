package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys
const (
	KeyAction      = "action"
	KeyDescription = "description"
	KeyVersion     = "version"
	KeyKind        = "kind"
	KeyRecipientID = "recipient_id"
	KeyTemplateKey = "template_key"
)

// Event is a side effect produced by a workflow operation. The workflow
// engine only describes effects; adapters perform them after commit.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	EntityType    string                 `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event with a generated ID
func NewEvent(eventType Type, entityType, entityID, actorID string, payload map[string]interface{}, at time.Time) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
		Timestamp:  at.UTC(),
	}
}

// NewAudit describes one audit entry for an entity transition
func NewAudit(entityType, entityID, actorID, action, description string, at time.Time) *Event {
	return NewEvent(TypeAuditAppend, entityType, entityID, actorID, map[string]interface{}{
		KeyAction:      action,
		KeyDescription: description,
	}, at)
}

// NewNotification describes a notification to recipientID
func NewNotification(entityType, entityID, actorID, kind, recipientID, templateKey string, at time.Time) *Event {
	return NewEvent(TypeNotificationSend, entityType, entityID, actorID, map[string]interface{}{
		KeyKind:        kind,
		KeyRecipientID: recipientID,
		KeyTemplateKey: templateKey,
	}, at)
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// WithCorrelation returns a copy of the event tagged with a correlation id
func (e *Event) WithCorrelation(correlationID string) *Event {
	c := *e
	c.CorrelationID = correlationID
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
