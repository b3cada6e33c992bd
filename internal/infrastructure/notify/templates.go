package notify

import (
	"fmt"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

// templates holds the message text per template key; %s is the quotation id
var templates = map[string]string{
	entity.TemplateSentToClient:   "Quotation %s is ready for your review. Please accept or reject it.",
	entity.TemplateClientAccepted: "The client accepted quotation %s. It can now be converted to an invoice.",
	entity.TemplateClientRejected: "The client rejected quotation %s.",
}

// Render returns the message text for n
func Render(n *entity.Notification) (string, error) {
	format, ok := templates[n.TemplateKey]
	if !ok {
		return "", fmt.Errorf("unknown notification template %q", n.TemplateKey)
	}
	return fmt.Sprintf(format, n.EntityID), nil
}
