package workflow

import (
	"context"

	"github.com/garyjia/sitequote/internal/domain/entity"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
)

// newQuotationBuilder declares the transition table. Guards close over q so
// the table can refuse transitions that depend on more than the status.
func newQuotationBuilder(q *entity.Quotation) domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	notYetNotified := func(context.Context) bool { return q.ClientNotifiedAt == nil }
	notYetConverted := func(context.Context) bool { return q.InvoiceID == nil }

	// Draft: deletable, can go to the PM
	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePendingPMApproval).
		PermitReentry(domainwf.TriggerDelete)

	// PendingPMApproval: the PM decides
	builder.Configure(domainwf.StatePendingPMApproval).
		Permit(domainwf.TriggerPMApprove, domainwf.StateSentToClient).
		Permit(domainwf.TriggerPMReject, domainwf.StatePMRejected)

	// SentToClient: the client decides; the explicit send happens once
	builder.Configure(domainwf.StateSentToClient).
		PermitIf(domainwf.TriggerSendToClient, domainwf.StateSentToClient, notYetNotified).
		Permit(domainwf.TriggerClientAccept, domainwf.StateApproved).
		Permit(domainwf.TriggerClientReject, domainwf.StateRejected)

	// Approved only converts, once; the quotation itself stays Approved
	builder.Configure(domainwf.StateApproved).
		PermitIf(domainwf.TriggerConvertToInvoice, domainwf.StateApproved, notYetConverted)

	// Line items stay editable until the client has decided
	for _, s := range domainwf.States {
		if s.IsEditable() {
			builder.Configure(s).PermitReentry(domainwf.TriggerUpdate)
		}
	}

	// PMRejected and Rejected are terminal - no outgoing transitions

	return builder
}

// BuildQuotationStateMachine creates a state machine positioned at q's status
func BuildQuotationStateMachine(q *entity.Quotation) domainwf.StateMachine {
	return newQuotationBuilder(q).Build(q.Status)
}
