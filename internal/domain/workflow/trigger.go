package workflow

// Trigger represents a workflow operation that may move a quotation between states
type Trigger string

const (
	TriggerSubmit           Trigger = "SUBMIT_FOR_APPROVAL"
	TriggerPMApprove        Trigger = "PM_APPROVE"
	TriggerPMReject         Trigger = "PM_REJECT"
	TriggerSendToClient     Trigger = "SEND_TO_CLIENT"
	TriggerClientAccept     Trigger = "CLIENT_ACCEPT"
	TriggerClientReject     Trigger = "CLIENT_REJECT"
	TriggerConvertToInvoice Trigger = "CONVERT_TO_INVOICE"
	TriggerUpdate           Trigger = "UPDATE"
	TriggerDelete           Trigger = "DELETE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
