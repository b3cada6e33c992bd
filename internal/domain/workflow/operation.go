package workflow

// Operation names a caller-facing quotation operation. Operations are what
// access policy and error messages talk about; triggers are what the state
// machine understands.
type Operation string

const (
	OpCreate             Operation = "CreateQuotation"
	OpCreateFromEstimate Operation = "CreateQuotationFromEstimate"
	OpRead               Operation = "GetQuotation"
	OpUpdate             Operation = "UpdateQuotation"
	OpDelete             Operation = "DeleteQuotation"
	OpSubmit             Operation = "SubmitForApproval"
	OpPMApprove          Operation = "PmApprove"
	OpPMReject           Operation = "PmReject"
	OpSendToClient       Operation = "SendToClient"
	OpClientDecision     Operation = "ClientDecision"
	OpConvertToInvoice   Operation = "ConvertToInvoice"
)

// String returns the string representation of the operation
func (o Operation) String() string {
	return string(o)
}
