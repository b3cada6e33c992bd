package workflow

// State represents a quotation lifecycle state
type State string

const (
	StateDraft             State = "Draft"
	StatePendingPMApproval State = "PendingPMApproval"
	StateSentToClient      State = "SentToClient"
	StatePMRejected        State = "PMRejected"
	StateApproved          State = "Approved"
	StateRejected          State = "Rejected"
)

// States lists every lifecycle state in declaration order
var States = []State{
	StateDraft,
	StatePendingPMApproval,
	StateSentToClient,
	StatePMRejected,
	StateApproved,
	StateRejected,
}

// IsTerminal returns true if no operation may change the quotation any more.
// Approved is not terminal here: it still accepts invoice conversion.
func (s State) IsTerminal() bool {
	switch s {
	case StatePMRejected, StateRejected:
		return true
	default:
		return false
	}
}

// IsEditable returns true if line items may still be changed in this state
func (s State) IsEditable() bool {
	switch s {
	case StateDraft, StatePendingPMApproval, StateSentToClient:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StatePendingPMApproval, StateSentToClient,
		StatePMRejected, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}
