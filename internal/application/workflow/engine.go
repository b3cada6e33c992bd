package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
	"github.com/garyjia/sitequote/internal/domain/pricing"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
)

// Audit actions recorded for quotation transitions
const (
	ActionCreated            = "Created"
	ActionUpdated            = "Updated"
	ActionDeleted            = "Deleted"
	ActionSubmitted          = "SubmittedForApproval"
	ActionApproved           = "Approved"
	ActionRejected           = "Rejected"
	ActionSentToClient       = "SentToClient"
	ActionConvertedToInvoice = "ConvertedToInvoice"
)

const (
	defaultPaymentTermsDays = 30
	defaultValidityDays     = 30
)

// Outcome is the result of one engine operation. Nothing has been
// persisted yet; the caller commits Quotation (and Invoice) and then
// performs Effects.
type Outcome struct {
	Quotation *entity.Quotation
	Invoice   *entity.Invoice
	Effects   []*event.Event

	// Changed is false for operations that resolved to a no-op
	Changed bool
	// Deleted is true when the quotation should be removed from the store
	Deleted bool
}

// CreateCommand carries caller input for a new quotation
type CreateCommand struct {
	MaintenanceRequestID *string
	Title                string
	Notes                string
	Items                []entity.LineItem
	TaxRate              *decimal.Decimal
	ValidUntil           time.Time
}

// UpdateCommand carries the fields to change; nil fields are kept
type UpdateCommand struct {
	Title      *string
	Notes      *string
	Items      []entity.LineItem
	TaxRate    *decimal.Decimal
	ValidUntil *time.Time
}

// Engine applies quotation operations. It performs no I/O: every method
// takes the current quotation and returns the next one plus the side
// effects to run after commit. The input quotation is never modified.
type Engine struct {
	calc             *pricing.Calculator
	paymentTermsDays int
	validityDays     int
}

// Option configures the engine
type Option func(*Engine)

// WithPaymentTermsDays sets how long after issue an invoice is due
func WithPaymentTermsDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.paymentTermsDays = days
		}
	}
}

// WithValidityDays sets ValidUntil for quotations created from an estimate
func WithValidityDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.validityDays = days
		}
	}
}

// NewEngine creates a workflow engine pricing with calc
func NewEngine(calc *pricing.Calculator, opts ...Option) *Engine {
	e := &Engine{
		calc:             calc,
		paymentTermsDays: defaultPaymentTermsDays,
		validityDays:     defaultValidityDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create builds a new Draft quotation for project, owned by the calling PM
func (e *Engine) Create(actor entity.Actor, project *entity.Project, cmd CreateCommand, now time.Time) (*Outcome, error) {
	op := domainwf.OpCreate.String()
	now = now.UTC()

	rate := e.calc.Rate(cmd.TaxRate)
	if err := validateContent(op, cmd.Items, rate); err != nil {
		return nil, err
	}
	if !cmd.ValidUntil.After(now) {
		return nil, apperror.Validation(op, "valid_until %s must be after created_at %s",
			cmd.ValidUntil.UTC().Format(time.RFC3339), now.Format(time.RFC3339))
	}

	q := &entity.Quotation{
		ID:                   uuid.NewString(),
		ProjectID:            project.ID,
		ClientID:             project.ClientID,
		ContractorID:         project.ContractorID,
		ProjectManagerID:     actor.UserID,
		MaintenanceRequestID: cmd.MaintenanceRequestID,
		Title:                strings.TrimSpace(cmd.Title),
		Notes:                cmd.Notes,
		Items:                cmd.Items,
		TaxRate:              rate,
		Status:               domainwf.StateDraft,
		ValidUntil:           cmd.ValidUntil.UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	reprice(q)

	return &Outcome{
		Quotation: q,
		Changed:   true,
		Effects: []*event.Event{
			audit(q, actor, ActionCreated, "Quotation created", now),
		},
	}, nil
}

// CreateFromEstimate seeds a Draft quotation from estimate. Items are
// copied at the default tax rate; parties come from the estimate's project.
func (e *Engine) CreateFromEstimate(actor entity.Actor, estimate *entity.Estimate, project *entity.Project, now time.Time) (*Outcome, error) {
	op := domainwf.OpCreateFromEstimate.String()
	now = now.UTC()

	rate := e.calc.DefaultRate()
	items := pricing.FromEstimate(estimate.Items, rate)
	if err := validateContent(op, items, rate); err != nil {
		return nil, err
	}

	contractorID := estimate.ContractorID
	if contractorID == "" {
		contractorID = project.ContractorID
	}
	estimateID := estimate.ID

	q := &entity.Quotation{
		ID:               uuid.NewString(),
		ProjectID:        project.ID,
		ClientID:         project.ClientID,
		ContractorID:     contractorID,
		ProjectManagerID: actor.UserID,
		EstimateID:       &estimateID,
		Title:            estimate.Title,
		Items:            items,
		TaxRate:          rate,
		Status:           domainwf.StateDraft,
		ValidUntil:       now.AddDate(0, 0, e.validityDays),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	reprice(q)

	return &Outcome{
		Quotation: q,
		Changed:   true,
		Effects: []*event.Event{
			audit(q, actor, ActionCreated, fmt.Sprintf("Quotation created from estimate %s", estimate.ID), now),
		},
	}, nil
}

// Update applies cmd to an editable quotation and reprices it
func (e *Engine) Update(ctx context.Context, actor entity.Actor, current *entity.Quotation, cmd UpdateCommand, now time.Time) (*Outcome, error) {
	op := domainwf.OpUpdate
	if _, err := e.target(ctx, op, current, domainwf.TriggerUpdate); err != nil {
		return nil, err
	}
	now = now.UTC()

	q := current.Clone()
	if cmd.Title != nil {
		q.Title = strings.TrimSpace(*cmd.Title)
	}
	if cmd.Notes != nil {
		q.Notes = *cmd.Notes
	}
	if cmd.Items != nil {
		q.Items = append([]entity.LineItem(nil), cmd.Items...)
	}
	if cmd.TaxRate != nil {
		q.TaxRate = *cmd.TaxRate
	}
	if cmd.ValidUntil != nil {
		if !cmd.ValidUntil.After(q.CreatedAt) {
			return nil, apperror.Validation(op.String(), "valid_until must be after created_at")
		}
		q.ValidUntil = cmd.ValidUntil.UTC()
	}
	if err := validateContent(op.String(), q.Items, q.TaxRate); err != nil {
		return nil, err
	}

	q.UpdatedAt = now
	reprice(q)

	return &Outcome{
		Quotation: q,
		Changed:   true,
		Effects: []*event.Event{
			audit(q, actor, ActionUpdated, "Quotation updated", now),
		},
	}, nil
}

// Delete allows removing a quotation that is still a Draft
func (e *Engine) Delete(ctx context.Context, actor entity.Actor, current *entity.Quotation, now time.Time) (*Outcome, error) {
	if _, err := e.target(ctx, domainwf.OpDelete, current, domainwf.TriggerDelete); err != nil {
		return nil, err
	}

	q := current.Clone()
	return &Outcome{
		Quotation: q,
		Changed:   true,
		Deleted:   true,
		Effects: []*event.Event{
			audit(q, actor, ActionDeleted, "Draft quotation deleted", now.UTC()),
		},
	}, nil
}

// Submit sends a Draft to the project manager for approval
func (e *Engine) Submit(ctx context.Context, actor entity.Actor, current *entity.Quotation, now time.Time) (*Outcome, error) {
	return e.transition(ctx, domainwf.OpSubmit, domainwf.TriggerSubmit, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			return []*event.Event{audit(q, actor, ActionSubmitted, "Quotation submitted for PM approval", at)}
		})
}

// PmApprove approves a pending quotation, which makes it visible to the client
func (e *Engine) PmApprove(ctx context.Context, actor entity.Actor, current *entity.Quotation, now time.Time) (*Outcome, error) {
	return e.transition(ctx, domainwf.OpPMApprove, domainwf.TriggerPMApprove, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			q.ApprovedAt = &at
			sent := at
			q.SentAt = &sent
			return []*event.Event{audit(q, actor, ActionApproved, "Quotation approved by project manager", at)}
		})
}

// PmReject rejects a pending quotation; reason is required
func (e *Engine) PmReject(ctx context.Context, actor entity.Actor, current *entity.Quotation, reason string, now time.Time) (*Outcome, error) {
	op := domainwf.OpPMReject
	if _, err := e.target(ctx, op, current, domainwf.TriggerPMReject); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation(op.String(), "rejection reason is required")
	}

	return e.transition(ctx, op, domainwf.TriggerPMReject, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			q.RejectionReason = reason
			return []*event.Event{audit(q, actor, ActionRejected, "Quotation rejected by project manager: "+reason, at)}
		})
}

// SendToClient notifies the client of an approved quotation. Only the first
// call has an effect; repeated calls return the quotation unchanged.
func (e *Engine) SendToClient(ctx context.Context, actor entity.Actor, current *entity.Quotation, now time.Time) (*Outcome, error) {
	out, err := e.transition(ctx, domainwf.OpSendToClient, domainwf.TriggerSendToClient, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			q.ClientNotifiedAt = &at
			if q.SentAt == nil {
				sent := at
				q.SentAt = &sent
			}
			return []*event.Event{
				audit(q, actor, ActionSentToClient, "Quotation sent to client", at),
				event.NewNotification(entity.EntityTypeQuotation, q.ID, actor.UserID,
					entity.NotificationQuotationSent, q.ClientID, entity.TemplateSentToClient, at),
			}
		})
	if errors.Is(err, domainwf.ErrGuardFailed) {
		// already sent
		return &Outcome{Quotation: current.Clone()}, nil
	}
	return out, err
}

// ClientDecision records the client's acceptance or rejection and tells the PM
func (e *Engine) ClientDecision(ctx context.Context, actor entity.Actor, current *entity.Quotation, accept bool, note string, now time.Time) (*Outcome, error) {
	trigger := domainwf.TriggerClientReject
	action, kind, template := ActionRejected, entity.NotificationQuotationRejected, entity.TemplateClientRejected
	description := "Quotation rejected by client"
	if accept {
		trigger = domainwf.TriggerClientAccept
		action, kind, template = ActionApproved, entity.NotificationQuotationAccepted, entity.TemplateClientAccepted
		description = "Quotation accepted by client"
	}
	note = strings.TrimSpace(note)
	if note != "" {
		description += ": " + note
	}

	return e.transition(ctx, domainwf.OpClientDecision, trigger, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			q.DecidedAt = &at
			q.ClientNote = note
			return []*event.Event{
				audit(q, actor, action, description, at),
				event.NewNotification(entity.EntityTypeQuotation, q.ID, actor.UserID,
					kind, q.ProjectManagerID, template, at),
			}
		})
}

// ConvertToInvoice creates the invoice for an Approved quotation. A second
// call fails with AlreadyConverted carrying the existing invoice id.
func (e *Engine) ConvertToInvoice(ctx context.Context, actor entity.Actor, current *entity.Quotation, now time.Time) (*Outcome, error) {
	op := domainwf.OpConvertToInvoice

	var invoice *entity.Invoice
	out, err := e.transition(ctx, op, domainwf.TriggerConvertToInvoice, actor, current, now,
		func(q *entity.Quotation, at time.Time) []*event.Event {
			invoice = e.invoiceFor(q, at)
			invoiceID := invoice.ID
			q.InvoiceID = &invoiceID
			return []*event.Event{
				audit(q, actor, ActionConvertedToInvoice, "Quotation converted to invoice "+invoice.ID, at),
			}
		})
	if errors.Is(err, domainwf.ErrGuardFailed) {
		return nil, AlreadyConverted(op.String(), *current.InvoiceID)
	}
	if err != nil {
		return nil, err
	}
	out.Invoice = invoice
	return out, nil
}

// AlreadyConverted reports a repeated conversion, naming the existing invoice
func AlreadyConverted(op, invoiceID string) *apperror.Error {
	return &apperror.Error{
		Kind:    apperror.KindAlreadyConverted,
		Op:      op,
		Message: "quotation already converted to invoice " + invoiceID,
		Ref:     invoiceID,
	}
}

func (e *Engine) invoiceFor(q *entity.Quotation, at time.Time) *entity.Invoice {
	return &entity.Invoice{
		ID:           entity.InvoiceIDFor(q.ID),
		QuotationID:  q.ID,
		ProjectID:    q.ProjectID,
		ClientID:     q.ClientID,
		ContractorID: q.ContractorID,
		Items:        append([]entity.LineItem(nil), q.Items...),
		TaxRate:      q.TaxRate,
		Totals:       q.Totals,
		Status:       entity.InvoiceStatusPending,
		IssuedAt:     at,
		DueAt:        at.AddDate(0, 0, e.paymentTermsDays),
		CreatedAt:    at,
	}
}

// transition validates trigger against the current state, then applies
// mutate to a copy moved to the target state
func (e *Engine) transition(
	ctx context.Context,
	op domainwf.Operation,
	trigger domainwf.Trigger,
	actor entity.Actor,
	current *entity.Quotation,
	now time.Time,
	mutate func(q *entity.Quotation, at time.Time) []*event.Event,
) (*Outcome, error) {
	next, err := e.target(ctx, op, current, trigger)
	if err != nil {
		return nil, err
	}
	now = now.UTC()

	q := current.Clone()
	q.Status = next
	q.UpdatedAt = now
	effects := mutate(q, now)
	reprice(q)

	return &Outcome{Quotation: q, Effects: effects, Changed: true}, nil
}

// target fires trigger on a machine built for q and returns the state it
// lands in. Guard failures keep domainwf.ErrGuardFailed in the chain.
func (e *Engine) target(ctx context.Context, op domainwf.Operation, q *entity.Quotation, trigger domainwf.Trigger) (domainwf.State, error) {
	if q == nil {
		return "", apperror.Validation(op.String(), "quotation is required")
	}
	if !q.Status.IsValid() {
		return "", apperror.Wrap(apperror.KindValidation, op.String(),
			fmt.Errorf("%w: %q", domainwf.ErrInvalidState, q.Status))
	}

	m := BuildQuotationStateMachine(q)
	if !m.CanFire(trigger) {
		return "", &apperror.Error{
			Kind:    apperror.KindInvalidTransition,
			Op:      op.String(),
			Message: refusal(op, q.Status, m.PermittedTriggers()),
			Err:     &domainwf.TransitionError{From: q.Status, Trigger: trigger},
		}
	}
	if err := m.Fire(ctx, trigger); err != nil {
		return "", apperror.Wrap(apperror.KindInvalidTransition, op.String(), err)
	}
	return m.State(), nil
}

func refusal(op domainwf.Operation, state domainwf.State, permitted []domainwf.Trigger) string {
	if state.IsTerminal() {
		return fmt.Sprintf("cannot %s: quotation is %s and can no longer change", op, state)
	}
	names := make([]string, len(permitted))
	for i, t := range permitted {
		names[i] = t.String()
	}
	return fmt.Sprintf("cannot %s from state %s (permitted: %s)", op, state, strings.Join(names, ", "))
}

func validateContent(op string, items []entity.LineItem, rate decimal.Decimal) error {
	if err := pricing.ValidateItems(items); err != nil {
		return apperror.Wrap(apperror.KindValidation, op, err)
	}
	if err := pricing.ValidateRate(rate); err != nil {
		return apperror.Wrap(apperror.KindValidation, op, err)
	}
	return nil
}

func reprice(q *entity.Quotation) {
	q.Items, q.Totals = pricing.Recalculate(q.Items, q.TaxRate)
}

func audit(q *entity.Quotation, actor entity.Actor, action, description string, at time.Time) *event.Event {
	return event.NewAudit(entity.EntityTypeQuotation, q.ID, actor.UserID, action, description, at)
}
