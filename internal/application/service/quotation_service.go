package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/sitequote/internal/application/dispatcher"
	"github.com/garyjia/sitequote/internal/application/policy"
	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/application/workflow"
	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
	"github.com/garyjia/sitequote/internal/domain/event"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
)

// QuotationService runs quotation operations end to end: authorize, load,
// evaluate the workflow engine, commit, then perform side effects
type QuotationService interface {
	Create(ctx context.Context, actor *entity.Actor, projectID string, cmd workflow.CreateCommand) (*entity.Quotation, error)
	CreateFromEstimate(ctx context.Context, actor *entity.Actor, estimateID string) (*entity.Quotation, error)
	Get(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error)
	Update(ctx context.Context, actor *entity.Actor, id string, cmd workflow.UpdateCommand) (*entity.Quotation, error)
	Delete(ctx context.Context, actor *entity.Actor, id string) error
	SubmitForApproval(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error)
	PmApprove(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error)
	PmReject(ctx context.Context, actor *entity.Actor, id, reason string) (*entity.Quotation, error)
	SendToClient(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error)
	ClientDecision(ctx context.Context, actor *entity.Actor, id string, accept bool, note string) (*entity.Quotation, error)
	ConvertToInvoice(ctx context.Context, actor *entity.Actor, id string) (*entity.Invoice, error)
	History(ctx context.Context, actor *entity.Actor, id string) ([]*entity.AuditEntry, error)
}

type quotationServiceImpl struct {
	store      port.DocumentStore
	txManager  port.TransactionManager
	auditSink  port.AuditSink
	engine     *workflow.Engine
	guard      *policy.Guard
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// QuotationOption configures the quotation service
type QuotationOption func(*quotationServiceImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) QuotationOption {
	return func(s *quotationServiceImpl) {
		s.now = now
	}
}

// NewQuotationService creates a new QuotationService
func NewQuotationService(
	store port.DocumentStore,
	txManager port.TransactionManager,
	auditSink port.AuditSink,
	engine *workflow.Engine,
	guard *policy.Guard,
	d dispatcher.Dispatcher,
	logger Logger,
	opts ...QuotationOption,
) QuotationService {
	s := &quotationServiceImpl{
		store:      store,
		txManager:  txManager,
		auditSink:  auditSink,
		engine:     engine,
		guard:      guard,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *quotationServiceImpl) Create(ctx context.Context, actor *entity.Actor, projectID string, cmd workflow.CreateCommand) (*entity.Quotation, error) {
	op := domainwf.OpCreate
	if err := s.guard.AuthorizeRole(actor, op); err != nil {
		return nil, err
	}

	project, _, err := getDocument[entity.Project](ctx, s.store, op.String(), "project", entity.CollectionProjects, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeProject(actor, op, project); err != nil {
		return nil, err
	}

	out, err := s.engine.Create(*actor, project, cmd, s.now())
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, op, out)
}

func (s *quotationServiceImpl) CreateFromEstimate(ctx context.Context, actor *entity.Actor, estimateID string) (*entity.Quotation, error) {
	op := domainwf.OpCreateFromEstimate
	if err := s.guard.AuthorizeRole(actor, op); err != nil {
		return nil, err
	}

	estimate, _, err := getDocument[entity.Estimate](ctx, s.store, op.String(), "estimate", entity.CollectionEstimates, estimateID)
	if err != nil {
		return nil, err
	}
	project, _, err := getDocument[entity.Project](ctx, s.store, op.String(), "project", entity.CollectionProjects, estimate.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeProject(actor, op, project); err != nil {
		return nil, err
	}

	out, err := s.engine.CreateFromEstimate(*actor, estimate, project, s.now())
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, op, out)
}

func (s *quotationServiceImpl) Get(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error) {
	op := domainwf.OpRead
	if err := s.guard.AuthorizeRole(actor, op); err != nil {
		return nil, err
	}
	q, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeRead(actor, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *quotationServiceImpl) Update(ctx context.Context, actor *entity.Actor, id string, cmd workflow.UpdateCommand) (*entity.Quotation, error) {
	out, err := s.apply(ctx, actor, domainwf.OpUpdate, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.Update(ctx, *actor, q, cmd, now)
	})
	if err != nil {
		return nil, err
	}
	return out.Quotation, nil
}

func (s *quotationServiceImpl) Delete(ctx context.Context, actor *entity.Actor, id string) error {
	_, err := s.apply(ctx, actor, domainwf.OpDelete, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.Delete(ctx, *actor, q, now)
	})
	return err
}

func (s *quotationServiceImpl) SubmitForApproval(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error) {
	return s.transition(ctx, actor, domainwf.OpSubmit, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.Submit(ctx, *actor, q, now)
	})
}

func (s *quotationServiceImpl) PmApprove(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error) {
	return s.transition(ctx, actor, domainwf.OpPMApprove, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.PmApprove(ctx, *actor, q, now)
	})
}

func (s *quotationServiceImpl) PmReject(ctx context.Context, actor *entity.Actor, id, reason string) (*entity.Quotation, error) {
	return s.transition(ctx, actor, domainwf.OpPMReject, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.PmReject(ctx, *actor, q, reason, now)
	})
}

func (s *quotationServiceImpl) SendToClient(ctx context.Context, actor *entity.Actor, id string) (*entity.Quotation, error) {
	return s.transition(ctx, actor, domainwf.OpSendToClient, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.SendToClient(ctx, *actor, q, now)
	})
}

func (s *quotationServiceImpl) ClientDecision(ctx context.Context, actor *entity.Actor, id string, accept bool, note string) (*entity.Quotation, error) {
	return s.transition(ctx, actor, domainwf.OpClientDecision, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.ClientDecision(ctx, *actor, q, accept, note, now)
	})
}

func (s *quotationServiceImpl) ConvertToInvoice(ctx context.Context, actor *entity.Actor, id string) (*entity.Invoice, error) {
	out, err := s.apply(ctx, actor, domainwf.OpConvertToInvoice, id, func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error) {
		return s.engine.ConvertToInvoice(ctx, *actor, q, now)
	})
	if err != nil {
		return nil, err
	}
	return out.Invoice, nil
}

func (s *quotationServiceImpl) History(ctx context.Context, actor *entity.Actor, id string) ([]*entity.AuditEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.auditSink.ListByEntity(ctx, entity.EntityTypeQuotation, id)
	if err != nil {
		s.logger.Error("Failed to list audit history", "error", err, "quotation_id", id)
		return nil, apperror.Wrap(apperror.KindDependency, "History", err)
	}
	return entries, nil
}

type engineFunc func(q *entity.Quotation, now time.Time) (*workflow.Outcome, error)

func (s *quotationServiceImpl) transition(ctx context.Context, actor *entity.Actor, op domainwf.Operation, id string, run engineFunc) (*entity.Quotation, error) {
	out, err := s.apply(ctx, actor, op, id, run)
	if err != nil {
		return nil, err
	}
	return out.Quotation, nil
}

// apply is the shared path of every operation on an existing quotation
func (s *quotationServiceImpl) apply(ctx context.Context, actor *entity.Actor, op domainwf.Operation, id string, run engineFunc) (*workflow.Outcome, error) {
	if err := s.guard.AuthorizeRole(actor, op); err != nil {
		s.logger.Info("Operation refused", "op", op, "quotation_id", id, "reason", err.Error())
		return nil, err
	}

	current, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	if err := s.guard.AuthorizeOwnership(actor, op, current); err != nil {
		s.logger.Info("Operation refused", "op", op, "quotation_id", id, "reason", err.Error())
		return nil, err
	}

	out, err := run(current, s.now())
	if err != nil {
		s.logger.Info("Operation rejected by workflow", "op", op, "quotation_id", id, "state", current.Status, "error", err)
		return nil, err
	}
	if !out.Changed {
		s.logger.Info("Operation was a no-op", "op", op, "quotation_id", id, "state", current.Status)
		return out, nil
	}

	version, err := s.commit(ctx, op, current.Version, out)
	if err != nil {
		s.logger.Error("Failed to commit quotation", "error", err, "op", op, "quotation_id", id)
		return nil, err
	}

	s.logger.Info("Quotation updated",
		"op", op,
		"quotation_id", id,
		"from", current.Status,
		"to", out.Quotation.Status,
		"version", version,
	)
	s.perform(ctx, version, out.Effects)
	return out, nil
}

// load reads the quotation fresh from the store; the stored version wins
// over whatever version the document body carries
func (s *quotationServiceImpl) load(ctx context.Context, op domainwf.Operation, id string) (*entity.Quotation, error) {
	q, version, err := getDocument[entity.Quotation](ctx, s.store, op.String(), "quotation", entity.CollectionQuotations, id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("Failed to load quotation", "error", err, "quotation_id", id)
		}
		return nil, err
	}
	q.Version = version
	return q, nil
}

func (s *quotationServiceImpl) insert(ctx context.Context, op domainwf.Operation, out *workflow.Outcome) (*entity.Quotation, error) {
	q := out.Quotation
	q.Version = 1
	data, err := encode(op.String(), q)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddWithID(ctx, entity.CollectionQuotations, q.ID, data); err != nil {
		s.logger.Error("Failed to store quotation", "error", err, "quotation_id", q.ID)
		return nil, storeError(op.String(), err)
	}

	s.logger.Info("Quotation created", "quotation_id", q.ID, "project_id", q.ProjectID, "grand_total", q.GrandTotal.String())
	s.perform(ctx, q.Version, out.Effects)
	return q, nil
}

// commit persists the outcome guarded by the version read in apply and
// returns the new version
func (s *quotationServiceImpl) commit(ctx context.Context, op domainwf.Operation, expected int64, out *workflow.Outcome) (int64, error) {
	q := out.Quotation

	if out.Deleted {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			doc, err := s.store.Get(txCtx, entity.CollectionQuotations, q.ID)
			if err != nil {
				return err
			}
			if doc.Version != expected {
				return port.ErrVersionConflict
			}
			return s.store.Delete(txCtx, entity.CollectionQuotations, q.ID)
		})
		if err != nil {
			return 0, storeError(op.String(), err)
		}
		return expected, nil
	}

	q.Version = expected + 1
	data, err := encode(op.String(), q)
	if err != nil {
		return 0, err
	}

	if out.Invoice == nil {
		version, err := s.store.Update(ctx, entity.CollectionQuotations, q.ID, expected, data)
		if err != nil {
			return 0, storeError(op.String(), err)
		}
		q.Version = version
		return version, nil
	}

	invoiceData, err := encode(op.String(), out.Invoice)
	if err != nil {
		return 0, err
	}

	var version int64
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.store.AddWithID(txCtx, entity.CollectionInvoices, out.Invoice.ID, invoiceData); err != nil {
			if errors.Is(err, port.ErrDocumentExists) {
				return workflow.AlreadyConverted(op.String(), out.Invoice.ID)
			}
			return err
		}
		v, err := s.store.Update(txCtx, entity.CollectionQuotations, q.ID, expected, data)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, storeError(op.String(), err)
	}
	q.Version = version
	return version, nil
}

// perform runs side effects after commit. Audit entries are written
// before returning; notifications are delivered in the background.
// Neither can fail the operation.
func (s *quotationServiceImpl) perform(ctx context.Context, version int64, effects []*event.Event) {
	requestID := RequestIDFrom(ctx)
	for _, evt := range effects {
		evt = evt.WithPayload(event.KeyVersion, version).WithCorrelation(requestID)

		switch evt.Type {
		case event.TypeAuditAppend:
			if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
				s.logger.Error("Audit append failed",
					"error", err,
					"quotation_id", evt.EntityID,
					"action", evt.GetPayloadString(event.KeyAction),
				)
			}
		case event.TypeNotificationSend:
			s.dispatcher.DispatchAsync(ctx, evt)
		default:
			s.logger.Error("Unknown effect type", "type", evt.Type, "event_id", evt.ID)
		}
	}
}
