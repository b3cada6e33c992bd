package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/sitequote/internal/application/policy"
	"github.com/garyjia/sitequote/internal/application/port"
	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

// CatalogService stores the projects and estimates quotations are created from,
// and serves invoice reads
type CatalogService interface {
	CreateProject(ctx context.Context, actor *entity.Actor, project *entity.Project) (*entity.Project, error)
	CreateEstimate(ctx context.Context, actor *entity.Actor, estimate *entity.Estimate) (*entity.Estimate, error)
	GetInvoice(ctx context.Context, actor *entity.Actor, id string) (*entity.Invoice, error)
}

type catalogServiceImpl struct {
	store  port.DocumentStore
	guard  *policy.Guard
	logger Logger
	now    func() time.Time
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(store port.DocumentStore, guard *policy.Guard, logger Logger) CatalogService {
	return &catalogServiceImpl{
		store:  store,
		guard:  guard,
		logger: logger,
		now:    time.Now,
	}
}

// CreateProject stores a project managed by the calling PM
func (s *catalogServiceImpl) CreateProject(ctx context.Context, actor *entity.Actor, project *entity.Project) (*entity.Project, error) {
	const op = "CreateProject"
	if actor == nil || actor.Role != entity.RoleProjectManager {
		return nil, apperror.Forbidden(op, "only project managers may create projects")
	}
	if strings.TrimSpace(project.Name) == "" || project.ClientID == "" {
		return nil, apperror.Validation(op, "name and client_id are required")
	}

	p := *project
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.ProjectManagerID = actor.UserID
	p.CreatedAt = s.now().UTC()

	if err := s.add(ctx, op, entity.CollectionProjects, p.ID, &p); err != nil {
		return nil, err
	}
	s.logger.Info("Project created", "project_id", p.ID, "client_id", p.ClientID)
	return &p, nil
}

// CreateEstimate stores an estimate for a project the calling PM manages
func (s *catalogServiceImpl) CreateEstimate(ctx context.Context, actor *entity.Actor, estimate *entity.Estimate) (*entity.Estimate, error) {
	const op = "CreateEstimate"
	if actor == nil || actor.Role != entity.RoleProjectManager {
		return nil, apperror.Forbidden(op, "only project managers may create estimates")
	}

	project, _, err := getDocument[entity.Project](ctx, s.store, op, "project", entity.CollectionProjects, estimate.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ProjectManagerID != actor.UserID {
		return nil, apperror.Forbidden(op, "user %s does not manage project %s", actor.UserID, project.ID)
	}
	for i, item := range estimate.Items {
		if strings.TrimSpace(item.Description) == "" || item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return nil, apperror.Validation(op, "estimate item %d is invalid", i)
		}
	}

	e := *estimate
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ContractorID == "" {
		e.ContractorID = project.ContractorID
	}
	e.CreatedBy = actor.UserID
	e.CreatedAt = s.now().UTC()

	if err := s.add(ctx, op, entity.CollectionEstimates, e.ID, &e); err != nil {
		return nil, err
	}
	s.logger.Info("Estimate created", "estimate_id", e.ID, "project_id", e.ProjectID, "items", len(e.Items))
	return &e, nil
}

// GetInvoice returns an invoice to its client or the PM owning its quotation
func (s *catalogServiceImpl) GetInvoice(ctx context.Context, actor *entity.Actor, id string) (*entity.Invoice, error) {
	const op = "GetInvoice"
	inv, _, err := getDocument[entity.Invoice](ctx, s.store, op, "invoice", entity.CollectionInvoices, id)
	if err != nil {
		return nil, err
	}

	projectManagerID := ""
	q, _, err := getDocument[entity.Quotation](ctx, s.store, op, "quotation", entity.CollectionQuotations, inv.QuotationID)
	if err == nil {
		projectManagerID = q.ProjectManagerID
	} else if !apperrorIsNotFound(err) {
		return nil, err
	}

	if err := s.guard.AuthorizeInvoiceRead(actor, inv, projectManagerID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *catalogServiceImpl) add(ctx context.Context, op, collection, id string, v interface{}) error {
	data, err := encode(op, v)
	if err != nil {
		return err
	}
	if err := s.store.AddWithID(ctx, collection, id, data); err != nil {
		s.logger.Error("Failed to store document", "error", err, "collection", collection, "id", id)
		return storeError(op, err)
	}
	return nil
}

func apperrorIsNotFound(err error) bool {
	return apperror.KindOf(err) == apperror.KindNotFound
}
