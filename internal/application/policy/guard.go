// Package policy decides whether an actor may run a quotation operation.
// Role checks run before the quotation is loaded; ownership checks after.
package policy

import (
	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
)

// requiredRole maps each operation to the only role allowed to invoke it.
// OpRead is absent: any role may attempt a read, ownership decides.
var requiredRole = map[domainwf.Operation]entity.Role{
	domainwf.OpCreate:             entity.RoleProjectManager,
	domainwf.OpCreateFromEstimate: entity.RoleProjectManager,
	domainwf.OpUpdate:             entity.RoleProjectManager,
	domainwf.OpDelete:             entity.RoleProjectManager,
	domainwf.OpSubmit:             entity.RoleProjectManager,
	domainwf.OpPMApprove:          entity.RoleProjectManager,
	domainwf.OpPMReject:           entity.RoleProjectManager,
	domainwf.OpSendToClient:       entity.RoleProjectManager,
	domainwf.OpConvertToInvoice:   entity.RoleProjectManager,
	domainwf.OpClientDecision:     entity.RoleClient,
}

// Guard is the access policy for quotation operations
type Guard struct{}

// NewGuard creates the access policy guard
func NewGuard() *Guard {
	return &Guard{}
}

// AuthorizeRole checks the actor's role for op
func (g *Guard) AuthorizeRole(actor *entity.Actor, op domainwf.Operation) error {
	if actor == nil || actor.UserID == "" {
		return apperror.Forbidden(op.String(), "no authenticated actor")
	}
	role, ok := requiredRole[op]
	if !ok {
		return nil
	}
	if actor.Role != role {
		return apperror.Forbidden(op.String(), "role %s may not perform %s", actor.Role, op)
	}
	return nil
}

// AuthorizeOwnership checks the actor is the party op belongs to: the
// client for ClientDecision, the owning project manager otherwise.
// A mismatch is Forbidden, never NotFound.
func (g *Guard) AuthorizeOwnership(actor *entity.Actor, op domainwf.Operation, q *entity.Quotation) error {
	if op == domainwf.OpRead {
		return g.AuthorizeRead(actor, q)
	}
	owner := q.ProjectManagerID
	if op == domainwf.OpClientDecision {
		owner = q.ClientID
	}
	if actor.UserID != owner {
		return apperror.Forbidden(op.String(), "user %s is not a party to quotation %s", actor.UserID, q.ID)
	}
	return nil
}

// AuthorizeRead allows the owning PM, the client and the contractor
func (g *Guard) AuthorizeRead(actor *entity.Actor, q *entity.Quotation) error {
	if actor != nil && actor.UserID != "" {
		switch actor.UserID {
		case q.ProjectManagerID, q.ClientID, q.ContractorID:
			return nil
		}
	}
	return apperror.Forbidden(domainwf.OpRead.String(), "quotation %s is not visible to this user", q.ID)
}

// AuthorizeInvoiceRead allows the owning PM (through the quotation) and the client
func (g *Guard) AuthorizeInvoiceRead(actor *entity.Actor, inv *entity.Invoice, projectManagerID string) error {
	if actor != nil && actor.UserID != "" {
		if actor.UserID == inv.ClientID || actor.UserID == projectManagerID {
			return nil
		}
	}
	return apperror.Forbidden("GetInvoice", "invoice %s is not visible to this user", inv.ID)
}

// AuthorizeProject checks the PM manages the project a quotation is created for
func (g *Guard) AuthorizeProject(actor *entity.Actor, op domainwf.Operation, project *entity.Project) error {
	if project.ProjectManagerID != actor.UserID {
		return apperror.Forbidden(op.String(), "user %s does not manage project %s", actor.UserID, project.ID)
	}
	return nil
}
