package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
	domainwf "github.com/garyjia/sitequote/internal/domain/workflow"
)

var (
	pmA        = &entity.Actor{UserID: "pm-a", Role: entity.RoleProjectManager}
	pmB        = &entity.Actor{UserID: "pm-b", Role: entity.RoleProjectManager}
	clientA    = &entity.Actor{UserID: "client-a", Role: entity.RoleClient}
	clientB    = &entity.Actor{UserID: "client-b", Role: entity.RoleClient}
	contractor = &entity.Actor{UserID: "contractor-a", Role: entity.RoleContractor}
)

func quotation() *entity.Quotation {
	return &entity.Quotation{
		ID:               "q-1",
		ProjectManagerID: pmA.UserID,
		ClientID:         clientA.UserID,
		ContractorID:     contractor.UserID,
	}
}

func TestAuthorizeRole(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name    string
		actor   *entity.Actor
		op      domainwf.Operation
		allowed bool
	}{
		{"pm submits", pmA, domainwf.OpSubmit, true},
		{"pm approves", pmA, domainwf.OpPMApprove, true},
		{"pm converts", pmA, domainwf.OpConvertToInvoice, true},
		{"pm creates", pmA, domainwf.OpCreate, true},
		{"client cannot approve", clientA, domainwf.OpPMApprove, false},
		{"client cannot send", clientA, domainwf.OpSendToClient, false},
		{"contractor cannot submit", contractor, domainwf.OpSubmit, false},
		{"client decides", clientA, domainwf.OpClientDecision, true},
		{"pm cannot decide for client", pmA, domainwf.OpClientDecision, false},
		{"anyone may attempt read", contractor, domainwf.OpRead, true},
		{"missing actor", nil, domainwf.OpRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AuthorizeRole(tt.actor, tt.op)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperror.ErrForbidden)
			}
		})
	}
}

func TestAuthorizeOwnership(t *testing.T) {
	g := NewGuard()
	q := quotation()

	assert.NoError(t, g.AuthorizeOwnership(pmA, domainwf.OpPMApprove, q))
	assert.NoError(t, g.AuthorizeOwnership(clientA, domainwf.OpClientDecision, q))

	err := g.AuthorizeOwnership(pmB, domainwf.OpPMApprove, q)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)

	err = g.AuthorizeOwnership(clientB, domainwf.OpClientDecision, q)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestAuthorizeRead(t *testing.T) {
	g := NewGuard()
	q := quotation()

	for _, a := range []*entity.Actor{pmA, clientA, contractor} {
		assert.NoError(t, g.AuthorizeOwnership(a, domainwf.OpRead, q), a.UserID)
	}
	assert.ErrorIs(t, g.AuthorizeRead(pmB, q), apperror.ErrForbidden)
	assert.ErrorIs(t, g.AuthorizeRead(clientB, q), apperror.ErrForbidden)
}

func TestAuthorizeInvoiceRead(t *testing.T) {
	g := NewGuard()
	inv := &entity.Invoice{ID: "INV-q-1", ClientID: clientA.UserID}

	assert.NoError(t, g.AuthorizeInvoiceRead(clientA, inv, pmA.UserID))
	assert.NoError(t, g.AuthorizeInvoiceRead(pmA, inv, pmA.UserID))
	assert.ErrorIs(t, g.AuthorizeInvoiceRead(pmB, inv, pmA.UserID), apperror.ErrForbidden)
}

func TestAuthorizeProject(t *testing.T) {
	g := NewGuard()
	project := &entity.Project{ID: "p-1", ProjectManagerID: pmA.UserID}

	assert.NoError(t, g.AuthorizeProject(pmA, domainwf.OpCreate, project))
	assert.ErrorIs(t, g.AuthorizeProject(pmB, domainwf.OpCreate, project), apperror.ErrForbidden)
}
