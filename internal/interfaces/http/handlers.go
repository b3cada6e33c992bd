package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/sitequote/internal/application/service"
	"github.com/garyjia/sitequote/internal/application/workflow"
	"github.com/garyjia/sitequote/internal/domain/apperror"
	"github.com/garyjia/sitequote/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	quotations service.QuotationService
	catalog    service.CatalogService
	exporter   Exporter
	logger     Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	quotations service.QuotationService,
	catalog service.CatalogService,
	exporter Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		quotations: quotations,
		catalog:    catalog,
		exporter:   exporter,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// InvoiceID is set for AlreadyConverted
	InvoiceID string `json:"invoiceId,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// LineItemRequest is one line of a create or update body
type LineItemRequest struct {
	Name      string          `json:"name" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// CreateQuotationRequest is the body of POST /api/quotations
type CreateQuotationRequest struct {
	ProjectID            string            `json:"project_id" binding:"required"`
	MaintenanceRequestID *string           `json:"maintenance_request_id"`
	Title                string            `json:"title" binding:"required"`
	Notes                string            `json:"notes"`
	Items                []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	TaxRate              *decimal.Decimal  `json:"tax_rate"`
	ValidUntil           time.Time         `json:"valid_until"`
}

// UpdateQuotationRequest is the body of PUT /api/quotations/:id.
// Absent fields are left unchanged.
type UpdateQuotationRequest struct {
	Title      *string           `json:"title"`
	Notes      *string           `json:"notes"`
	Items      []LineItemRequest `json:"items" binding:"omitempty,dive"`
	TaxRate    *decimal.Decimal  `json:"tax_rate"`
	ValidUntil *time.Time        `json:"valid_until"`
}

// PmRejectRequest is the body of POST /api/quotations/:id/pm-reject
type PmRejectRequest struct {
	Reason string `json:"reason"`
}

// ClientDecisionRequest is the body of POST /api/quotations/:id/client-decision
type ClientDecisionRequest struct {
	Accept *bool  `json:"accept" binding:"required"`
	Note   string `json:"note"`
}

// ProjectRequest is the body of POST /api/projects
type ProjectRequest struct {
	Name         string `json:"name" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ContractorID string `json:"contractor_id"`
}

// EstimateRequest is the body of POST /api/estimates
type EstimateRequest struct {
	ProjectID    string                `json:"project_id" binding:"required"`
	ContractorID string                `json:"contractor_id"`
	Title        string                `json:"title" binding:"required"`
	Items        []entity.EstimateItem `json:"items" binding:"required,min=1"`
}

// ConvertResponse is the body returned by convert-to-invoice
type ConvertResponse struct {
	InvoiceID string          `json:"invoiceId"`
	Invoice   *entity.Invoice `json:"invoice"`
}

func toLineItems(reqs []LineItemRequest) []entity.LineItem {
	if reqs == nil {
		return nil
	}
	items := make([]entity.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = entity.LineItem{
			Name:      r.Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			TaxRate:   r.TaxRate,
		}
	}
	return items
}

// bind decodes the JSON body into req, writing a 400 on failure
func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.writeError(c, apperror.Validation("decode request", "%v", err))
		return false
	}
	return true
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateQuotation handles POST /api/quotations
func (h *Handlers) CreateQuotation(c *gin.Context) {
	var req CreateQuotationRequest
	if !h.bind(c, &req) {
		return
	}

	q, err := h.quotations.Create(c.Request.Context(), actorFrom(c), req.ProjectID, workflow.CreateCommand{
		MaintenanceRequestID: req.MaintenanceRequestID,
		Title:                req.Title,
		Notes:                req.Notes,
		Items:                toLineItems(req.Items),
		TaxRate:              req.TaxRate,
		ValidUntil:           req.ValidUntil,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, q)
}

// CreateQuotationFromEstimate handles POST /api/quotations/from-estimate/:estimateId
func (h *Handlers) CreateQuotationFromEstimate(c *gin.Context) {
	q, err := h.quotations.CreateFromEstimate(c.Request.Context(), actorFrom(c), c.Param("estimateId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, q)
}

// GetQuotation handles GET /api/quotations/:id
func (h *Handlers) GetQuotation(c *gin.Context) {
	q, err := h.quotations.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// UpdateQuotation handles PUT /api/quotations/:id
func (h *Handlers) UpdateQuotation(c *gin.Context) {
	var req UpdateQuotationRequest
	if !h.bind(c, &req) {
		return
	}

	q, err := h.quotations.Update(c.Request.Context(), actorFrom(c), c.Param("id"), workflow.UpdateCommand{
		Title:      req.Title,
		Notes:      req.Notes,
		Items:      toLineItems(req.Items),
		TaxRate:    req.TaxRate,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// DeleteQuotation handles DELETE /api/quotations/:id
func (h *Handlers) DeleteQuotation(c *gin.Context) {
	if err := h.quotations.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": c.Param("id"), "deleted": true})
}

// SubmitForApproval handles POST /api/quotations/:id/submit-for-approval
func (h *Handlers) SubmitForApproval(c *gin.Context) {
	q, err := h.quotations.SubmitForApproval(c.Request.Context(), actorFrom(c), c.Param("id"))
	h.writeQuotation(c, q, err)
}

// PmApprove handles POST /api/quotations/:id/pm-approve
func (h *Handlers) PmApprove(c *gin.Context) {
	q, err := h.quotations.PmApprove(c.Request.Context(), actorFrom(c), c.Param("id"))
	h.writeQuotation(c, q, err)
}

// PmReject handles POST /api/quotations/:id/pm-reject
func (h *Handlers) PmReject(c *gin.Context) {
	var req PmRejectRequest
	if !h.bind(c, &req) {
		return
	}
	q, err := h.quotations.PmReject(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason)
	h.writeQuotation(c, q, err)
}

// SendToClient handles POST /api/quotations/:id/send-to-client
func (h *Handlers) SendToClient(c *gin.Context) {
	q, err := h.quotations.SendToClient(c.Request.Context(), actorFrom(c), c.Param("id"))
	h.writeQuotation(c, q, err)
}

// ClientDecision handles POST /api/quotations/:id/client-decision
func (h *Handlers) ClientDecision(c *gin.Context) {
	var req ClientDecisionRequest
	if !h.bind(c, &req) {
		return
	}
	q, err := h.quotations.ClientDecision(c.Request.Context(), actorFrom(c), c.Param("id"), *req.Accept, req.Note)
	h.writeQuotation(c, q, err)
}

// ConvertToInvoice handles POST /api/quotations/:id/convert-to-invoice
func (h *Handlers) ConvertToInvoice(c *gin.Context) {
	inv, err := h.quotations.ConvertToInvoice(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, ConvertResponse{InvoiceID: inv.ID, Invoice: inv})
}

// History handles GET /api/quotations/:id/history
func (h *Handlers) History(c *gin.Context) {
	entries, err := h.quotations.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.AuditEntry{}
	}
	ok(c, http.StatusOK, entries)
}

// Export handles GET /api/quotations/:id/export
func (h *Handlers) Export(c *gin.Context) {
	q, err := h.quotations.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, q); err != nil {
		h.logger.Error("Failed to export quotation", "quotation_id", q.ID, "error", err)
		h.writeError(c, apperror.Wrap(apperror.KindDependency, "export quotation", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+h.exporter.FileName(q)+`"`)
	c.Data(http.StatusOK, h.exporter.ContentType(), buf.Bytes())
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	inv, err := h.catalog.GetInvoice(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, inv)
}

// CreateProject handles POST /api/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req ProjectRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.catalog.CreateProject(c.Request.Context(), actorFrom(c), &entity.Project{
		Name:         req.Name,
		ClientID:     req.ClientID,
		ContractorID: req.ContractorID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// CreateEstimate handles POST /api/estimates
func (h *Handlers) CreateEstimate(c *gin.Context) {
	var req EstimateRequest
	if !h.bind(c, &req) {
		return
	}
	est, err := h.catalog.CreateEstimate(c.Request.Context(), actorFrom(c), &entity.Estimate{
		ProjectID:    req.ProjectID,
		ContractorID: req.ContractorID,
		Title:        req.Title,
		Items:        req.Items,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, est)
}

func (h *Handlers) writeQuotation(c *gin.Context, q *entity.Quotation, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}
