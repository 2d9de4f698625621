package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/audit"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/returns"
	"posledger/internal/infrastructure/http/v1/dto"
)

// HeaderIdempotencyKey carries the client-chosen idempotency key of POST /invoices.
const HeaderIdempotencyKey = "Idempotency-Key"

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
	returns *returns.Service
	history audit.Reader
}

// NewInvoiceHandler creates a new invoice handler. history may be nil.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service, returnSvc *returns.Service, history audit.Reader) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service, returns: returnSvc, history: history}
}

// Create handles POST /invoices.
// Replaying a known idempotency key returns the stored invoice.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	createReq, err := req.ToRequest(c.GetHeader(HeaderIdempotencyKey))
	if err != nil {
		h.Error(c, err)
		return
	}

	inv, err := h.service.Create(c.Request.Context(), createReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.Get(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// GetByNumber handles GET /invoices/number/:number.
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	inv, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// List handles GET /invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	var req dto.InvoiceFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.Cancel(c.Request.Context(), invoiceID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// GetReturn handles GET /invoices/:id/return.
func (h *InvoiceHandler) GetReturn(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	ret, err := h.returns.GetByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// History handles GET /invoices/:id/history.
func (h *InvoiceHandler) History(c *gin.Context) {
	entityHistory(h.BaseHandler, h.history, "invoice")(c)
}
