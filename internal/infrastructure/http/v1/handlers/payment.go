package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/payment"
	"posledger/internal/infrastructure/http/v1/dto"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	*BaseHandler
	service *payment.Service
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler, service *payment.Service) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, service: service}
}

// Process handles POST /invoices/:id/payments.
func (h *PaymentHandler) Process(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProcessPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Process(c.Request.Context(), req.ToRequest(invoiceID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// ListByInvoice handles GET /invoices/:id/payments.
func (h *PaymentHandler) ListByInvoice(c *gin.Context) {
	invoiceID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	items, err := h.service.ListByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, 0, 0))
}

// ListByBranch handles GET /branches/:id/payments.
func (h *PaymentHandler) ListByBranch(c *gin.Context) {
	branchID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}

	items, err := h.service.ListByBranch(c.Request.Context(), branchID, page.Limit, page.Offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, page.Limit, page.Offset))
}
