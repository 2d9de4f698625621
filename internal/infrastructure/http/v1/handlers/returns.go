package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/audit"
	"posledger/internal/domain/returns"
	"posledger/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles HTTP requests for returns.
type ReturnHandler struct {
	*BaseHandler
	service *returns.Service
	history audit.Reader
}

// NewReturnHandler creates a new return handler. history may be nil.
func NewReturnHandler(base *BaseHandler, service *returns.Service, history audit.Reader) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, service: service, history: history}
}

// Create handles POST /returns.
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	createReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.Create(c.Request.Context(), createReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ret)
}

// Get handles GET /returns/:id.
func (h *ReturnHandler) Get(c *gin.Context) {
	returnID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.Get(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// List handles GET /returns.
func (h *ReturnHandler) List(c *gin.Context) {
	var req dto.ReturnFilterRequest
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

// Approve handles POST /returns/:id/approve.
func (h *ReturnHandler) Approve(c *gin.Context) {
	returnID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.Approve(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// Reject handles POST /returns/:id/reject.
func (h *ReturnHandler) Reject(c *gin.Context) {
	returnID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ret, err := h.service.Reject(c.Request.Context(), returnID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// History handles GET /returns/:id/history.
func (h *ReturnHandler) History(c *gin.Context) {
	entityHistory(h.BaseHandler, h.history, "return")(c)
}
