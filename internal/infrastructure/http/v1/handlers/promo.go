package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/domain/audit"
	"posledger/internal/domain/promo"
	"posledger/internal/infrastructure/http/v1/dto"
)

// PromoHandler handles promo code endpoints.
type PromoHandler struct {
	*BaseHandler
	service *promo.Service
	history audit.Reader
}

// NewPromoHandler creates a new promo code handler. history may be nil.
func NewPromoHandler(base *BaseHandler, service *promo.Service, history audit.Reader) *PromoHandler {
	return &PromoHandler{BaseHandler: base, service: service, history: history}
}

// Create handles POST /promo-codes.
func (h *PromoHandler) Create(c *gin.Context) {
	var req dto.CreatePromoCodeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	createReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	code, err := h.service.Create(c.Request.Context(), createReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, code)
}

// ListActive handles GET /promo-codes/active.
func (h *PromoHandler) ListActive(c *gin.Context) {
	codes, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(codes, 0, 0))
}

// Get handles GET /promo-codes/:id.
func (h *PromoHandler) Get(c *gin.Context) {
	codeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	code, err := h.service.Get(c.Request.Context(), codeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, code)
}

// Update handles PUT /promo-codes/:id.
func (h *PromoHandler) Update(c *gin.Context) {
	codeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePromoCodeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	updateReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	code, err := h.service.Update(c.Request.Context(), codeID, updateReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, code)
}

// Delete handles DELETE /promo-codes/:id.
func (h *PromoHandler) Delete(c *gin.Context) {
	codeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), codeID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Validate handles POST /promo-codes/validate.
// An invalid code is answered with INVALID_PROMO_CODE and its reason.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req dto.ValidatePromoCodeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	code, err := h.service.Validate(c.Request.Context(), req.Code)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.PromoValidationResponse{Valid: true, PromoCode: code, CheckedAt: time.Now().UTC()}
	if req.PurchaseAmount != nil {
		if err := code.CheckPurchase(*req.PurchaseAmount); err != nil {
			h.Error(c, err)
			return
		}
		amount := promo.PromoDiscount(code, *req.PurchaseAmount)
		resp.DiscountAmount = &amount
	}
	h.OK(c, resp)
}

// History handles GET /promo-codes/:id/history.
func (h *PromoHandler) History(c *gin.Context) {
	entityHistory(h.BaseHandler, h.history, "promo_code")(c)
}
