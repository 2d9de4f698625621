package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/stock"
	"posledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Adjust handles POST /stock/adjustments.
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	adjustReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	adj, err := h.service.AdjustStock(c.Request.Context(), adjustReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, adj)
}

// Transfer handles POST /stock/transfers.
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	transferReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.TransferStock(c.Request.Context(), transferReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// GetLevels handles GET /stock/levels?branchId=...[&productId=...].
// With a product the single row is returned, otherwise every row of the branch.
func (h *StockHandler) GetLevels(c *gin.Context) {
	ctx := c.Request.Context()
	branchID, ok := h.QueryID(c, "branchId")
	if !ok {
		return
	}

	if c.Query("productId") != "" {
		productID, ok := h.QueryID(c, "productId")
		if !ok {
			return
		}
		view, err := h.service.GetStockLevel(ctx, branchID, productID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, view)
		return
	}

	views, err := h.service.ListLevels(ctx, branchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(views, 0, 0))
}

// GetLowStock handles GET /stock/low?branchId=...
func (h *StockHandler) GetLowStock(c *gin.Context) {
	branchID, ok := h.QueryID(c, "branchId")
	if !ok {
		return
	}

	views, err := h.service.ListLowStock(c.Request.Context(), branchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(views, 0, 0))
}

// GetTotal handles GET /stock/total?productId=...
func (h *StockHandler) GetTotal(c *gin.Context) {
	productID, ok := h.QueryID(c, "productId")
	if !ok {
		return
	}

	total, err := h.service.TotalAcrossBranches(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewStockTotalResponse(productID, total))
}

// ListAdjustments handles GET /stock/adjustments.
func (h *StockHandler) ListAdjustments(c *gin.Context) {
	var req dto.AdjustmentFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.service.ListAdjustments(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}
