package dto

import (
	"posledger/internal/core/id"
	"posledger/internal/domain/stock"
)

// --- Request DTOs ---

// AdjustStockRequest represents a manual stock adjustment.
type AdjustStockRequest struct {
	BranchID       string `json:"branchId" binding:"required,uuid"`
	ProductID      string `json:"productId" binding:"required,uuid"`
	AdjustmentType string `json:"adjustmentType" binding:"required"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
	Reason         string `json:"reason,omitempty" binding:"omitempty,max=500"`
	Notes          string `json:"notes,omitempty"`
}

// ToRequest converts the DTO.
func (r *AdjustStockRequest) ToRequest() (stock.AdjustRequest, error) {
	branchID, err := ParseID("branchId", r.BranchID)
	if err != nil {
		return stock.AdjustRequest{}, err
	}
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.AdjustRequest{}, err
	}
	return stock.AdjustRequest{
		BranchID:  branchID,
		ProductID: productID,
		Kind:      stock.AdjustmentKind(r.AdjustmentType),
		Quantity:  r.Quantity,
		Reason:    r.Reason,
		Notes:     r.Notes,
	}, nil
}

// TransferStockRequest moves stock between branches.
type TransferStockRequest struct {
	FromBranchID string `json:"fromBranchId" binding:"required,uuid"`
	ToBranchID   string `json:"toBranchId" binding:"required,uuid"`
	ProductID    string `json:"productId" binding:"required,uuid"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
	Reason       string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// ToRequest converts the DTO.
func (r *TransferStockRequest) ToRequest() (stock.TransferRequest, error) {
	from, err := ParseID("fromBranchId", r.FromBranchID)
	if err != nil {
		return stock.TransferRequest{}, err
	}
	to, err := ParseID("toBranchId", r.ToBranchID)
	if err != nil {
		return stock.TransferRequest{}, err
	}
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.TransferRequest{}, err
	}
	return stock.TransferRequest{
		FromBranchID: from,
		ToBranchID:   to,
		ProductID:    productID,
		Quantity:     r.Quantity,
		Reason:       r.Reason,
	}, nil
}

// AdjustmentFilterRequest is the query of GET /stock/adjustments.
type AdjustmentFilterRequest struct {
	PaginationRequest
	BranchID       string `form:"branchId" binding:"omitempty,uuid"`
	ProductID      string `form:"productId" binding:"omitempty,uuid"`
	AdjustmentType string `form:"adjustmentType"`
	Reference      string `form:"reference"`
}

// ToFilter converts the query.
func (r *AdjustmentFilterRequest) ToFilter() (stock.AdjustmentFilter, error) {
	f := stock.AdjustmentFilter{
		Reference: r.Reference,
		Limit:     r.Limit,
		Offset:    r.Offset,
	}

	var err error
	if f.BranchID, err = ParseOptionalID("branchId", r.BranchID); err != nil {
		return f, err
	}
	if f.ProductID, err = ParseOptionalID("productId", r.ProductID); err != nil {
		return f, err
	}
	if r.AdjustmentType != "" {
		kind := stock.AdjustmentKind(r.AdjustmentType)
		f.Kind = &kind
	}
	return f, nil
}

// --- Response DTOs ---

// StockTotalResponse is the quantity of one product across all branches.
type StockTotalResponse struct {
	ProductID     string `json:"productId"`
	TotalQuantity int64  `json:"totalQuantity"`
}

// NewStockTotalResponse creates the response.
func NewStockTotalResponse(productID id.ID, total int64) StockTotalResponse {
	return StockTotalResponse{ProductID: productID.String(), TotalQuantity: total}
}
