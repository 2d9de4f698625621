// Package stock is the stock ledger: per (branch, product) quantities,
// their adjustments and the audit trail of every change.
package stock

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
)

// AdjustmentKind classifies a stock change. Every kind either increases
// or decreases stock.
type AdjustmentKind string

const (
	KindRestock      AdjustmentKind = "RESTOCK"
	KindSale         AdjustmentKind = "SALE"
	KindDamage       AdjustmentKind = "DAMAGE"
	KindTheft        AdjustmentKind = "THEFT"
	KindReturn       AdjustmentKind = "RETURN"
	KindTransferIn   AdjustmentKind = "TRANSFER_IN"
	KindTransferOut  AdjustmentKind = "TRANSFER_OUT"
	KindExpired      AdjustmentKind = "EXPIRED"
	KindAdjustment   AdjustmentKind = "ADJUSTMENT"
	KindInitialStock AdjustmentKind = "INITIAL_STOCK"
)

var increases = map[AdjustmentKind]bool{
	KindRestock:      true,
	KindSale:         false,
	KindDamage:       false,
	KindTheft:        false,
	KindReturn:       true,
	KindTransferIn:   true,
	KindTransferOut:  false,
	KindExpired:      false,
	KindAdjustment:   true,
	KindInitialStock: true,
}

// IsValid reports whether k is a known kind.
func (k AdjustmentKind) IsValid() bool {
	_, ok := increases[k]
	return ok
}

// IncreasesStock reports the direction of the kind.
func (k AdjustmentKind) IncreasesStock() bool {
	return increases[k]
}

// IsRestock reports whether the kind refreshes lastRestockedAt.
func (k AdjustmentKind) IsRestock() bool {
	return k == KindRestock
}

// Delta returns the signed quantity change for qty units of this kind.
func (k AdjustmentKind) Delta(qty int64) int64 {
	if k.IncreasesStock() {
		return qty
	}
	return -qty
}

// Level is the stock row for one branch and product.
// Quantity is never negative. ReservedQuantity is advisory: it reduces
// availability but nothing in the ledger increments it.
type Level struct {
	entity.Base

	BranchID         id.ID      `db:"branch_id" json:"branchId"`
	ProductID        id.ID      `db:"product_id" json:"productId"`
	Quantity         int64      `db:"quantity" json:"quantity"`
	ReservedQuantity int64      `db:"reserved_quantity" json:"reservedQuantity"`
	LastRestockedAt  *time.Time `db:"last_restocked_at" json:"lastRestockedAt,omitempty"`
}

// NewLevel creates an empty row for the pair.
func NewLevel(branchID, productID id.ID, now time.Time) *Level {
	return &Level{
		Base:      entity.NewBase(now),
		BranchID:  branchID,
		ProductID: productID,
	}
}

// Available is the quantity that may be sold or moved.
func (l *Level) Available() int64 {
	return l.Quantity - l.ReservedQuantity
}

// Adjustment is a write-once record of a stock change.
type Adjustment struct {
	ID             id.ID          `db:"id" json:"id"`
	BranchID       id.ID          `db:"branch_id" json:"branchId"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	Kind           AdjustmentKind `db:"kind" json:"kind"`
	Quantity       int64          `db:"quantity" json:"quantity"`
	QuantityBefore int64          `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  int64          `db:"quantity_after" json:"quantityAfter"`
	Reason         string         `db:"reason" json:"reason,omitempty"`
	Notes          string         `db:"notes" json:"notes,omitempty"`
	Reference      string         `db:"reference" json:"reference,omitempty"`
	AdjustedBy     string         `db:"adjusted_by" json:"adjustedBy"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// LevelView is a stock row joined with catalog data for reporting.
type LevelView struct {
	Level
	ProductName       string `json:"productName"`
	SKU               string `json:"sku"`
	BranchCode        string `json:"branchCode"`
	AvailableQuantity int64  `json:"availableQuantity"`
	LowStockThreshold int64  `json:"lowStockThreshold"`
	IsLowStock        bool   `json:"isLowStock"`
}

// Line is one product quantity consumed or restored by another module.
type Line struct {
	ProductID   id.ID
	ProductName string
	Quantity    int64
}

// AdjustRequest is the input of AdjustStock.
type AdjustRequest struct {
	BranchID  id.ID
	ProductID id.ID
	Kind      AdjustmentKind
	Quantity  int64
	Reason    string
	Notes     string
}

// Validate checks the request without touching the store.
func (r AdjustRequest) Validate() error {
	if id.IsNil(r.BranchID) {
		return apperror.NewValidation("branch is required").WithDetail("field", "branchId")
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !r.Kind.IsValid() {
		return apperror.NewValidation("unknown adjustment kind").WithDetail("field", "kind").WithDetail("value", string(r.Kind))
	}
	if r.Quantity <= 0 {
		return apperror.NewValidation("quantity must be greater than 0").WithDetail("field", "quantity")
	}
	return nil
}

// TransferRequest is the input of TransferStock.
type TransferRequest struct {
	FromBranchID id.ID
	ToBranchID   id.ID
	ProductID    id.ID
	Quantity     int64
	Reason       string
}

// Validate checks the request without touching the store.
func (r TransferRequest) Validate() error {
	if id.IsNil(r.FromBranchID) || id.IsNil(r.ToBranchID) {
		return apperror.NewValidation("source and destination branches are required")
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if r.Quantity <= 0 {
		return apperror.NewValidation("quantity must be greater than 0").WithDetail("field", "quantity")
	}
	if r.FromBranchID == r.ToBranchID {
		return apperror.NewBusinessRule("Cannot transfer stock to the same branch").
			WithDetail("branch_id", r.FromBranchID.String())
	}
	return nil
}

// TransferResult holds the two adjustment rows written by a transfer.
type TransferResult struct {
	Out Adjustment `json:"out"`
	In  Adjustment `json:"in"`
}
