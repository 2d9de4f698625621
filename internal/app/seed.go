package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/stock"
)

// SeedResult lists what Seed wrote.
type SeedResult struct {
	Branches []*catalog.Branch
	Products []*catalog.Product
	Promo    *promo.Code
}

type seedProduct struct {
	sku, name, price, taxRate string
	threshold, qty            int64
}

var demoProducts = []seedProduct{
	{"ESP-001", "Espresso", "2.50", "10", 10, 200},
	{"LAT-001", "Latte", "3.80", "10", 10, 150},
	{"CRO-001", "Croissant", "2.20", "5", 20, 60},
	{"BAG-001", "Coffee beans 250g", "12.00", "5", 5, 25},
}

// seedID derives a stable id so reseeding replaces rows instead of duplicating them.
func seedID(kind, code string) id.ID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("posledger:"+kind+":"+code))
}

// Seed writes two branches, a few products with opening stock in the first
// branch and the WELCOME10 promo code. Running it twice is harmless: rows are
// upserted, stock is only opened for products with none and an existing promo
// code is kept.
func Seed(ctx context.Context, writer catalog.Writer, svc *Services, now time.Time) (*SeedResult, error) {
	res := &SeedResult{}

	for _, code := range []string{"BR01", "BR02"} {
		b := &catalog.Branch{Base: entity.NewBase(now), Code: code, Name: "Branch " + code, Active: true}
		b.ID = seedID("branch", code)
		if err := writer.SaveBranch(ctx, b); err != nil {
			return nil, fmt.Errorf("seed branch %s: %w", code, err)
		}
		res.Branches = append(res.Branches, b)
	}

	for _, sp := range demoProducts {
		p := &catalog.Product{
			Base:              entity.NewBase(now),
			SKU:               sp.sku,
			Name:              sp.name,
			Price:             types.MustMoney(sp.price),
			TaxRate:           types.MustMoney(sp.taxRate),
			LowStockThreshold: sp.threshold,
			Active:            true,
		}
		p.ID = seedID("product", sp.sku)
		if err := writer.SaveProduct(ctx, p); err != nil {
			return nil, fmt.Errorf("seed product %s: %w", sp.sku, err)
		}
		res.Products = append(res.Products, p)

		total, err := svc.Stock.TotalAcrossBranches(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if total > 0 {
			continue
		}
		if _, err := svc.Stock.AdjustStock(ctx, stock.AdjustRequest{
			BranchID:  res.Branches[0].ID,
			ProductID: p.ID,
			Kind:      stock.KindInitialStock,
			Quantity:  sp.qty,
			Reason:    "seed",
		}); err != nil {
			return nil, fmt.Errorf("seed stock %s: %w", sp.sku, err)
		}
	}

	code, err := svc.Promo.Create(ctx, promo.CreateRequest{
		Code:        "WELCOME10",
		Description: "10% off the first order",
		Kind:        promo.KindPercentage,
		Value:       types.MustMoney("10"),
		ValidFrom:   now.AddDate(0, 0, -1),
		ValidUntil:  now.AddDate(1, 0, 0),
	})
	switch {
	case err == nil:
		res.Promo = code
	case apperror.HasCode(err, apperror.CodeDuplicate):
		if res.Promo, err = svc.Promo.GetByCode(ctx, "WELCOME10"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("seed promo code: %w", err)
	}

	return res, nil
}
