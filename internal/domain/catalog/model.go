// Package catalog exposes the branch and product records the ledger reads.
// Catalog administration is not part of the ledger; the core only looks
// records up and snapshots prices from them.
package catalog

import (
	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// Branch is a selling location with its own stock.
type Branch struct {
	entity.Base

	Code   string `db:"code" json:"code"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Product is a sellable item.
type Product struct {
	entity.Base

	SKU               string      `db:"sku" json:"sku"`
	Name              string      `db:"name" json:"name"`
	Price             types.Money `db:"price" json:"price"`
	TaxRate           types.Money `db:"tax_rate" json:"taxRate"` // percent
	LowStockThreshold int64       `db:"low_stock_threshold" json:"lowStockThreshold"`
	Active            bool        `db:"active" json:"active"`
}
