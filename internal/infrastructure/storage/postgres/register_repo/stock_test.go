package register_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/id"
	"posledger/internal/domain/stock"
)

func TestAdjustmentsQuery_AllFilters(t *testing.T) {
	repo := NewStockRepo(nil)
	branchID := id.New()
	kind := stock.KindSale

	sql, args, err := repo.adjustmentsQuery(stock.AdjustmentFilter{
		BranchID:  &branchID,
		Kind:      &kind,
		Reference: "INV-20250615-BR01-00001",
		Limit:     50,
		Offset:    100,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM stock_adjustments WHERE branch_id = $1 AND kind = $2 AND reference = $3")
	assert.Contains(t, sql, "ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 100")
	// squirrel.Eq expands driver.Valuer arguments, so ids arrive as strings.
	assert.Equal(t, []any{branchID.String(), kind, "INV-20250615-BR01-00001"}, args)
}

func TestAdjustmentsQuery_NoFilters(t *testing.T) {
	sql, args, err := NewStockRepo(nil).adjustmentsQuery(stock.AdjustmentFilter{}).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "LIMIT")
	assert.Empty(t, args)
}

func TestLevelQuery_LocksPair(t *testing.T) {
	repo := NewStockRepo(nil)
	branchID, productID := id.New(), id.New()

	sql, args, err := repo.levelQuery(branchID, productID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE branch_id = $1 AND product_id = $2 LIMIT 1 FOR UPDATE")
	assert.Equal(t, []any{branchID.String(), productID.String()}, args)
}

func TestAdjustmentRow_FollowsColumnOrder(t *testing.T) {
	adj := stock.Adjustment{ID: id.New(), Kind: stock.KindRestock, Quantity: 4, QuantityAfter: 4}
	row := adjustmentRow(adj)

	require.Len(t, row, len(adjustmentColumns))
	for i, col := range adjustmentColumns {
		switch col {
		case "id":
			assert.Equal(t, adj.ID, row[i])
		case "kind":
			assert.Equal(t, stock.KindRestock, row[i])
		case "quantity":
			assert.Equal(t, int64(4), row[i])
		}
	}
}
