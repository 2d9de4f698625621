package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/id"
	"posledger/internal/core/tx"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/events"
	"posledger/pkg/logger"
)

var tracer = otel.Tracer("posledger/stock")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service owns stock quantities. All quantity changes go through it so that
// every change leaves an Adjustment row behind.
type Service struct {
	repo      Repository
	catalog   catalog.Lookup
	txManager tx.Manager
	publisher events.Publisher
	audit     audit.Logger
	now       func() time.Time
}

// NewService creates a new stock ledger service.
func NewService(
	repo Repository,
	lookup catalog.Lookup,
	txManager tx.Manager,
	publisher events.Publisher,
	auditLog audit.Logger,
) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		catalog:   lookup,
		txManager: txManager,
		publisher: publisher,
		audit:     auditLog,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AdjustStock applies a manual stock change of the given kind.
func (s *Service) AdjustStock(ctx context.Context, req AdjustRequest) (*Adjustment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetBranch(ctx, req.BranchID); err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var result Adjustment
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.LockOrCreateLevel(ctx, req.BranchID, req.ProductID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		adj, err := s.apply(ctx, level, product.Name, req.Kind, req.Quantity)
		if err != nil {
			return err
		}
		adj.Reason = req.Reason
		adj.Notes = req.Notes

		if err := s.repo.CreateAdjustments(ctx, []Adjustment{adj}); err != nil {
			return fmt.Errorf("create adjustment: %w", err)
		}
		if err := s.publisher.Publish(ctx, events.Event{
			AggregateType: "stock_level",
			AggregateID:   level.ID,
			EventType:     events.StockAdjusted,
			Payload:       adj,
		}); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		result = adj
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "stock_level",
		EntityID:   req.ProductID,
		Action:     audit.ActionStockAdjustment,
		OldValues:  map[string]any{"quantity": result.QuantityBefore},
		NewValues: map[string]any{
			"quantity":  result.QuantityAfter,
			"kind":      string(result.Kind),
			"branch_id": req.BranchID.String(),
		},
	})

	logger.Info(ctx, "stock adjusted",
		"stock_branch_id", req.BranchID,
		"product_id", req.ProductID,
		"kind", req.Kind,
		"before", result.QuantityBefore,
		"after", result.QuantityAfter,
	)
	return &result, nil
}

// TransferStock moves quantity from one branch to another.
func (s *Service) TransferStock(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	ctx, span := tracer.Start(ctx, "stock.transfer")
	defer span.End()
	span.SetAttributes(attribute.Int64("quantity", req.Quantity))

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetBranch(ctx, req.FromBranchID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetBranch(ctx, req.ToBranchID); err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var result TransferResult
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, dest, err := s.lockTransferPair(ctx, req)
		if err != nil {
			return err
		}
		if source.Quantity < req.Quantity {
			return apperror.NewInsufficientStock(req.ProductID.String(), product.Name, source.Quantity, req.Quantity)
		}

		out, err := s.apply(ctx, source, product.Name, KindTransferOut, req.Quantity)
		if err != nil {
			return err
		}
		in, err := s.apply(ctx, dest, product.Name, KindTransferIn, req.Quantity)
		if err != nil {
			return err
		}
		out.Reason, in.Reason = req.Reason, req.Reason

		if err := s.repo.CreateAdjustments(ctx, []Adjustment{out, in}); err != nil {
			return fmt.Errorf("create adjustments: %w", err)
		}
		result = TransferResult{Out: out, In: in}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "stock_level",
			AggregateID:   source.ID,
			EventType:     events.StockTransferred,
			Payload:       result,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "stock_level",
		EntityID:   req.ProductID,
		Action:     audit.ActionStockTransfer,
		NewValues: map[string]any{
			"from_branch_id": req.FromBranchID.String(),
			"to_branch_id":   req.ToBranchID.String(),
			"quantity":       req.Quantity,
		},
	})

	logger.Info(ctx, "stock transferred",
		"product_id", req.ProductID,
		"from_branch_id", req.FromBranchID,
		"to_branch_id", req.ToBranchID,
		"quantity", req.Quantity,
	)
	return &result, nil
}

// lockTransferPair locks both rows in ascending branch id order.
func (s *Service) lockTransferPair(ctx context.Context, req TransferRequest) (source, dest *Level, err error) {
	lockSource := func() error {
		source, err = s.repo.GetLevelForUpdate(ctx, req.FromBranchID, req.ProductID)
		if err != nil {
			return fmt.Errorf("lock source stock: %w", err)
		}
		if source == nil {
			return apperror.NewNotFound("stock level", req.ProductID.String()).
				WithDetail("branch_id", req.FromBranchID.String())
		}
		return nil
	}
	lockDest := func() error {
		dest, err = s.repo.LockOrCreateLevel(ctx, req.ToBranchID, req.ProductID)
		if err != nil {
			return fmt.Errorf("lock destination stock: %w", err)
		}
		return nil
	}

	first, second := lockSource, lockDest
	if id.Less(req.ToBranchID, req.FromBranchID) {
		first, second = lockDest, lockSource
	}
	if err := first(); err != nil {
		return nil, nil, err
	}
	if err := second(); err != nil {
		return nil, nil, err
	}
	return source, dest, nil
}

// Consume decrements stock for a sale. It must run inside the caller's
// transaction. Every line is checked before anything is decremented, so a
// shortage leaves all rows untouched.
func (s *Service) Consume(ctx context.Context, branchID id.ID, lines []Line, reference string) ([]Adjustment, error) {
	order, totals, names, err := aggregate(lines)
	if err != nil {
		return nil, err
	}

	var result []Adjustment
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked := make(map[id.ID]*Level, len(order))
		for _, productID := range sortedIDs(order) {
			level, err := s.repo.GetLevelForUpdate(ctx, branchID, productID)
			if err != nil {
				return fmt.Errorf("lock stock %s: %w", productID, err)
			}
			locked[productID] = level
		}

		for _, productID := range order {
			var available int64
			if level := locked[productID]; level != nil {
				available = level.Available()
			}
			if available < totals[productID] {
				return apperror.NewInsufficientStock(productID.String(), names[productID], available, totals[productID])
			}
		}

		result = make([]Adjustment, 0, len(order))
		for _, productID := range order {
			adj, err := s.apply(ctx, locked[productID], names[productID], KindSale, totals[productID])
			if err != nil {
				return err
			}
			adj.Reference = reference
			result = append(result, adj)
		}
		return s.repo.CreateAdjustments(ctx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Restore increments stock, creating missing rows at zero. kind must be an
// increasing kind. It must run inside the caller's transaction.
func (s *Service) Restore(ctx context.Context, branchID id.ID, lines []Line, kind AdjustmentKind, reference string) ([]Adjustment, error) {
	if !kind.IsValid() || !kind.IncreasesStock() {
		return nil, apperror.NewValidation("restore requires an increasing adjustment kind").
			WithDetail("kind", string(kind))
	}
	order, totals, names, err := aggregate(lines)
	if err != nil {
		return nil, err
	}

	var result []Adjustment
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked := make(map[id.ID]*Level, len(order))
		for _, productID := range sortedIDs(order) {
			level, err := s.repo.LockOrCreateLevel(ctx, branchID, productID)
			if err != nil {
				return fmt.Errorf("lock stock %s: %w", productID, err)
			}
			locked[productID] = level
		}

		result = make([]Adjustment, 0, len(order))
		for _, productID := range order {
			adj, err := s.apply(ctx, locked[productID], names[productID], kind, totals[productID])
			if err != nil {
				return err
			}
			adj.Reference = reference
			result = append(result, adj)
		}
		return s.repo.CreateAdjustments(ctx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// apply changes a locked row and returns the adjustment describing it.
// The row is saved; the adjustment is not.
func (s *Service) apply(ctx context.Context, level *Level, productName string, kind AdjustmentKind, qty int64) (Adjustment, error) {
	now := s.now().UTC()
	before := level.Quantity
	after := before + kind.Delta(qty)
	if after < 0 {
		return Adjustment{}, apperror.NewInsufficientStock(level.ProductID.String(), productName, before, qty)
	}

	level.Quantity = after
	if kind.IsRestock() {
		level.LastRestockedAt = &now
	}
	level.Touch(now)
	if err := s.repo.SaveLevel(ctx, level); err != nil {
		return Adjustment{}, fmt.Errorf("save stock level: %w", err)
	}

	return Adjustment{
		ID:             id.New(),
		BranchID:       level.BranchID,
		ProductID:      level.ProductID,
		Kind:           kind,
		Quantity:       qty,
		QuantityBefore: before,
		QuantityAfter:  after,
		AdjustedBy:     appctx.ActorOrSystem(ctx),
		CreatedAt:      now,
	}, nil
}

// GetStockLevel returns the row for the pair joined with catalog data.
func (s *Service) GetStockLevel(ctx context.Context, branchID, productID id.ID) (*LevelView, error) {
	level, err := s.repo.GetLevel(ctx, branchID, productID)
	if err != nil {
		return nil, err
	}
	branch, err := s.catalog.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	view := newView(*level, branch, product)
	return &view, nil
}

// ListLevels returns every row of a branch.
func (s *Service) ListLevels(ctx context.Context, branchID id.ID) ([]LevelView, error) {
	return s.branchViews(ctx, branchID, false)
}

// ListLowStock returns the rows of a branch whose quantity is below the
// product's low-stock threshold.
func (s *Service) ListLowStock(ctx context.Context, branchID id.ID) ([]LevelView, error) {
	return s.branchViews(ctx, branchID, true)
}

func (s *Service) branchViews(ctx context.Context, branchID id.ID, onlyLow bool) ([]LevelView, error) {
	branch, err := s.catalog.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}

	result := make([]LevelView, 0, len(levels))
	for _, level := range levels {
		product, err := s.catalog.GetProduct(ctx, level.ProductID)
		if err != nil {
			return nil, err
		}
		view := newView(level, branch, product)
		if onlyLow && !view.IsLowStock {
			continue
		}
		result = append(result, view)
	}
	return result, nil
}

// TotalAcrossBranches sums the product's quantity over every branch.
func (s *Service) TotalAcrossBranches(ctx context.Context, productID id.ID) (int64, error) {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return 0, err
	}
	return s.repo.SumQuantityByProduct(ctx, productID)
}

// ListAdjustments returns adjustment rows, newest first.
func (s *Service) ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.ListAdjustments(ctx, filter)
}

func newView(level Level, branch *catalog.Branch, product *catalog.Product) LevelView {
	return LevelView{
		Level:             level,
		ProductName:       product.Name,
		SKU:               product.SKU,
		BranchCode:        branch.Code,
		AvailableQuantity: level.Available(),
		LowStockThreshold: product.LowStockThreshold,
		IsLowStock:        level.Quantity < product.LowStockThreshold,
	}
}

// aggregate merges duplicate product lines, keeping first-seen order.
func aggregate(lines []Line) (order []id.ID, totals map[id.ID]int64, names map[id.ID]string, err error) {
	if len(lines) == 0 {
		return nil, nil, nil, apperror.NewValidation("at least one line is required")
	}
	totals = make(map[id.ID]int64, len(lines))
	names = make(map[id.ID]string, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, nil, apperror.NewValidation(fmt.Sprintf("line %d: quantity must be greater than 0", i+1))
		}
		if _, seen := totals[line.ProductID]; !seen {
			order = append(order, line.ProductID)
			names[line.ProductID] = line.ProductName
		}
		totals[line.ProductID] += line.Quantity
	}
	return order, totals, names, nil
}

func sortedIDs(ids []id.ID) []id.ID {
	sorted := make([]id.ID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return id.Less(sorted[i], sorted[j]) })
	return sorted
}
