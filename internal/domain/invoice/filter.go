package invoice

import (
	"time"

	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Filter narrows List. Zero-valued fields are ignored; From and To bound
// the issue date and MinAmount and MaxAmount the total, all inclusively.
type Filter struct {
	BranchID     *id.ID
	CustomerID   *id.ID
	CustomerType CustomerType
	CashierID    string
	Statuses     []Status
	From         *time.Time
	To           *time.Time
	MinAmount    *types.Money
	MaxAmount    *types.Money
	Limit        int
	Offset       int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Normalize applies paging defaults.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches evaluates the filter against one invoice in memory.
func (f Filter) Matches(inv *Invoice) bool {
	if f.BranchID != nil && inv.BranchID != *f.BranchID {
		return false
	}
	if f.CustomerID != nil && (inv.CustomerID == nil || *inv.CustomerID != *f.CustomerID) {
		return false
	}
	if f.CustomerType != "" && inv.CustomerType != f.CustomerType {
		return false
	}
	if f.CashierID != "" && inv.CashierID != f.CashierID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if inv.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && inv.IssueDate.Before(*f.From) {
		return false
	}
	if f.To != nil && inv.IssueDate.After(*f.To) {
		return false
	}
	if f.MinAmount != nil && inv.TotalAmount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && inv.TotalAmount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}
