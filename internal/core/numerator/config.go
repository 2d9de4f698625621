// Package numerator provides domain contracts for document numbering.
package numerator

import (
	"fmt"
	"time"
)

// Document number prefixes.
const (
	PrefixInvoice = "INV"
	PrefixReturn  = "RET"
)

// Config describes one document number series.
type Config struct {
	// Prefix starts every number and keys the sequence (e.g. "INV").
	Prefix string

	// Scope is printed after the date, typically the branch code.
	// It does not partition the sequence.
	Scope string

	// PadWidth is the minimum sequence width (default 5)
	PadWidth int
}

// DefaultConfig returns the series for prefix scoped to a branch code.
func DefaultConfig(prefix, scope string) Config {
	return Config{
		Prefix:   prefix,
		Scope:    scope,
		PadWidth: 5,
	}
}

// Format renders PREFIX-YYYYMMDD-SCOPE-NNNNN.
func Format(cfg Config, at time.Time, seq int64) string {
	width := cfg.PadWidth
	if width == 0 {
		width = 5
	}
	date := at.Format("20060102")
	if cfg.Scope == "" {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, date, width, seq)
	}
	return fmt.Sprintf("%s-%s-%s-%0*d", cfg.Prefix, date, cfg.Scope, width, seq)
}
