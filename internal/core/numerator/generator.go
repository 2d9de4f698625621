package numerator

import (
	"context"
	"time"
)

// Generator allocates document numbers.
//
// Implementations must participate in the transaction carried by ctx, so a
// rolled-back document does not consume a number.
type Generator interface {
	Next(ctx context.Context, cfg Config, at time.Time) (string, error)
}
