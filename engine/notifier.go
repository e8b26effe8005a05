package engine

import (
	"context"
)

// Notifier delivers out-of-band reports to an operator channel: permission
// failures, manual-review join requests, vote results.
type Notifier interface {
	SendOperator(ctx context.Context, text string) error
}
