package bridge

import (
	"context"
	"time"
)

// Order is the finalized payload of a completed call, handed to the
// Submitter at most once per call.
type Order struct {
	CallSid    string
	CallerFrom string
	Payload    map[string]any
	CreatedAt  time.Time
}

// Submitter persists a finalized order. Implementations live outside the
// bridge (see pkg/orders for the store-backed one).
type Submitter interface {
	Submit(ctx context.Context, order *Order) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, order *Order) error

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, order *Order) error {
	return f(ctx, order)
}
