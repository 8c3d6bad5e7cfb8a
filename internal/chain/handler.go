package chain

import "context"

// Handler is the signature every stage wraps: it receives the resolved
// context (correlation id, subject already attached) and the operation's
// argument value, and returns the operation's result or an error. Args and
// the return value are both opaque to the chain — stages that need to
// serialize them (Audit, Cache, Idempotency) do so via encoding/json.
type Handler func(ctx context.Context, args any) (any, error)

// Stage wraps an inner Handler with one layer of cross-cutting behavior.
// The chain composes stages outer-to-inner in the fixed order Audit,
// Idempotency, Cache, RateLimit, Retry (§2).
type Stage interface {
	Wrap(spec OperationSpec, next Handler) Handler
}
