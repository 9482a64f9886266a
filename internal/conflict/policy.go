package conflict

import "context"

// DecisionSource supplies resolutions for pending records. Implementations
// drive a human-facing prompt or apply a fixed policy; either way the core
// only sees decisions landing on the ledger.
type DecisionSource interface {
	// Decide returns the decision for one pending record. Blocking is fine;
	// the coordinator invokes sources off the transfer path and honors ctx.
	Decide(ctx context.Context, record Record) (Decision, error)
}

// DecisionFunc adapts a plain function to a DecisionSource.
type DecisionFunc func(ctx context.Context, record Record) (Decision, error)

func (f DecisionFunc) Decide(ctx context.Context, record Record) (Decision, error) {
	return f(ctx, record)
}

// PolicySame resolves every conflict as the same media (skip both sides).
func PolicySame() DecisionSource {
	return DecisionFunc(func(context.Context, Record) (Decision, error) {
		return Same, nil
	})
}

// PolicyDifferent resolves every conflict as distinct media (copy both ways).
func PolicyDifferent() DecisionSource {
	return DecisionFunc(func(context.Context, Record) (Decision, error) {
		return Different, nil
	})
}
