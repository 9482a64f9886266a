// Package conflict tracks ambiguous match pairs until an explicit decision
// settles each one. Decisions arrive asynchronously, from a human prompt or
// a configured policy, and the ledger is the run's append-only audit trail:
// records are created once, resolved once, and never deleted mid-run.
package conflict
