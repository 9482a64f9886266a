// Package transfer executes the planned copy tasks. Each task streams its
// item out of the source store into a transient spool and back up to the
// destination store; per-store semaphores and rate limiters keep concurrent
// remote calls under each store's ceiling. Retry lives in the per-store
// backoff budgets, never here.
package transfer
