// Package backoff wraps every remote store call in bounded retry with
// exponential backoff. Each store owns a single Budget for the whole run:
// rate-limit pressure observed by one call slows every caller of that store,
// so a handful of throttled items cannot starve the rest past the store's
// ceiling.
package backoff
