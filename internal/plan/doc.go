// Package plan turns resolved match state into the run's transfer tasks. It
// is the sole authority on what gets copied: no other component may create
// a task, which is what keeps repeated runs from duplicating media.
package plan
