// Package session owns one sync run end to end. The coordinator sequences
// collection, matching, conflict settlement, planning, and transfer as an
// explicit state machine; the session value it owns is never shared across
// runs, so sequential runs cannot interfere with one another.
package session
