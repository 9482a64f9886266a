// Package report archives finished sync runs to SQLite so past sessions can
// be listed and inspected after the process exits.
package report
