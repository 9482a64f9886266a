// Package logging builds the slog loggers used across drivesync. Console
// output favors a compact human-readable line per record; JSON output is
// line-delimited for ingestion. Attr helpers keep field names consistent
// between components.
package logging
