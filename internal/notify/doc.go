// Package notify delivers sync milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and gracefully degrades to a no-op when no topic is set.
// The sync core depends only on the Service interface.
package notify
