// Package media defines the normalized item model shared by every sync
// component. Items are immutable snapshots of one file as seen in one store;
// re-listing a store produces fresh instances rather than mutating old ones.
package media
