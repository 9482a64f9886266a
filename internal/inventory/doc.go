// Package inventory walks a remote store and produces the normalized media
// item list the matcher consumes. Hierarchical stores are traversed
// recursively with unbounded depth; non-media files are excluded silently.
package inventory
