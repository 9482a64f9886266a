// Package match pairs items across the two store inventories using the
// name-plus-created-time identity heuristic. Matching is a pure function
// over immutable snapshots: deterministic, independent of listing order, and
// symmetric in which store is treated as "left".
package match
