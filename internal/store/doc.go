// Package store defines the adapter boundary between the sync core and the
// two remote media repositories. The core only ever talks to an Adapter;
// concrete Drive and Photos implementations live in subpackages and map
// their API failures onto the shared error taxonomy here.
package store
