package store

import (
	"context"
	"io"
	"time"

	"drivesync/internal/media"
)

// Folder is one subfolder discovered while walking a hierarchical store.
type Folder struct {
	ID   string
	Name string
}

// Listing is the result of listing one folder of a hierarchical store.
type Listing struct {
	Items   []media.Item
	Folders []Folder
}

// Adapter is the uniform capability every remote store exposes to the core.
// Implementations must be safe for concurrent use; every method honors its
// context for cancellation.
type Adapter interface {
	// Store reports which repository this adapter fronts.
	Store() media.Store

	// Download opens a byte stream for the item. The caller owns the
	// returned reader and must close it.
	Download(ctx context.Context, itemID string) (io.ReadCloser, error)

	// Upload streams a new item into the store and returns its new
	// store-native ID.
	Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error)
}

// FlatLister is implemented by adapters whose store is a single flat library.
type FlatLister interface {
	// List returns every media item in the library.
	List(ctx context.Context) ([]media.Item, error)
}

// FolderLister is implemented by adapters whose store is hierarchical.
type FolderLister interface {
	// ListFolder returns the media items and subfolders directly under
	// folderID.
	ListFolder(ctx context.Context, folderID string) (Listing, error)
}
