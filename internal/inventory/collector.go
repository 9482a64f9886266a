package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"drivesync/internal/backoff"
	"drivesync/internal/logging"
	"drivesync/internal/media"
	"drivesync/internal/store"
)

// ListingFailure records one subtree whose items were dropped because its
// listing call failed. Non-fatal; surfaced in the session report.
type ListingFailure struct {
	Store    media.Store
	FolderID string
	Err      error
}

// Result is a completed collection: the normalized inventory plus any
// subtree failures encountered along the way.
type Result struct {
	Items    []media.Item
	Failures []ListingFailure
}

// Collector walks one store through its shared retry budget.
type Collector struct {
	adapter store.Adapter
	budget  *backoff.Budget
	logger  *slog.Logger
}

// NewCollector constructs a collector for the given adapter. All remote
// calls are routed through budget.
func NewCollector(adapter store.Adapter, budget *backoff.Budget, logger *slog.Logger) *Collector {
	return &Collector{
		adapter: adapter,
		budget:  budget,
		logger:  logging.NewComponentLogger(logger, "inventory"),
	}
}

// Collect lists the store under rootScope and returns every image and video
// item found. For hierarchical stores the walk recurses over all subfolders;
// a failed subfolder listing drops that subtree and is recorded. A failure
// of the top-level call is fatal to the collection.
func (c *Collector) Collect(ctx context.Context, rootScope string) (Result, error) {
	switch lister := c.adapter.(type) {
	case store.FolderLister:
		return c.collectTree(ctx, lister, rootScope)
	case store.FlatLister:
		return c.collectFlat(ctx, lister)
	default:
		return Result{}, fmt.Errorf("inventory: %s adapter supports no listing capability", c.adapter.Store())
	}
}

func (c *Collector) collectFlat(ctx context.Context, lister store.FlatLister) (Result, error) {
	var listed []media.Item
	err := c.budget.Do(ctx, "list library", func(ctx context.Context) error {
		items, err := lister.List(ctx)
		if err != nil {
			return err
		}
		listed = items
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("inventory: list %s library: %w", c.adapter.Store(), err)
	}

	result := Result{Items: filterMedia(listed)}
	c.logger.Info("library listed",
		logging.String("store", c.adapter.Store().String()),
		logging.Int("items", len(result.Items)),
		logging.Int("skipped", len(listed)-len(result.Items)),
	)
	return result, nil
}

func (c *Collector) collectTree(ctx context.Context, lister store.FolderLister, rootID string) (Result, error) {
	var result Result

	rootListing, err := c.listFolder(ctx, lister, rootID)
	if err != nil {
		return Result{}, fmt.Errorf("inventory: list %s root folder %s: %w", c.adapter.Store(), rootID, err)
	}
	result.Items = append(result.Items, filterMedia(rootListing.Items)...)

	pending := append([]store.Folder(nil), rootListing.Folders...)
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		folder := pending[0]
		pending = pending[1:]

		listing, err := c.listFolder(ctx, lister, folder.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{}, err
			}
			result.Failures = append(result.Failures, ListingFailure{
				Store:    c.adapter.Store(),
				FolderID: folder.ID,
				Err:      err,
			})
			c.logger.Warn("subfolder listing failed; dropping subtree",
				logging.String("store", c.adapter.Store().String()),
				logging.String("folder", folder.Name),
				logging.Error(err),
			)
			continue
		}
		result.Items = append(result.Items, filterMedia(listing.Items)...)
		pending = append(pending, listing.Folders...)
	}

	c.logger.Info("folder tree listed",
		logging.String("store", c.adapter.Store().String()),
		logging.Int("items", len(result.Items)),
		logging.Int("failed_subtrees", len(result.Failures)),
	)
	return result, nil
}

func (c *Collector) listFolder(ctx context.Context, lister store.FolderLister, folderID string) (store.Listing, error) {
	var listing store.Listing
	err := c.budget.Do(ctx, "list folder", func(ctx context.Context) error {
		l, err := lister.ListFolder(ctx, folderID)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	return listing, err
}

func filterMedia(items []media.Item) []media.Item {
	kept := make([]media.Item, 0, len(items))
	for _, item := range items {
		kind, ok := media.KindForName(item.Name)
		if !ok {
			continue
		}
		if item.Kind == "" {
			item.Kind = kind
		}
		kept = append(kept, item)
	}
	return kept
}
