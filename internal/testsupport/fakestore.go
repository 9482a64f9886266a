package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"drivesync/internal/media"
	"drivesync/internal/store"
)

// Uploaded records one successful upload into a fake store.
type Uploaded struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Data      []byte
}

// FakeStore is an in-memory store adapter for tests. Expose it to code
// under test through Flat or Tree so only one listing capability is
// visible. Failures are scripted per operation and consumed in order.
type FakeStore struct {
	mu sync.Mutex

	source  media.Store
	items   map[string]media.Item
	content map[string][]byte

	folders      map[string][]store.Folder
	folderItems  map[string][]media.Item
	uploadFolder string

	listErrs     []error
	downloadErrs map[string][]error
	uploadErrs   []error

	uploads  []Uploaded
	uploadID int
}

// NewFakeStore builds an empty fake adapter fronting the given store.
func NewFakeStore(source media.Store) *FakeStore {
	return &FakeStore{
		source:       source,
		items:        make(map[string]media.Item),
		content:      make(map[string][]byte),
		folders:      make(map[string][]store.Folder),
		folderItems:  make(map[string][]media.Item),
		downloadErrs: make(map[string][]error),
	}
}

// Add seeds one item with the given content, visible to the flat listing.
func (f *FakeStore) Add(item media.Item, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.Source = f.source
	f.items[item.ID] = item
	f.content[item.ID] = content
}

// AddFolder seeds a subfolder under parentID and switches the fake to the
// hierarchical listing interface.
func (f *FakeStore) AddFolder(parentID string, folder store.Folder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[parentID] = append(f.folders[parentID], folder)
}

// AddToFolder seeds one item under folderID for the hierarchical walk.
func (f *FakeStore) AddToFolder(folderID string, item media.Item, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.Source = f.source
	f.items[item.ID] = item
	f.content[item.ID] = content
	f.folderItems[folderID] = append(f.folderItems[folderID], item)
}

// SetUploadFolder routes uploaded items into folderID so the hierarchical
// walk sees them on the next listing. Without it uploads land in the flat
// listing only.
func (f *FakeStore) SetUploadFolder(folderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadFolder = folderID
}

// FailListings queues errors returned by the next listing calls, in order.
func (f *FakeStore) FailListings(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs = append(f.listErrs, errs...)
}

// FailDownloads queues errors for the next downloads of itemID, in order.
func (f *FakeStore) FailDownloads(itemID string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadErrs[itemID] = append(f.downloadErrs[itemID], errs...)
}

// FailUploads queues errors returned by the next upload calls, in order.
func (f *FakeStore) FailUploads(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErrs = append(f.uploadErrs, errs...)
}

// Uploads returns a copy of every successful upload so far.
func (f *FakeStore) Uploads() []Uploaded {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploads := make([]Uploaded, len(f.uploads))
	copy(uploads, f.uploads)
	return uploads
}

// Store implements store.Adapter.
func (f *FakeStore) Store() media.Store {
	return f.source
}

// List implements store.FlatLister.
func (f *FakeStore) List(ctx context.Context) ([]media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := popErr(&f.listErrs); err != nil {
		return nil, err
	}
	items := make([]media.Item, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	return items, nil
}

// ListFolder implements store.FolderLister when folders were seeded.
func (f *FakeStore) ListFolder(ctx context.Context, folderID string) (store.Listing, error) {
	if err := ctx.Err(); err != nil {
		return store.Listing{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := popErr(&f.listErrs); err != nil {
		return store.Listing{}, err
	}
	listing := store.Listing{
		Items:   append([]media.Item(nil), f.folderItems[folderID]...),
		Folders: append([]store.Folder(nil), f.folders[folderID]...),
	}
	return listing, nil
}

// Download implements store.Adapter.
func (f *FakeStore) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.downloadErrs[itemID]; len(errs) > 0 {
		err := errs[0]
		f.downloadErrs[itemID] = errs[1:]
		return nil, err
	}
	content, ok := f.content[itemID]
	if !ok {
		return nil, store.Wrap(store.ErrFatal, string(f.source), "download",
			fmt.Errorf("no item %q", itemID))
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Upload implements store.Adapter.
func (f *FakeStore) Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := popErr(&f.uploadErrs); err != nil {
		return "", err
	}
	f.uploadID++
	id := fmt.Sprintf("%s-upload-%d", f.source, f.uploadID)
	f.uploads = append(f.uploads, Uploaded{ID: id, Name: name, CreatedAt: createdAt, Data: data})

	// Uploaded items join the store's state so later listings return them,
	// the same way the real backends preserve name and creation time.
	item := media.Item{
		ID:        id,
		Source:    f.source,
		Name:      name,
		CreatedAt: createdAt,
		SizeBytes: int64(len(data)),
	}
	if kind, ok := media.KindForName(name); ok {
		item.Kind = kind
	}
	f.items[item.ID] = item
	f.content[item.ID] = data
	if f.uploadFolder != "" {
		f.folderItems[f.uploadFolder] = append(f.folderItems[f.uploadFolder], item)
	}
	return id, nil
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// Flat narrows the fake to a flat-library adapter, the shape the Photos
// side presents. The collector picks its walk by interface, so the view
// must not leak ListFolder.
func (f *FakeStore) Flat() store.Adapter { return flatView{f} }

// Tree narrows the fake to a hierarchical adapter, the shape the Drive
// side presents.
func (f *FakeStore) Tree() store.Adapter { return treeView{f} }

type flatView struct{ f *FakeStore }

func (v flatView) Store() media.Store { return v.f.Store() }
func (v flatView) List(ctx context.Context) ([]media.Item, error) {
	return v.f.List(ctx)
}
func (v flatView) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	return v.f.Download(ctx, itemID)
}
func (v flatView) Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error) {
	return v.f.Upload(ctx, r, name, createdAt)
}

type treeView struct{ f *FakeStore }

func (v treeView) Store() media.Store { return v.f.Store() }
func (v treeView) ListFolder(ctx context.Context, folderID string) (store.Listing, error) {
	return v.f.ListFolder(ctx, folderID)
}
func (v treeView) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	return v.f.Download(ctx, itemID)
}
func (v treeView) Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error) {
	return v.f.Upload(ctx, r, name, createdAt)
}

var (
	_ store.Adapter      = flatView{}
	_ store.FlatLister   = flatView{}
	_ store.Adapter      = treeView{}
	_ store.FolderLister = treeView{}
)
