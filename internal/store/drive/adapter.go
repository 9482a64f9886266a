package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"drivesync/internal/media"
	"drivesync/internal/store"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	listPageSize   = 1000
	listFields     = "nextPageToken, files(id, name, mimeType, size, createdTime, md5Checksum)"
)

// Adapter fronts one Google Drive account. Uploads land in the configured
// sync folder so transfers from Photos stay inside the scoped tree.
type Adapter struct {
	service        *drive.Service
	uploadFolderID string
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithUploadFolder sets the parent folder for uploaded items. Empty means
// the Drive root.
func WithUploadFolder(folderID string) Option {
	return func(a *Adapter) {
		a.uploadFolderID = strings.TrimSpace(folderID)
	}
}

// New builds an adapter from an authenticated HTTP client (typically an
// oauth2 client carrying the drive scope).
func New(ctx context.Context, client *http.Client, opts ...Option) (*Adapter, error) {
	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("drive: new service: %w", err)
	}
	return newAdapter(service, opts...), nil
}

// NewWithService wraps an existing Drive service (used in tests against a
// stub HTTP backend).
func NewWithService(service *drive.Service, opts ...Option) *Adapter {
	return newAdapter(service, opts...)
}

func newAdapter(service *drive.Service, opts ...Option) *Adapter {
	a := &Adapter{service: service}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Store() media.Store {
	return media.StoreDrive
}

// ListFolder returns the media files and subfolders directly under
// folderID. An empty folderID means the Drive root.
func (a *Adapter) ListFolder(ctx context.Context, folderID string) (store.Listing, error) {
	if strings.TrimSpace(folderID) == "" {
		folderID = "root"
	}
	query := fmt.Sprintf("'%s' in parents and trashed=false", folderID)

	var listing store.Listing
	pageToken := ""
	for {
		call := a.service.Files.List().
			Q(query).
			Fields(listFields).
			PageSize(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return store.Listing{}, classify(err, "list folder")
		}
		for _, file := range page.Files {
			if file.MimeType == folderMimeType {
				listing.Folders = append(listing.Folders, store.Folder{ID: file.Id, Name: file.Name})
				continue
			}
			item, ok := toItem(file)
			if !ok {
				continue
			}
			listing.Items = append(listing.Items, item)
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			return listing, nil
		}
	}
}

// Download opens the file's content stream.
func (a *Adapter) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	resp, err := a.service.Files.Get(itemID).Context(ctx).Download()
	if err != nil {
		return nil, classify(err, "download")
	}
	return resp.Body, nil
}

// Upload streams a new file into the configured parent folder and returns
// its Drive ID.
func (a *Adapter) Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error) {
	meta := &drive.File{
		Name:        name,
		CreatedTime: createdAt.UTC().Format(time.RFC3339),
	}
	if a.uploadFolderID != "" {
		meta.Parents = []string{a.uploadFolderID}
	}
	file, err := a.service.Files.Create(meta).
		Media(r).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err, "upload")
	}
	return file.Id, nil
}

func toItem(file *drive.File) (media.Item, bool) {
	kind, ok := media.KindForName(file.Name)
	if !ok {
		return media.Item{}, false
	}
	createdAt, err := time.Parse(time.RFC3339, file.CreatedTime)
	if err != nil {
		createdAt = time.Time{}
	}
	return media.Item{
		ID:        file.Id,
		Source:    media.StoreDrive,
		Name:      file.Name,
		CreatedAt: createdAt.UTC(),
		SizeBytes: file.Size,
		Kind:      kind,
		Checksum:  file.Md5Checksum,
	}, true
}

// classify maps Drive API failures onto the shared taxonomy. 403s are fatal
// permission errors unless the error reason marks them as quota pushback.
func classify(err error, operation string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || rateLimitedReason(apiErr):
			if after, ok := retryAfterHeader(apiErr); ok {
				return store.NewRateLimitError("drive", operation, after)
			}
			return store.Wrap(store.ErrRateLimited, "drive", operation, err)
		case apiErr.Code == http.StatusUnauthorized,
			apiErr.Code == http.StatusForbidden,
			apiErr.Code == http.StatusNotFound:
			return store.Wrap(store.ErrFatal, "drive", operation, err)
		case apiErr.Code >= http.StatusInternalServerError:
			return store.Wrap(store.ErrTransient, "drive", operation, err)
		default:
			return store.Wrap(store.ErrFatal, "drive", operation, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return store.Wrap(store.ErrTransient, "drive", operation, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return store.Wrap(store.ErrTransient, "drive", operation, err)
}

func rateLimitedReason(apiErr *googleapi.Error) bool {
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

func retryAfterHeader(apiErr *googleapi.Error) (time.Duration, bool) {
	if apiErr.Header == nil {
		return 0, false
	}
	value := strings.TrimSpace(apiErr.Header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}
