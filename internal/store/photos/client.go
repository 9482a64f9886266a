package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drivesync/internal/media"
	"drivesync/internal/store"
)

const (
	defaultBaseURL = "https://photoslibrary.googleapis.com/v1"
	listPageSize   = 100
)

// Adapter fronts one Google Photos library.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			a.baseURL = trimmed
		}
	}
}

// New builds an adapter from an authenticated HTTP client carrying the
// photoslibrary scope.
func New(client *http.Client, opts ...Option) *Adapter {
	a := &Adapter{baseURL: defaultBaseURL, client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Store() media.Store {
	return media.StorePhotos
}

type mediaItem struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	BaseURL       string `json:"baseUrl"`
	MediaMetadata struct {
		CreationTime time.Time       `json:"creationTime"`
		Photo        json.RawMessage `json:"photo"`
		Video        json.RawMessage `json:"video"`
	} `json:"mediaMetadata"`
}

type listResponse struct {
	MediaItems    []mediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// List pages through the entire library and returns every media item.
func (a *Adapter) List(ctx context.Context) ([]media.Item, error) {
	var items []media.Item
	pageToken := ""
	for {
		endpoint := fmt.Sprintf("%s/mediaItems?pageSize=%d", a.baseURL, listPageSize)
		if pageToken != "" {
			endpoint += "&pageToken=" + pageToken
		}
		var page listResponse
		if err := a.getJSON(ctx, endpoint, &page, "list library"); err != nil {
			return nil, err
		}
		for _, raw := range page.MediaItems {
			item, ok := toItem(raw)
			if !ok {
				continue
			}
			items = append(items, item)
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			return items, nil
		}
	}
}

// Download fetches the item's bytes. The stored baseUrl expires within the
// hour, so the item is re-fetched first for a fresh one.
func (a *Adapter) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	var item mediaItem
	endpoint := a.baseURL + "/mediaItems/" + itemID
	if err := a.getJSON(ctx, endpoint, &item, "fetch item"); err != nil {
		return nil, err
	}
	if item.BaseURL == "" {
		return nil, store.Wrap(store.ErrTransient, "photos", "fetch item", errors.New("empty baseUrl"))
	}

	downloadURL := item.BaseURL + "=d"
	if len(item.MediaMetadata.Video) > 0 {
		downloadURL = item.BaseURL + "=dv"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("photos: download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyStatus(resp, "download")
	}
	return resp.Body, nil
}

// Upload pushes raw bytes for an upload token, then creates the library
// item from it. Photos keys the item's shown time off its own metadata, so
// createdAt rides along only as the descriptive filename record.
func (a *Adapter) Upload(ctx context.Context, r io.Reader, name string, createdAt time.Time) (string, error) {
	token, err := a.uploadBytes(ctx, r, name)
	if err != nil {
		return "", err
	}
	return a.createItem(ctx, token, name)
}

func (a *Adapter) uploadBytes(ctx context.Context, r io.Reader, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/uploads", r)
	if err != nil {
		return "", fmt.Errorf("photos: upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-File-Name", name)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classifyTransport(err, "upload bytes")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", store.Wrap(store.ErrTransient, "photos", "upload bytes", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp, "upload bytes")
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", store.Wrap(store.ErrTransient, "photos", "upload bytes", errors.New("empty upload token"))
	}
	return token, nil
}

type batchCreateRequest struct {
	NewMediaItems []newMediaItem `json:"newMediaItems"`
}

type newMediaItem struct {
	SimpleMediaItem simpleMediaItem `json:"simpleMediaItem"`
}

type simpleMediaItem struct {
	UploadToken string `json:"uploadToken"`
	FileName    string `json:"fileName"`
}

type batchCreateResponse struct {
	NewMediaItemResults []struct {
		Status struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"status"`
		MediaItem mediaItem `json:"mediaItem"`
	} `json:"newMediaItemResults"`
}

func (a *Adapter) createItem(ctx context.Context, token, name string) (string, error) {
	payload := batchCreateRequest{
		NewMediaItems: []newMediaItem{{
			SimpleMediaItem: simpleMediaItem{UploadToken: token, FileName: name},
		}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("photos: encode batchCreate: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/mediaItems:batchCreate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("photos: batchCreate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classifyTransport(err, "create item")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp, "create item")
	}

	var result batchCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", store.Wrap(store.ErrTransient, "photos", "create item", err)
	}
	if len(result.NewMediaItemResults) == 0 {
		return "", store.Wrap(store.ErrTransient, "photos", "create item", errors.New("empty batchCreate result"))
	}
	first := result.NewMediaItemResults[0]
	if first.MediaItem.ID == "" {
		return "", store.Wrap(store.ErrTransient, "photos", "create item",
			fmt.Errorf("batchCreate rejected: %s", first.Status.Message))
	}
	return first.MediaItem.ID, nil
}

func (a *Adapter) getJSON(ctx context.Context, endpoint string, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("photos: %s request: %w", operation, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return classifyTransport(err, operation)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, operation)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return store.Wrap(store.ErrTransient, "photos", operation, err)
	}
	return nil
}

func toItem(raw mediaItem) (media.Item, bool) {
	kind, ok := media.KindForName(raw.Filename)
	if !ok {
		// The library API only serves photos and videos, but vendor
		// formats without a media extension stay out of the inventory.
		return media.Item{}, false
	}
	return media.Item{
		ID:        raw.ID,
		Source:    media.StorePhotos,
		Name:      raw.Filename,
		CreatedAt: raw.MediaMetadata.CreationTime.UTC(),
		Kind:      kind,
	}, true
}

func classifyStatus(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if after, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return store.NewRateLimitError("photos", operation, after)
		}
		return store.Wrap(store.ErrRateLimited, "photos", operation, err)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return store.Wrap(store.ErrFatal, "photos", operation, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		return store.Wrap(store.ErrTransient, "photos", operation, err)
	default:
		return store.Wrap(store.ErrFatal, "photos", operation, err)
	}
}

func classifyTransport(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return store.Wrap(store.ErrTransient, "photos", operation, err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}
