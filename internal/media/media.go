package media

import (
	"path"
	"strings"
	"time"
)

// Store identifies which remote repository an item was listed from.
type Store string

const (
	StoreDrive  Store = "drive"
	StorePhotos Store = "photos"
)

// Other returns the opposite store.
func (s Store) Other() Store {
	if s == StoreDrive {
		return StorePhotos
	}
	return StoreDrive
}

func (s Store) String() string {
	return string(s)
}

// Kind classifies an item as a still image or a video.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Item is one file as seen in one store. The ID is store-native and opaque;
// it never carries meaning across stores.
type Item struct {
	ID        string
	Source    Store
	Name      string
	CreatedAt time.Time
	SizeBytes int64
	Kind      Kind
	// Checksum is present only when the store exposes one (Drive does,
	// Photos does not).
	Checksum string
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
	".tiff": {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".mkv":  {},
	".m4v":  {},
	".3gp":  {},
	".3g2":  {},
}

// KindForName reports the media kind for a filename based on its extension.
// Files outside the allow-list are not media and return ok=false; they are
// excluded from inventories, never flagged as errors.
func KindForName(name string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return KindImage, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo, true
	}
	return "", false
}
