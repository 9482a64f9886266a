// Package drive implements the store adapter for Google Drive using the
// official Drive v3 API client. Drive is the hierarchical side of the sync:
// listing is per-folder and the collector walks the tree.
package drive
