// Package photos implements the store adapter for the Google Photos
// Library API. Photos is the flat side of the sync: one paged listing
// covers the whole library. Uploads are the API's two-step dance, raw
// bytes for an upload token followed by a batchCreate.
package photos
