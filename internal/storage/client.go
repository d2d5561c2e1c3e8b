package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a payload path does not exist.
var ErrNotFound = errors.New("payload not found")

// ErrInvalidPath is returned for paths that would escape the store root.
var ErrInvalidPath = errors.New("invalid payload path")

// FileInfo contains metadata about a stored payload
type FileInfo struct {
	Name       string
	Path       string // Relative to the store root; this is what gets recorded in libros.archivo
	Size       int64
	ModifiedAt time.Time
}

// Client defines the payload storage operations used by the catalog
type Client interface {
	// Save writes content under a fresh name derived from ext and returns its relative path
	Save(ctx context.Context, ext string, content io.Reader) (*FileInfo, error)

	// Open returns a reader for the payload at path together with its metadata
	Open(ctx context.Context, path string) (io.ReadCloser, *FileInfo, error)

	// Delete removes a payload; deleting a missing payload is not an error
	Delete(ctx context.Context, path string) error

	// List returns all payloads in the store
	List(ctx context.Context) ([]FileInfo, error)
}

// FilterFiles filters file list by a predicate function
func FilterFiles(files []FileInfo, predicate func(FileInfo) bool) []FileInfo {
	var filtered []FileInfo
	for _, f := range files {
		if predicate(f) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}
