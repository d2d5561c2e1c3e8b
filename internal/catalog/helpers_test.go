package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libreria/internal/database"
	"github.com/mrlokans/libreria/internal/storage"
)

var (
	pdfBytes = []byte{0x25, 0x50, 0x44, 0x46, 0x2d, 0x31, 0x2e, 0x34, 0x0a, 0x25, 0xe2, 0xe3, 0xcf, 0xd3}
	pngBytes = []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x0a,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x02, 0x50, 0x58, 0xea,
	}
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "catalog.db"), database.WithLogLevel("silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupPayloadStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

func validPrimary() PrimaryUpload {
	return PrimaryUpload{
		Name:     "Algorithms",
		Category: "CS",
		File:     Part{Filename: "algorithms.pdf", ContentType: "application/pdf", Data: pdfBytes},
		Image:    Part{Filename: "cover.png", ContentType: "image/png", Data: pngBytes},
	}
}

// countingStore wraps a RecordStore, counting queries and optionally failing
// statements that contain failOn.
type countingStore struct {
	RecordStore
	queries atomic.Int64
	failOn  string
}

var errInjected = errors.New("injected store failure")

func (s *countingStore) Query(ctx context.Context, statement string, params ...any) ([]database.Row, error) {
	s.queries.Add(1)
	if s.failOn != "" && strings.Contains(statement, s.failOn) {
		return nil, &database.StoreError{Op: "query", Err: errInjected}
	}
	return s.RecordStore.Query(ctx, statement, params...)
}

func (s *countingStore) Exec(ctx context.Context, statement string, params ...any) (int64, error) {
	if s.failOn != "" && strings.Contains(statement, s.failOn) {
		return 0, &database.StoreError{Op: "exec", Err: errInjected}
	}
	return s.RecordStore.Exec(ctx, statement, params...)
}
