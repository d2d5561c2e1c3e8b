package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/libreria/internal/storage"
)

const (
	listPrimarySQL = `SELECT id, nombre, categoria, imagen, tipo_imagen, 'primary' AS origen FROM libros`
	listLinkedSQL  = `SELECT id, nombre, categoria, imagen, tipo_imagen, 'linked' AS origen FROM libros1`

	lookupPrimarySQL = `SELECT id, nombre, categoria, archivo, archivo_datos, tipo_archivo, nombre_archivo, tamano, created_at
FROM libros WHERE id = ?`
	lookupLinkedSQL = `SELECT id, nombre, categoria, archivo, created_at FROM libros1 WHERE id = ?`
)

const defaultContentType = "application/octet-stream"

// Deliverable is what a download resolves to: a Redirect or a Stream.
type Deliverable interface {
	deliverable()
}

// Redirect sends the client to an external URI. The resolver never fetches it.
type Redirect struct {
	URI string
}

// Stream carries the payload of a primary record. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	Filename    string
	ModTime     time.Time
}

func (Redirect) deliverable() {}
func (*Stream) deliverable()  {}

// Resolver serves listings and downloads across both record sets.
type Resolver struct {
	store    RecordStore
	payloads storage.Client
}

// NewResolver creates a resolver. payloads may be nil when every primary
// record keeps its bytes in the database.
func NewResolver(store RecordStore, payloads storage.Client) *Resolver {
	return &Resolver{store: store, payloads: payloads}
}

// ListBooks returns books from both sets, optionally restricted to one
// category, ordered by name then id. Rows are not deduplicated across sets.
func (r *Resolver) ListBooks(ctx context.Context, category string) ([]BookView, error) {
	statement := listPrimarySQL + " UNION ALL " + listLinkedSQL
	var params []any
	if category != "" {
		statement = listPrimarySQL + " WHERE categoria = ? UNION ALL " + listLinkedSQL + " WHERE categoria = ?"
		params = []any{category, category}
	}
	statement += " ORDER BY nombre, id"

	rows, err := r.store.Query(ctx, statement, params...)
	if err != nil {
		return nil, err
	}

	books := make([]BookView, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		books = append(books, rec.View())
	}
	return books, nil
}

// ResolveDownload looks the id up in both sets concurrently. A linked match
// wins over a primary one. origin restricts the lookup to a single set;
// OriginAny searches both.
func (r *Resolver) ResolveDownload(ctx context.Context, id int64, origin Origin) (Deliverable, error) {
	var (
		linked  *LinkedRecord
		primary *PrimaryRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	if origin != OriginPrimary {
		g.Go(func() error {
			rec, err := r.lookupLinked(gctx, id)
			linked = rec
			return err
		})
	}
	if origin != OriginLinked {
		g.Go(func() error {
			rec, err := r.lookupPrimary(gctx, id)
			primary = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch {
	case linked != nil:
		return Redirect{URI: linked.URI}, nil
	case primary != nil:
		return r.stream(ctx, primary)
	default:
		return nil, &NotFoundError{ID: id, Origin: origin}
	}
}

func (r *Resolver) lookupLinked(ctx context.Context, id int64) (*LinkedRecord, error) {
	rows, err := r.store.Query(ctx, lookupLinkedSQL, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	rec := decodeLinked(id, rows[0])
	return &rec, nil
}

func (r *Resolver) lookupPrimary(ctx context.Context, id int64) (*PrimaryRecord, error) {
	rows, err := r.store.Query(ctx, lookupPrimarySQL, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	rec := decodePrimary(id, rows[0])
	return &rec, nil
}

func (r *Resolver) stream(ctx context.Context, rec *PrimaryRecord) (*Stream, error) {
	s := &Stream{
		ContentType: rec.FileType,
		Filename:    downloadName(rec),
		ModTime:     rec.CreatedAt,
	}

	switch {
	case len(rec.FileData) > 0:
		s.Body = io.NopCloser(bytes.NewReader(rec.FileData))
		s.Size = int64(len(rec.FileData))
	case rec.FilePath != "" && r.payloads != nil:
		body, info, err := r.payloads.Open(ctx, rec.FilePath)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, fmt.Errorf("book %d (%s): %w", rec.ID, rec.FilePath, ErrPayloadMissing)
		}
		if err != nil {
			return nil, fmt.Errorf("open payload for book %d: %w", rec.ID, err)
		}
		s.Body = body
		s.Size = info.Size
		if s.ModTime.IsZero() {
			s.ModTime = info.ModifiedAt
		}
	default:
		return nil, fmt.Errorf("book %d: %w", rec.ID, ErrPayloadMissing)
	}

	if s.ContentType == "" {
		s.ContentType = defaultContentType
	}
	return s, nil
}

// downloadName prefers the uploaded filename; otherwise the display name
// plus an extension guessed from the stored path or content type.
func downloadName(rec *PrimaryRecord) string {
	if rec.FileName != "" {
		return filepath.Base(rec.FileName)
	}

	ext := filepath.Ext(rec.FilePath)
	if ext == "" && rec.FileType != "" {
		if mt := mimetype.Lookup(rec.FileType); mt != nil {
			ext = mt.Extension()
		}
	}

	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = fmt.Sprintf("libro-%d", rec.ID)
	}
	return name + ext
}
