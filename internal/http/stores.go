package http

import (
	"context"

	"github.com/mrlokans/libreria/internal/catalog"
	"github.com/mrlokans/libreria/internal/visits"
)

// Each controller depends only on the operations it calls.

// CategoryGetter serves the category listing (catalog.CategoryCache).
type CategoryGetter interface {
	Get(ctx context.Context) ([]string, error)
}

// BookResolver serves listings and downloads (catalog.Resolver).
type BookResolver interface {
	ListBooks(ctx context.Context, category string) ([]catalog.BookView, error)
	ResolveDownload(ctx context.Context, id int64, origin catalog.Origin) (catalog.Deliverable, error)
}

// BookIngester writes new records (catalog.Ingestor).
type BookIngester interface {
	IngestPrimary(ctx context.Context, up catalog.PrimaryUpload) (int64, error)
	IngestLinked(ctx context.Context, up catalog.LinkedUpload) (int64, error)
}

// VisitRegister deduplicates and counts visitors (visits.Register).
type VisitRegister interface {
	RegisterVisit(ctx context.Context, id visits.Identity) (visits.Visit, error)
	Count(ctx context.Context) (int64, error)
}

// Pinger reports store connectivity (database.Database).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Observer receives domain events for metrics. Optional.
type Observer interface {
	ObserveUpload(origin string, err error)
	ObserveDownload(kind string)
}

type noopObserver struct{}

func (noopObserver) ObserveUpload(string, error) {}
func (noopObserver) ObserveDownload(string)      {}
