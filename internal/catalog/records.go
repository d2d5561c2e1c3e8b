package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mrlokans/libreria/internal/database"
	"github.com/mrlokans/libreria/internal/entities"
)

// Origin tags which record set a book came from.
type Origin = entities.Origin

const (
	OriginAny     Origin = ""
	OriginPrimary        = entities.OriginPrimary
	OriginLinked         = entities.OriginLinked
)

// RecordStore runs parameterized statements. *database.Database satisfies it.
type RecordStore interface {
	Query(ctx context.Context, statement string, params ...any) ([]database.Row, error)
	Exec(ctx context.Context, statement string, params ...any) (int64, error)
}

// Record is either a PrimaryRecord or a LinkedRecord. Rows from the two
// tables are decoded into one of these and never passed on raw.
type Record interface {
	View() BookView
}

type PrimaryRecord struct {
	ID        int64
	Name      string
	Category  string
	Image     []byte
	ImageType string
	FilePath  string
	FileData  []byte
	FileType  string
	FileName  string
	FileSize  int64
	CreatedAt time.Time
}

type LinkedRecord struct {
	ID        int64
	Name      string
	Category  string
	Image     []byte
	ImageType string
	URI       string
	CreatedAt time.Time
}

// BookView is the single shape handed to clients for both record sets.
type BookView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"nombre"`
	Category string  `json:"categoria"`
	Origin   Origin  `json:"origen"`
	Image    *string `json:"imagen"`
}

func (r PrimaryRecord) View() BookView {
	return BookView{
		ID:       r.ID,
		Name:     r.Name,
		Category: r.Category,
		Origin:   OriginPrimary,
		Image:    ImageDataURI(r.ImageType, r.Image),
	}
}

func (r LinkedRecord) View() BookView {
	return BookView{
		ID:       r.ID,
		Name:     r.Name,
		Category: r.Category,
		Origin:   OriginLinked,
		Image:    ImageDataURI(r.ImageType, r.Image),
	}
}

// ImageDataURI renders image bytes as a data URI. No bytes yields nil, never
// an empty string. A missing content type is sniffed from the bytes.
func ImageDataURI(contentType string, data []byte) *string {
	if len(data) == 0 {
		return nil
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	uri := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	return &uri
}

// decodeRecord picks the variant from the row's origen column.
func decodeRecord(row database.Row) (Record, error) {
	id, ok := database.Int64(row, "id")
	if !ok {
		return nil, fmt.Errorf("row without id: %v", row["id"])
	}

	switch Origin(database.String(row, "origen")) {
	case OriginPrimary:
		return decodePrimary(id, row), nil
	case OriginLinked:
		return decodeLinked(id, row), nil
	default:
		return nil, fmt.Errorf("row %d has unknown origin %q", id, database.String(row, "origen"))
	}
}

func decodePrimary(id int64, row database.Row) PrimaryRecord {
	size, _ := database.Int64(row, "tamano")
	return PrimaryRecord{
		ID:        id,
		Name:      database.String(row, "nombre"),
		Category:  database.String(row, "categoria"),
		Image:     database.Bytes(row, "imagen"),
		ImageType: database.String(row, "tipo_imagen"),
		FilePath:  database.String(row, "archivo"),
		FileData:  database.Bytes(row, "archivo_datos"),
		FileType:  database.String(row, "tipo_archivo"),
		FileName:  database.String(row, "nombre_archivo"),
		FileSize:  size,
		CreatedAt: database.Time(row, "created_at"),
	}
}

func decodeLinked(id int64, row database.Row) LinkedRecord {
	return LinkedRecord{
		ID:        id,
		Name:      database.String(row, "nombre"),
		Category:  database.String(row, "categoria"),
		Image:     database.Bytes(row, "imagen"),
		ImageType: database.String(row, "tipo_imagen"),
		URI:       database.String(row, "archivo"),
		CreatedAt: database.Time(row, "created_at"),
	}
}
