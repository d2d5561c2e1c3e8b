package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/database"
	"github.com/mrlokans/libreria/internal/storage"
)

const (
	allocateIDSQL = `INSERT INTO libro_ids DEFAULT VALUES RETURNING id`

	insertPrimarySQL = `INSERT INTO libros
(id, nombre, categoria, imagen, tipo_imagen, archivo, archivo_datos, tipo_archivo, nombre_archivo, tamano, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertLinkedSQL = `INSERT INTO libros1 (id, nombre, categoria, imagen, tipo_imagen, archivo, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// AllowedImageTypes is the cover image allow-list for both upload paths.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Part is one uploaded file as handed over by the transport.
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (p Part) empty() bool {
	return len(p.Data) == 0
}

type PrimaryUpload struct {
	Name     string
	Category string
	File     Part
	Image    Part
}

type LinkedUpload struct {
	Name     string
	Category string
	URI      string
	Image    Part // optional
}

// Ingestor validates uploads and writes new records. The record insert is
// always the last step, so an aborted upload leaves no record behind.
type Ingestor struct {
	store    RecordStore
	payloads storage.Client
	mode     config.PayloadMode
	maxBytes int64
	now      func() time.Time
}

type IngestOption func(*Ingestor)

// WithPayloadStore switches primary ingestion to disk mode.
func WithPayloadStore(payloads storage.Client) IngestOption {
	return func(i *Ingestor) {
		i.payloads = payloads
		i.mode = config.PayloadModeDisk
	}
}

// WithMaxPayload rejects files larger than n bytes. Zero disables the check.
func WithMaxPayload(n int64) IngestOption {
	return func(i *Ingestor) {
		i.maxBytes = n
	}
}

func NewIngestor(store RecordStore, opts ...IngestOption) *Ingestor {
	i := &Ingestor{
		store: store,
		mode:  config.PayloadModeBlob,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mode reports where primary payloads are written.
func (i *Ingestor) Mode() config.PayloadMode {
	return i.mode
}

// IngestPrimary stores a primary record and returns its id.
func (i *Ingestor) IngestPrimary(ctx context.Context, up PrimaryUpload) (int64, error) {
	name, category, err := validateLabels(up.Name, up.Category)
	if err != nil {
		return 0, err
	}
	if up.File.empty() {
		return 0, invalid("archivo", "file is required")
	}
	if i.maxBytes > 0 && int64(len(up.File.Data)) > i.maxBytes {
		return 0, ErrPayloadTooLarge
	}
	if up.Image.empty() {
		return 0, invalid("imagen", "image is required")
	}
	imageType, err := validateImage(up.Image)
	if err != nil {
		return 0, err
	}
	fileType := detectContentType(up.File)

	var (
		payloadPath string
		data        []byte
	)
	if i.mode == config.PayloadModeDisk {
		info, err := i.payloads.Save(ctx, fileExtension(up.File, fileType), bytes.NewReader(up.File.Data))
		if err != nil {
			return 0, fmt.Errorf("save payload: %w", err)
		}
		payloadPath = info.Path
	} else {
		data = up.File.Data
	}

	id, err := i.allocateID(ctx)
	if err == nil {
		_, err = i.store.Exec(ctx, insertPrimarySQL,
			id, name, category, up.Image.Data, imageType,
			nullIfEmpty(payloadPath), data, fileType, baseName(up.File.Filename), len(up.File.Data), i.now().UTC())
	}
	if err != nil {
		i.discardPayload(ctx, payloadPath)
		return 0, err
	}

	return id, nil
}

// discardPayload removes a saved file whose record was never written.
func (i *Ingestor) discardPayload(ctx context.Context, payloadPath string) {
	if payloadPath == "" {
		return
	}
	if err := i.payloads.Delete(context.WithoutCancel(ctx), payloadPath); err != nil {
		log.Printf("Failed to remove payload %s after failed insert: %v", payloadPath, err)
	}
}

// IngestLinked stores a linked record and returns its id.
func (i *Ingestor) IngestLinked(ctx context.Context, up LinkedUpload) (int64, error) {
	name, category, err := validateLabels(up.Name, up.Category)
	if err != nil {
		return 0, err
	}
	uri, err := validateURI(up.URI)
	if err != nil {
		return 0, err
	}

	var imageType string
	if !up.Image.empty() {
		if imageType, err = validateImage(up.Image); err != nil {
			return 0, err
		}
	}

	id, err := i.allocateID(ctx)
	if err != nil {
		return 0, err
	}

	var image []byte
	if !up.Image.empty() {
		image = up.Image.Data
	}
	_, err = i.store.Exec(ctx, insertLinkedSQL,
		id, name, category, image, nullIfEmpty(imageType), uri, i.now().UTC())
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (i *Ingestor) allocateID(ctx context.Context) (int64, error) {
	rows, err := i.store.Query(ctx, allocateIDSQL)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("allocate book id: no id returned")
	}
	id, ok := database.Int64(rows[0], "id")
	if !ok || id <= 0 {
		return 0, fmt.Errorf("allocate book id: unexpected value %v", rows[0]["id"])
	}
	return id, nil
}

func validateLabels(name, category string) (string, string, error) {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)
	if name == "" {
		return "", "", invalid("nombre", "name is required")
	}
	if category == "" {
		return "", "", invalid("categoria", "category is required")
	}
	return name, category, nil
}

// validateImage checks the declared content type against the allow-list,
// sniffing the bytes when nothing useful was declared.
func validateImage(p Part) (string, error) {
	ct := detectContentType(p)
	if !AllowedImageTypes[ct] {
		return "", invalid("imagen", fmt.Sprintf("content type %q is not allowed, use JPEG or PNG", ct))
	}
	return ct, nil
}

func validateURI(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("enlace", "link is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", invalid("enlace", "link must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid("enlace", "link must use http or https")
	}
	return raw, nil
}

// detectContentType normalises the declared media type and falls back to
// sniffing for missing or generic declarations.
func detectContentType(p Part) string {
	declared := strings.TrimSpace(p.ContentType)
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			declared = mediaType
		} else {
			declared = strings.ToLower(declared)
		}
	}
	if declared != "" && declared != defaultContentType {
		return declared
	}

	mt := mimetype.Detect(p.Data)
	if mediaType, _, err := mime.ParseMediaType(mt.String()); err == nil {
		return mediaType
	}
	return mt.String()
}

func fileExtension(p Part, contentType string) string {
	if ext := filepath.Ext(p.Filename); ext != "" {
		return ext
	}
	if mt := mimetype.Lookup(contentType); mt != nil {
		return mt.Extension()
	}
	return ""
}

func baseName(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return ""
	}
	// Some browsers send the full client path.
	return path.Base(strings.ReplaceAll(filename, `\`, "/"))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
