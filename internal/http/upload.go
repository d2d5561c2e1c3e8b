package http

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/catalog"
)

const defaultUploadMaxMemory = 32 << 20

type UploadController struct {
	ingester  BookIngester
	observer  Observer
	maxMemory int64
}

func NewUploadController(ingester BookIngester, observer Observer, maxMemory int64) *UploadController {
	if observer == nil {
		observer = noopObserver{}
	}
	if maxMemory <= 0 {
		maxMemory = defaultUploadMaxMemory
	}
	return &UploadController{
		ingester:  ingester,
		observer:  observer,
		maxMemory: maxMemory,
	}
}

// UploadPrimary handles multipart fields nombre, categoria, archivo, imagen.
func (uc *UploadController) UploadPrimary(c *gin.Context) {
	form, ok := uc.parseForm(c)
	if !ok {
		return
	}
	defer removeFormFiles(form)

	file, err := readPart(form, "archivo")
	if err != nil {
		respondCatalogError(c, err, "read book file")
		return
	}
	image, err := readPart(form, "imagen")
	if err != nil {
		respondCatalogError(c, err, "read book image")
		return
	}

	id, err := uc.ingester.IngestPrimary(c.Request.Context(), catalog.PrimaryUpload{
		Name:     formValue(form, "nombre"),
		Category: formValue(form, "categoria"),
		File:     file,
		Image:    image,
	})
	uc.observer.ObserveUpload(string(catalog.OriginPrimary), err)
	if err != nil {
		respondCatalogError(c, err, "ingest book")
		return
	}

	respondCreated(c, UploadResponse{Message: "Libro cargado con éxito", ID: id})
}

// UploadLinked handles multipart fields nombre, categoria, enlace and an
// optional imagen.
func (uc *UploadController) UploadLinked(c *gin.Context) {
	form, ok := uc.parseForm(c)
	if !ok {
		return
	}
	defer removeFormFiles(form)

	image, err := readPart(form, "imagen")
	if err != nil {
		respondCatalogError(c, err, "read book image")
		return
	}

	id, err := uc.ingester.IngestLinked(c.Request.Context(), catalog.LinkedUpload{
		Name:     formValue(form, "nombre"),
		Category: formValue(form, "categoria"),
		URI:      formValue(form, "enlace"),
		Image:    image,
	})
	uc.observer.ObserveUpload(string(catalog.OriginLinked), err)
	if err != nil {
		respondCatalogError(c, err, "ingest linked book")
		return
	}

	respondCreated(c, UploadResponse{Message: "Libro subido exitosamente", ID: id, LibroID: id})
}

// parseForm buffers parts above maxMemory to temp files; removeFormFiles
// must run once the handler is done with them.
func (uc *UploadController) parseForm(c *gin.Context) (*multipart.Form, bool) {
	if err := c.Request.ParseMultipartForm(uc.maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondPayloadTooLarge(c)
			return nil, false
		}
		respondBadRequest(c, "invalid multipart form: "+err.Error())
		return nil, false
	}
	return c.Request.MultipartForm, true
}

func removeFormFiles(form *multipart.Form) {
	if err := form.RemoveAll(); err != nil {
		log.Printf("Failed to remove multipart temp files: %v", err)
	}
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// readPart returns an empty Part when the field is absent; required-field
// checks belong to the ingester.
func readPart(form *multipart.Form, key string) (catalog.Part, error) {
	headers := form.File[key]
	if len(headers) == 0 {
		return catalog.Part{}, nil
	}
	fh := headers[0]

	f, err := fh.Open()
	if err != nil {
		return catalog.Part{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return catalog.Part{}, fmt.Errorf("read %s: %w", key, err)
	}

	return catalog.Part{
		Filename:    strings.TrimSpace(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
