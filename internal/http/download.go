package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/catalog"
)

type DownloadController struct {
	books    BookResolver
	observer Observer
}

func NewDownloadController(books BookResolver, observer Observer) *DownloadController {
	if observer == nil {
		observer = noopObserver{}
	}
	return &DownloadController{
		books:    books,
		observer: observer,
	}
}

// Download resolves an id against both record sets.
func (dc *DownloadController) Download(c *gin.Context) {
	dc.serve(c, catalog.OriginAny)
}

// DownloadLinked only considers linked records.
func (dc *DownloadController) DownloadLinked(c *gin.Context) {
	dc.serve(c, catalog.OriginLinked)
}

func (dc *DownloadController) serve(c *gin.Context, origin catalog.Origin) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	deliverable, err := dc.books.ResolveDownload(c.Request.Context(), id, origin)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			dc.observer.ObserveDownload("not_found")
		case errors.Is(err, catalog.ErrPayloadMissing):
			dc.observer.ObserveDownload("missing")
		default:
			dc.observer.ObserveDownload("error")
		}
		respondCatalogError(c, err, "resolve download "+strconv.FormatInt(id, 10))
		return
	}

	switch d := deliverable.(type) {
	case catalog.Redirect:
		dc.observer.ObserveDownload("redirect")
		c.Redirect(http.StatusFound, d.URI)
	case *catalog.Stream:
		dc.observer.ObserveDownload("stream")
		writeStream(c, d)
	default:
		respondInternalError(c, errors.New("unknown deliverable"), "resolve download")
	}
}

func writeStream(c *gin.Context, s *catalog.Stream) {
	defer s.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": s.Filename})
	if disposition == "" {
		disposition = "attachment"
	}

	// On-disk payloads are seekable and get Range and conditional requests.
	if rs, ok := s.Body.(io.ReadSeeker); ok {
		c.Header("Content-Type", s.ContentType)
		c.Header("Content-Disposition", disposition)
		http.ServeContent(c.Writer, c.Request, "", s.ModTime, rs)
		return
	}

	c.DataFromReader(http.StatusOK, s.Size, s.ContentType, s.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}
