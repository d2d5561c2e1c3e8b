package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libreria/internal/catalog"
	"github.com/mrlokans/libreria/internal/database"
	"github.com/mrlokans/libreria/internal/metrics"
	"github.com/mrlokans/libreria/internal/storage"
	"github.com/mrlokans/libreria/internal/visits"
)

var (
	pdfBytes = append([]byte{0x25, 0x50, 0x44, 0x46, 0x2d, 0x31, 0x2e, 0x34, 0x0a}, bytes.Repeat([]byte("x"), 256)...)
	pngBytes = []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, 0x0a,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x02, 0x50, 0x58, 0xea,
	}
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	testKey  = []byte("0123456789abcdef0123456789abcdef")
)

type testServer struct {
	router  *gin.Engine
	db      *database.Database
	metrics *metrics.Metrics
}

type serverOption func(*RouterConfig, *testing.T, *database.Database) []catalog.IngestOption

func withDiskPayloads(cfg *RouterConfig, t *testing.T, db *database.Database) []catalog.IngestOption {
	payloads, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	cfg.Books = catalog.NewResolver(db, payloads)
	return []catalog.IngestOption{catalog.WithPayloadStore(payloads)}
}

func withMaxUpload(n int64) serverOption {
	return func(cfg *RouterConfig, _ *testing.T, _ *database.Database) []catalog.IngestOption {
		cfg.MaxUploadBytes = n
		return nil
	}
}

func withoutCookies(cfg *RouterConfig, _ *testing.T, _ *database.Database) []catalog.IngestOption {
	cfg.IssueCookies = false
	return nil
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "router.db"), database.WithLogLevel("silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New()
	cfg := RouterConfig{
		Categories:     catalog.NewCategoryCache(db, time.Minute, catalog.WithCacheObserver(m.ObserveCategoryCache)),
		Books:          catalog.NewResolver(db, nil),
		Visits:         visits.NewRegister(db, visits.WithObserver(m.ObserveVisit)),
		Database:       db,
		VisitorCookie:  visits.NewCookieCodec("visitId", testKey, 24*time.Hour, false),
		AddressKey:     testKey,
		IssueCookies:   true,
		MaxUploadBytes: 1 << 20,
		RequestTimeout: 30 * time.Second,
		UploadTimeout:  time.Minute,
		Observer:       m,
		MetricsHandler: m.Handler(),
		Middleware:     []gin.HandlerFunc{m.Middleware()},
		Version:        "test",
	}

	var ingestOpts []catalog.IngestOption
	for _, opt := range opts {
		ingestOpts = append(ingestOpts, opt(&cfg, t, db)...)
	}
	if cfg.MaxUploadBytes > 0 {
		ingestOpts = append(ingestOpts, catalog.WithMaxPayload(cfg.MaxUploadBytes))
	}
	cfg.Ingester = catalog.NewIngestor(db, ingestOpts...)

	return &testServer{router: NewRouter(cfg), db: db, metrics: m}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return s.do(req)
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func primaryRequest(t *testing.T, path string, image filePart) *http.Request {
	return multipartRequest(t, path,
		map[string]string{"nombre": "Algorithms", "categoria": "CS"},
		filePart{"archivo", "algorithms.pdf", "application/pdf", pdfBytes},
		image,
	)
}

var pngPart = filePart{"imagen", "cover.png", "image/png", pngBytes}

func decodeUpload(t *testing.T, w *httptest.ResponseRecorder) UploadResponse {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Positive(t, resp.ID)
	return resp
}

func countBooks(t *testing.T, db *database.Database) int64 {
	t.Helper()
	primary, linked, err := db.CountBooks(t.Context())
	require.NoError(t, err)
	return primary + linked
}

func TestUploadThenDownload(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts []serverOption
	}{
		{"blob mode", "/subir-libro", nil},
		{"blob mode legacy path", "/cargar-libro", nil},
		{"disk mode", "/subir-libro", []serverOption{withDiskPayloads}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.opts...)

			resp := decodeUpload(t, srv.do(primaryRequest(t, tt.path, pngPart)))

			w := srv.get(fmt.Sprintf("/descargar/%d", resp.ID))
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, pdfBytes, w.Body.Bytes())
			assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=algorithms.pdf`)
		})
	}
}

func TestUpload_RejectsGIF(t *testing.T) {
	srv := newTestServer(t)
	gifPart := filePart{"imagen", "cover.gif", "image/gif", gifBytes}

	w := srv.do(primaryRequest(t, "/subir-libro", gifPart))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"imagen"`)

	w = srv.do(multipartRequest(t, "/subir-libro-forma2",
		map[string]string{"nombre": "Go", "categoria": "CS", "enlace": "https://example.com/go.pdf"},
		gifPart))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, countBooks(t, srv.db))
}

func TestUpload_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(multipartRequest(t, "/subir-libro",
		map[string]string{"categoria": "CS"},
		filePart{"archivo", "a.pdf", "application/pdf", pdfBytes}, pngPart))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"nombre"`)

	w = srv.do(multipartRequest(t, "/subir-libro",
		map[string]string{"nombre": "A", "categoria": "CS"}, pngPart))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"archivo"`)

	w = srv.do(multipartRequest(t, "/subir-libro-forma2", map[string]string{"nombre": "A", "categoria": "CS"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"enlace"`)
}

func TestUpload_NotMultipart(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/subir-libro", strings.NewReader(`{"nombre":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := srv.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	t.Run("declared length", func(t *testing.T) {
		srv := newTestServer(t, withMaxUpload(128))

		w := srv.do(primaryRequest(t, "/subir-libro", pngPart))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Zero(t, countBooks(t, srv.db))
	})

	t.Run("chunked body", func(t *testing.T) {
		srv := newTestServer(t, withMaxUpload(128))

		req := primaryRequest(t, "/subir-libro", pngPart)
		req.ContentLength = -1
		w := srv.do(req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Zero(t, countBooks(t, srv.db))
	})
}

func TestLinkedUpload_Redirects(t *testing.T) {
	srv := newTestServer(t)
	uri := "https://example.com/books/sicp.pdf"

	w := srv.do(multipartRequest(t, "/subir-libro-forma2",
		map[string]string{"nombre": "SICP", "categoria": "CS", "enlace": uri}, pngPart))
	resp := decodeUpload(t, w)
	assert.Equal(t, resp.ID, resp.LibroID)

	for _, path := range []string{"/descargar/%d", "/descargar/libros1/%d"} {
		w = srv.get(fmt.Sprintf(path, resp.ID))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, uri, w.Header().Get("Location"))
	}
}

func TestDownload_NotFound(t *testing.T) {
	srv := newTestServer(t)
	primary := decodeUpload(t, srv.do(primaryRequest(t, "/subir-libro", pngPart)))

	assert.Equal(t, http.StatusNotFound, srv.get("/descargar/999").Code)
	assert.Equal(t, http.StatusNotFound, srv.get(fmt.Sprintf("/descargar/libros1/%d", primary.ID)).Code)
	assert.Equal(t, http.StatusBadRequest, srv.get("/descargar/abc").Code)
}

func TestCategoriesAndListing(t *testing.T) {
	srv := newTestServer(t)

	w := srv.get("/categorias/filtrar")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	primary := decodeUpload(t, srv.do(primaryRequest(t, "/subir-libro", pngPart)))
	linked := decodeUpload(t, srv.do(multipartRequest(t, "/subir-libro-forma2",
		map[string]string{"nombre": "Zen", "categoria": "Art", "enlace": "https://example.com/zen"})))

	w = srv.get("/categorias/libros?categoria=CS")
	require.Equal(t, http.StatusOK, w.Code)
	var books []catalog.BookView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &books))
	require.Len(t, books, 1)
	assert.Equal(t, primary.ID, books[0].ID)
	require.NotNil(t, books[0].Image)
	assert.True(t, strings.HasPrefix(*books[0].Image, "data:image/png;base64,"))

	w = srv.get("/categorias/libros")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`{"id":%d,"nombre":"Zen","categoria":"Art","origen":"linked","imagen":null}`, linked.ID))

	// The empty snapshot is still fresh.
	w = srv.get("/categorias/filtrar")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestVisits_CookieIdentity(t *testing.T) {
	srv := newTestServer(t)

	w := srv.get("/visitar")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_new":true,"total":1}`, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "visitId", cookies[0].Name)

	w = srv.get("/contar-usuario", cookies[0])
	assert.JSONEq(t, `{"is_new":false,"total":1}`, w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "valid cookie must not be reissued")

	// A new visitor without a cookie counts once more.
	w = srv.get("/visitar")
	assert.JSONEq(t, `{"is_new":true,"total":2}`, w.Body.String())

	for _, path := range []string{"/obtener-contador", "/total-usuarios", "/total-visitas"} {
		w = srv.get(path)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"total":2,"total_visitas":2}`, w.Body.String())
	}
}

func TestVisits_AddressFallback(t *testing.T) {
	srv := newTestServer(t, withoutCookies)

	first := srv.get("/visitar")
	assert.JSONEq(t, `{"is_new":true,"total":1}`, first.Body.String())
	assert.Empty(t, first.Result().Cookies())

	second := srv.get("/visitar")
	assert.JSONEq(t, `{"is_new":false,"total":1}`, second.Body.String())
}

func TestVisits_TamperedCookieReissued(t *testing.T) {
	srv := newTestServer(t)

	w := srv.get("/visitar", &http.Cookie{Name: "visitId", Value: "forged"})
	assert.JSONEq(t, `{"is_new":true,"total":1}`, w.Body.String())
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.get("/descargar/42")

	w := srv.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `libreria_catalog_downloads_total{kind="not_found"} 1`)
	assert.Contains(t, string(body), `route="/descargar/:id"`)
}
