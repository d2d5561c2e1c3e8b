package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/catalog"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"` // offending form field for validation errors
}

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
	LibroID int64  `json:"libroId,omitempty"` // kept for clients of the link upload form
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondPayloadTooLarge sends a 413 response.
func respondPayloadTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: catalog.ErrPayloadTooLarge.Error()})
}

// respondCatalogError maps catalog and store errors onto status codes.
// Anything unrecognised is a 500.
func respondCatalogError(c *gin.Context, err error, context string) {
	var validationErr *catalog.ValidationError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validationErr.Error(), Field: validationErr.Field})
	case errors.Is(err, catalog.ErrPayloadTooLarge), errors.As(err, &maxBytesErr):
		respondPayloadTooLarge(c)
	case errors.Is(err, catalog.ErrNotFound):
		respondNotFound(c, "book")
	default:
		respondInternalError(c, err, context)
	}
}

// --- Success Response Helpers ---

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// --- Parameter Parsing ---

// parseIDParam extracts a positive book id from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return id, true
}
