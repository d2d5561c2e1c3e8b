package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CategoriesController struct {
	categories CategoryGetter
	books      BookResolver
}

func NewCategoriesController(categories CategoryGetter, books BookResolver) *CategoriesController {
	return &CategoriesController{
		categories: categories,
		books:      books,
	}
}

// Categories returns the distinct category labels of both record sets.
func (cc *CategoriesController) Categories(c *gin.Context) {
	labels, err := cc.categories.Get(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, labels)
}

// Books lists books, optionally filtered by ?categoria=.
func (cc *CategoriesController) Books(c *gin.Context) {
	books, err := cc.books.ListBooks(c.Request.Context(), c.Query("categoria"))
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, books)
}
