package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/visits"
)

type VisitResponse struct {
	IsNew bool  `json:"is_new"`
	Total int64 `json:"total"`
}

type CountResponse struct {
	Total        int64 `json:"total"`
	TotalVisitas int64 `json:"total_visitas"`
}

type VisitsController struct {
	register     VisitRegister
	cookie       *visits.CookieCodec
	addressKey   []byte
	issueCookies bool
}

func NewVisitsController(register VisitRegister, cookie *visits.CookieCodec, addressKey []byte, issueCookies bool) *VisitsController {
	return &VisitsController{
		register:     register,
		cookie:       cookie,
		addressKey:   addressKey,
		issueCookies: issueCookies,
	}
}

// Visit registers the caller and reports whether this was its first visit.
func (vc *VisitsController) Visit(c *gin.Context) {
	ctx := c.Request.Context()

	id := visits.ResolveIdentity(vc.visitorToken(c), c.ClientIP(), vc.addressKey)
	visit, err := vc.register.RegisterVisit(ctx, id)
	if err != nil {
		respondInternalError(c, err, "register visit")
		return
	}

	total, err := vc.register.Count(ctx)
	if err != nil {
		respondInternalError(c, err, "count visits")
		return
	}

	c.JSON(http.StatusOK, VisitResponse{IsNew: visit.IsNew, Total: total})
}

// Count returns the number of distinct visitors.
func (vc *VisitsController) Count(c *gin.Context) {
	total, err := vc.register.Count(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "count visits")
		return
	}
	c.JSON(http.StatusOK, CountResponse{Total: total, TotalVisitas: total})
}

// visitorToken returns the verified cookie token. Without one, a fresh token
// is issued and used for this request too, unless issuing is disabled, in
// which case the caller falls back to its address.
func (vc *VisitsController) visitorToken(c *gin.Context) string {
	if vc.cookie == nil {
		return ""
	}
	if token, ok := vc.cookie.Token(c.Request); ok {
		return token
	}
	if !vc.issueCookies {
		return ""
	}

	token, err := vc.cookie.Issue(c.Writer)
	if err != nil {
		log.Printf("Failed to issue visitor cookie, counting by address: %v", err)
		return ""
	}
	return token
}
