package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/relations"
	"github.com/secureboat/recipe-api/pkg/logger"
)

// statusFor maps service errors onto HTTP status codes. Partial write
// failures and store outages both surface as 500: the client cannot repair
// either.
func statusFor(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, datastore.ErrBadCursor):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNoCredential), errors.Is(err, auth.ErrCredentialRejected):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, relations.ErrAlreadyLinked):
		return http.StatusForbidden
	case errors.Is(err, datastore.ErrNotFound), errors.Is(err, relations.ErrNotLinked):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// selfLink builds the canonical locator for a resource under the configured
// root URL.
func selfLink(rootURL, collection string, id int64) string {
	return fmt.Sprintf("%s/%s/%d", rootURL, collection, id)
}

// listEnvelope wraps one page of results. Next is only present when another
// page exists.
func listEnvelope(c *gin.Context, rootURL string, items interface{}, info datastore.PageInfo) gin.H {
	out := gin.H{"items": items}
	if info.MoreResults && info.EndCursor != "" {
		out["next"] = fmt.Sprintf("%s%s?cursor=%s", rootURL, c.Request.URL.Path, info.EndCursor)
	}
	return out
}
