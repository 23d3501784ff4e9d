// Package handlers is the HTTP surface: request decoding, identity
// extraction and the mapping from domain errors to wire responses.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/forumhub/chatcore/internal/errs"
	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/pkg/middlewares"
)

// fail writes the stable error envelope for a domain error. Unclassified
// errors surface as a generic 500 so internals never leak.
func fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	c.JSON(errs.HTTPStatus(kind), gin.H{
		"code":  errs.Code(kind),
		"error": errs.MessageOf(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":  errs.Code(errs.KindInvalidArgument),
		"error": msg,
	})
}

// caller returns the authenticated identity, aborting with 401 when the
// auth middleware did not run.
func caller(c *gin.Context) (services.Identity, bool) {
	id, ok := middlewares.CallerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":  errs.Code(errs.KindUnauthenticated),
			"error": "authentication required",
		})
	}
	return id, ok
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
