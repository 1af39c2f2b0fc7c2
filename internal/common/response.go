package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorInfo is the error body of every failed HTTP response.
type ErrorInfo struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus maps an error kind onto a status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show a client. Internal causes stay in
// the logs.
func PublicMessage(err error) string {
	kind := KindOf(err)
	if kind == KindInternal {
		return "internal error"
	}
	return err.Error()
}

// ErrorResponse aborts the request with the status and body for err.
func ErrorResponse(c *gin.Context, err error) {
	kind := KindOf(err)
	c.AbortWithStatusJSON(HTTPStatus(kind), gin.H{
		"error": ErrorInfo{Code: kind, Message: PublicMessage(err)},
	})
}
