package handler

import (
	"strings"

	"marketchat/backend/internal/common"
	"marketchat/backend/internal/config"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireAuth validates the bearer token and stores the user id on the
// context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			common.ErrorResponse(c, common.Unauthenticated("authorization token missing"))
			return
		}
		userID, err := h.Auth.ValidateCredential(token)
		if err != nil {
			common.ErrorResponse(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// handshakeToken reads the credential of a websocket upgrade. Browsers cannot
// set headers on the upgrade, so the query parameter is accepted too.
func handshakeToken(c *gin.Context) string {
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query(config.WSHandshakeToken))
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func userIDFrom(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
