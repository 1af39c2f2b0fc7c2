package handler

import (
	"net/http"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return originAllowed(r.Header.Get("Origin"), h.allowedOrigins) },
	}
}

// ServeWebSocket authenticates the handshake once and pins the user id to the
// connection for its lifetime.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := handshakeToken(c)
	if token == "" {
		common.ErrorResponse(c, common.Unauthenticated("authorization token missing"))
		return
	}
	userID, err := h.Auth.ValidateCredential(token)
	if err != nil {
		common.ErrorResponse(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", "user", userID, "err", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, userID)
	h.Hub.Register(client)
	client.Run()
}

// originAllowed accepts non-browser clients (no Origin header), a "*" entry,
// or an exact match.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
