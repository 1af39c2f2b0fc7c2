package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router   *gin.Engine
	hub      *chathub.ManagerService
	verifier *identity.JWTVerifier
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.AutoMigrate(db))
	require.NoError(t, db.AutoMigrate(&models.User{}))
	require.NoError(t, db.Create(&[]models.User{{ID: 1, Nickname: "Mina"}, {ID: 2, Nickname: "Joon"}}).Error)

	texts, err := localization.Default()
	require.NoError(t, err)
	profiles := identity.NewProfileDirectory(db)
	store := storage.NewStorageService(db, chat.NewTitler(nil, profiles, texts, "en", nil), nil)
	svc := chat.NewService(store, store, profiles, texts, chat.Options{Locale: "en"})
	hub := chathub.NewManagerService(svc, chathub.Options{})
	verifier := identity.NewJWTVerifier("test-secret", "marketchat")

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := handler.NewHandler(svc, hub, verifier, origins, time.Second, nil)
	return &testServer{router: handler.NewRouter(h), hub: hub, verifier: verifier}
}

func (s *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, "", time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRoomsFlow(t *testing.T) {
	s := newTestServer(t)

	// Arrange + Act: user 1 opens a room with a first message.
	w := s.do(t, http.MethodPost, "/api/v1/chat/rooms", 1, gin.H{
		"context_type": "general", "other_user_id": 2, "initial_message": "hello there",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	room := decode[chat.RoomView](t, w)
	assert.Equal(t, "Mina & Joon", room.Title)

	// Assert: user 2 sees it unread.
	w = s.do(t, http.MethodGet, "/api/v1/chat/unread-count", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int64{"total_unread": 1}, decode[map[string]int64](t, w))

	w = s.do(t, http.MethodGet, "/api/v1/chat/rooms", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rooms := decode[[]chat.RoomSummaryView](t, w)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Mina", rooms[0].OtherParticipant.DisplayName)

	w = s.do(t, http.MethodGet, "/api/v1/chat/rooms/"+room.RoomToken+"/messages?page=0&size=10", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[chat.MessagePage](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "hello there", page.Items[0].Body)

	w = s.do(t, http.MethodPost, "/api/v1/chat/rooms/"+room.RoomToken+"/messages", 2, gin.H{"body": "hi!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "hi!", decode[chat.MessageView](t, w).Body)

	w = s.do(t, http.MethodGet, "/api/v1/chat/rooms/search?keyword=HI", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]chat.RoomSummaryView](t, w), 1)

	w = s.do(t, http.MethodPost, "/api/v1/chat/rooms/"+room.RoomToken+"/read", 1, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/chat/rooms/"+room.RoomToken+"/enter", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindJoin, decode[chat.MessageView](t, w).Kind)

	w = s.do(t, http.MethodPost, "/api/v1/chat/rooms/"+room.RoomToken+"/leave", 1, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chat/rooms", 1, nil)
	assert.Empty(t, decode[[]chat.RoomSummaryView](t, w))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/chat/rooms", 1, gin.H{"context_type": "general", "other_user_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[chat.RoomView](t, w).RoomToken

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/chat/rooms", 0, nil, http.StatusUnauthorized, "unauthenticated"},
		{"bad context type", http.MethodPost, "/api/v1/chat/rooms", 1, gin.H{"context_type": "auction", "other_user_id": 2}, http.StatusBadRequest, "invalid_argument"},
		{"inquiry without ref", http.MethodPost, "/api/v1/chat/rooms", 1, gin.H{"context_type": "job_inquiry", "other_user_id": 2}, http.StatusBadRequest, "invalid_argument"},
		{"outsider reads", http.MethodGet, "/api/v1/chat/rooms/" + token + "/messages", 3, nil, http.StatusForbidden, "forbidden"},
		{"unknown room", http.MethodPost, "/api/v1/chat/rooms/nope/read", 1, nil, http.StatusNotFound, "not_found"},
		{"page too large", http.MethodGet, "/api/v1/chat/rooms/" + token + "/messages?size=500", 1, nil, http.StatusBadRequest, "invalid_argument"},
		{"page offset overflows", http.MethodGet, "/api/v1/chat/rooms/" + token + "/messages?page=9223372036854775807&size=100", 1, nil, http.StatusBadRequest, "invalid_argument"},
		{"blank search", http.MethodGet, "/api/v1/chat/rooms/search?keyword=", 1, nil, http.StatusBadRequest, "invalid_argument"},
		{"empty body", http.MethodPost, "/api/v1/chat/rooms/" + token + "/messages", 1, gin.H{"body": ""}, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode[map[string]map[string]string](t, w)
			assert.Equal(t, tt.code, body["error"]["code"])
		})
	}
}

func TestInvalidBearer(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/rooms", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marketchat_ws_connections")
}

func TestWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Run("rejects missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ping and send", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat/rooms", 1, gin.H{"context_type": "general", "other_user_id": 2})
		require.Equal(t, http.StatusOK, w.Code)
		token := decode[chat.RoomView](t, w).RoomToken

		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+s.token(t, 1), nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: models.TypePing}))
		var pong models.Event
		require.NoError(t, conn.ReadJSON(&pong))
		assert.Equal(t, models.TypePong, pong.Type)

		require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: models.TypeSendMessage, RoomToken: token, Body: "over the wire"}))
		var msg models.Event
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, models.TypeMessage, msg.Type)
		assert.Equal(t, "over the wire", msg.Body)
		assert.Equal(t, int64(1), msg.SenderID)
	})
}

func TestWebSocketOriginCheck(t *testing.T) {
	s := newTestServer(t, "https://market.example")
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + s.token(t, 1)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://market.example"}})
	require.NoError(t, err)
	conn.Close()
}
