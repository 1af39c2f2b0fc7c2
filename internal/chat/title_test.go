package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoomTitle(t *testing.T) {
	texts, err := localization.Default()
	require.NoError(t, err)

	catalog := new(MockCatalog)
	catalog.On("TitleFor", mock.Anything, models.ContextFarmlandInquiry, int64(3)).Return("  Sunny plot near Iksan ", nil)
	catalog.On("TitleFor", mock.Anything, models.ContextJobInquiry, int64(4)).Return(strings.Repeat("x", 300), nil)
	catalog.On("TitleFor", mock.Anything, models.ContextJobInquiry, int64(5)).Return("", errors.New("db down"))

	titler := chat.NewTitler(catalog, directory(), texts, "en", nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		ctxType  models.ContextType
		ref      *int64
		a, b     int64
		expected string
	}{
		{"farmland listing", models.ContextFarmlandInquiry, ref(3), 1, 2, "[Farmland] Sunny plot near Iksan"},
		{"listing lookup fails", models.ContextJobInquiry, ref(5), 1, 2, "Chat"},
		{"missing ref", models.ContextJobInquiry, nil, 1, 2, "Chat"},
		{"pair of names", models.ContextGeneral, nil, 1, 2, "Mina & Joon"},
		{"unknown member", models.ContextNone, nil, 1, 99, "Chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, titler.RoomTitle(ctx, tt.ctxType, tt.ref, tt.a, tt.b))
		})
	}

	long := titler.RoomTitle(ctx, models.ContextJobInquiry, ref(4), 1, 2)
	assert.Len(t, []rune(long), 255)
	assert.True(t, strings.HasPrefix(long, "[Job] "))
}

func TestRoomTitleKorean(t *testing.T) {
	texts, err := localization.Default()
	require.NoError(t, err)
	titler := chat.NewTitler(nil, directory(), texts, "ko", nil)

	title := titler.RoomTitle(context.Background(), models.ContextGeneral, nil, 1, 2)

	assert.Contains(t, title, "Mina")
	assert.Contains(t, title, "Joon")
}
