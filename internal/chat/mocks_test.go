package chat_test

import (
	"context"
	"testing"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/common"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) Profile(ctx context.Context, userID int64) (models.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Profile), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) TitleFor(ctx context.Context, contextType models.ContextType, refID int64) (string, error) {
	args := m.Called(ctx, contextType, refID)
	return args.String(0), args.Error(1)
}

// directory answers for users 1..3 and nobody else.
func directory() *MockIdentity {
	m := new(MockIdentity)
	names := map[int64]string{1: "Mina", 2: "Joon", 3: "Sora"}
	for id, name := range names {
		m.On("Profile", mock.Anything, id).Return(models.Profile{UserID: id, DisplayName: name}, nil).Maybe()
	}
	m.On("Profile", mock.Anything, mock.Anything).Return(models.Profile{}, common.NotFound("no user")).Maybe()
	return m
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.AutoMigrate(db))
	return db
}

type fixture struct {
	db       *gorm.DB
	store    *storage.Service
	svc      *chat.Service
	identity *MockIdentity
	catalog  *MockCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	texts, err := localization.Default()
	require.NoError(t, err)

	identity := directory()
	catalog := new(MockCatalog)
	catalog.On("TitleFor", mock.Anything, models.ContextMentoringInquiry, int64(7)).Return("Pepper growing basics", nil).Maybe()
	catalog.On("TitleFor", mock.Anything, mock.Anything, mock.Anything).Return("", common.NotFound("no listing")).Maybe()

	db := newTestDB(t)
	titler := chat.NewTitler(catalog, identity, texts, "en", nil)
	store := storage.NewStorageService(db, titler, nil)
	svc := chat.NewService(store, store, identity, texts, chat.Options{Locale: "en"})

	return &fixture{db: db, store: store, svc: svc, identity: identity, catalog: catalog}
}

func ref(v int64) *int64 { return &v }
