package rdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Idea_Portal/internal/config"
	"Idea_Portal/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedIdea(t *testing.T, repo *IdeaRepository, mutate func(*model.Idea)) *model.Idea {
	t.Helper()
	idea := &model.Idea{
		ID:               uuid.NewString(),
		Title:            "Dark mode",
		Description:      "Please add a dark theme to the dashboard",
		AuthorID:         "author",
		AuthorName:       "Ada Lovelace",
		Status:           model.StatusPrivate,
		CreatedAt:        baseTime,
		UpdatedAt:        baseTime,
		LastStatusUpdate: baseTime,
	}
	if mutate != nil {
		mutate(idea)
	}
	require.NoError(t, repo.Create(context.Background(), idea))
	return idea
}
