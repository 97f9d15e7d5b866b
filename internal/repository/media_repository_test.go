package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/visionhub/internal/models"
)

var mediaColumns = []string{"id", "user_id", "url", "path", "prompt", "prompt_id", "model", "created_at"}

func TestMediaRepository_InsertCharged(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	item := &models.MediaItem{
		ID: "v1", Kind: models.MediaVideo, UserID: "u1", URL: "https://cdn/v1.mp4",
		Path: "videos/u1/v1.mp4", Prompt: "waves", PromptID: "p1", Model: "kling", CreatedAt: created,
	}

	t.Run("charged", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMediaRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO videos")).
			WithArgs("v1", "u1", item.URL, item.Path, "waves", "p1", "kling", created).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits - ?")).
			WithArgs(10, "u1", 10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := repo.InsertCharged(context.Background(), item, 10)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("balance drained concurrently", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMediaRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO videos")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits - ?")).
			WithArgs(10, "u1", 10).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		ok, err := repo.InsertCharged(context.Background(), item, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMediaRepository_InsertRejectsUnknownKind(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewMediaRepository(db)

	err := repo.Insert(context.Background(), &models.MediaItem{ID: "x", Kind: "audio"})
	assert.Error(t, err)
}

func TestMediaRepository_ListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMediaRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM images WHERE user_id = ? ORDER BY created_at DESC")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(mediaColumns).
			AddRow("i1", "u1", "https://cdn/i1.png", "images/u1/i1.png", "A red car", "p1", "Gemini AI", now).
			AddRow("i2", "u1", "https://cdn/i2.png", "images/u1/i2.png", "legacy", "", "Flux 2", now))

	items, err := repo.ListByUser(context.Background(), models.MediaImage, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.MediaImage, items[0].Kind)
	assert.Equal(t, "", items[1].PromptID)
}

func TestMediaRepository_DeleteItemsIsOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMediaRepository(db)

	items := []models.MediaItem{
		{ID: "i1", Kind: models.MediaImage},
		{ID: "i2", Kind: models.MediaImage},
		{ID: "v1", Kind: models.MediaVideo},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM images WHERE id IN (?,?)")).
		WithArgs("i1", "i2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM videos WHERE id IN (?)")).
		WithArgs("v1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.DeleteItems(context.Background(), items)
	assert.ErrorIs(t, err, assert.AnError)
}
