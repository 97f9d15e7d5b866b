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

var planRowColumns = []string{"id", "title", "description", "currency", "price_minor_units", "credits", "is_active", "created_at", "updated_at"}

func TestPlanRepository_ListActiveOnly(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_plans WHERE is_active = 1 ORDER BY price_minor_units ASC")).
		WillReturnRows(sqlmock.NewRows(planRowColumns).
			AddRow(1, "Starter", "", "RUB", 19900, 100, 1, now, now).
			AddRow(2, "Pro", "best value", "RUB", 49900, 300, 1, now, now))

	plans, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Starter", plans[0].Title)
	assert.True(t, plans[1].IsActive)
	assert.Equal(t, 300, plans[1].Credits)
}

func TestPlanRepository_CreateReadsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pricing_plans")).
		WithArgs("Starter", "", "RUB", 19900, 100, 1).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_plans WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(planRowColumns).AddRow(9, "Starter", "", "RUB", 19900, 100, 1, now, now))

	plan, err := repo.Create(context.Background(), &models.Plan{
		Title: "Starter", Currency: "RUB", PriceMinorUnits: 19900, Credits: 100, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), plan.ID)
}

func TestPlanRepository_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pricing_plans WHERE id = ?")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(planRowColumns))

	plan, err := repo.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, plan)
}
