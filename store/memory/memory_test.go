package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
	"mealplanner/store"
	"mealplanner/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestStockIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	items := storetest.Stock()
	require.NoError(t, s.PutStock(ctx, "u1", items))
	items[0].QuantityGrams = 1

	got, err := s.GetStock(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got[0].QuantityGrams)

	got[1].Name = "changed"
	again, err := s.GetStock(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "chicken", again[1].Name)
}

func TestConfirmRecordsTime(t *testing.T) {
	ctx := context.Background()
	confirmedAt := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return confirmedAt }

	require.NoError(t, s.SavePlan(ctx, "u1", storetest.Plan("p1")))
	_, err := s.Confirm(ctx, "u1", "p1", func(plan mealplanner.MealPlanResponse, stock []mealplanner.StockItem) ([]mealplanner.StockItem, []mealplanner.MealHistoryItem, error) {
		return stock, nil, nil
	})
	require.NoError(t, err)

	rec := s.plans["u1"]["p1"]
	require.NotNil(t, rec.confirmedAt)
	assert.Equal(t, confirmedAt, *rec.confirmedAt)
}
