// Package storetest holds behaviour every store.Store implementation shares.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
	"mealplanner/reconcile"
	"mealplanner/store"
)

var base = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// Plan returns a one-day plan that uses 200g chicken and 100g rice.
func Plan(id string) mealplanner.MealPlanResponse {
	return mealplanner.MealPlanResponse{
		PlanID: id,
		Days: []mealplanner.SingleDayPlan{{Meals: []mealplanner.PlannedMeal{{
			Name:                    "Chicken rice " + id,
			MealType:                mealplanner.MealDinner,
			UsesExistingIngredients: []string{"chicken", "rice"},
			Ingredients: []mealplanner.IngredientAmount{
				{Name: "chicken", QuantityGrams: 200},
				{Name: "rice", QuantityGrams: 100},
				{Name: "garlic", QuantityGrams: 10},
			},
			Steps: []string{"Cook."},
		}}}},
		ShoppingList: []mealplanner.IngredientAmount{{Name: "garlic", QuantityGrams: 10}},
		CreatedAt:    base,
	}
}

// Stock is the stock Plan draws from.
func Stock() []mealplanner.StockItem {
	return []mealplanner.StockItem{
		{Name: "rice", QuantityGrams: 500},
		{Name: "chicken", QuantityGrams: 600, NeedToUse: true},
		{Name: "tofu", QuantityGrams: 0},
	}
}

func reconcileAt(userID string, now time.Time) store.ConfirmFunc {
	return func(plan mealplanner.MealPlanResponse, stock []mealplanner.StockItem) ([]mealplanner.StockItem, []mealplanner.MealHistoryItem, error) {
		res, err := reconcile.Confirm(userID, plan, stock, now)
		return res.Stock, res.History, err
	}
}

// Run exercises s against the store.Store contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("stock round trip keeps order", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, s.PutStock(ctx, "u1", Stock()))
		got, err = s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, Stock(), got)

		replacement := []mealplanner.StockItem{{Name: "eggs", QuantityGrams: 120}}
		require.NoError(t, s.PutStock(ctx, "u1", replacement))
		got, err = s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, replacement, got)

		other, err := s.GetStock(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("plan round trip is scoped per user", func(t *testing.T) {
		s := newStore(t)
		plan := Plan("p1")
		require.NoError(t, s.SavePlan(ctx, "u1", plan))

		got, err := s.GetPlan(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Equal(t, plan, got)

		_, err = s.GetPlan(ctx, "u2", "p1")
		assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)

		_, err = s.GetPlan(ctx, "u1", "missing")
		assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)

		assert.Error(t, s.SavePlan(ctx, "u1", plan), "plan ids are unique")
	})

	t.Run("confirm applies the plan once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutStock(ctx, "u1", Stock()))
		require.NoError(t, s.SavePlan(ctx, "u1", Plan("p1")))

		want := []mealplanner.StockItem{
			{Name: "rice", QuantityGrams: 400},
			{Name: "chicken", QuantityGrams: 400, NeedToUse: true},
			{Name: "tofu", QuantityGrams: 0},
		}

		updated, err := s.Confirm(ctx, "u1", "p1", reconcileAt("u1", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, want, updated)

		stock, err := s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, stock)

		history, err := s.History(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "Chicken rice p1", history[0].Name)
		assert.Equal(t, "p1", history[0].PlanID)
		assert.True(t, base.Add(time.Hour).Equal(history[0].CreatedAt))

		_, err = s.Confirm(ctx, "u1", "p1", reconcileAt("u1", base.Add(2*time.Hour)))
		assert.ErrorIs(t, err, mealplanner.ErrAlreadyConfirmed)

		stock, err = s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, stock, "second confirm must not deduct again")

		history, err = s.History(ctx, "u1", 10)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("confirm unknown plan", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SavePlan(ctx, "u1", Plan("p1")))

		_, err := s.Confirm(ctx, "u1", "missing", reconcileAt("u1", base))
		assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)

		_, err = s.Confirm(ctx, "u2", "p1", reconcileAt("u2", base))
		assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)
	})

	t.Run("failed confirm changes nothing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutStock(ctx, "u1", Stock()))
		require.NoError(t, s.SavePlan(ctx, "u1", Plan("p1")))

		boom := errors.New("boom")
		_, err := s.Confirm(ctx, "u1", "p1", func(mealplanner.MealPlanResponse, []mealplanner.StockItem) ([]mealplanner.StockItem, []mealplanner.MealHistoryItem, error) {
			return nil, nil, boom
		})
		assert.ErrorIs(t, err, boom)

		stock, err := s.GetStock(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, Stock(), stock)

		_, err = s.Confirm(ctx, "u1", "p1", reconcileAt("u1", base))
		assert.NoError(t, err, "plan stays confirmable")
	})

	t.Run("history is newest first and limited", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"p1", "p2", "p3"} {
			require.NoError(t, s.SavePlan(ctx, "u1", Plan(id)))
		}
		require.NoError(t, s.SavePlan(ctx, "u2", Plan("q1")))

		var items []mealplanner.MealHistoryItem
		for i, id := range []string{"p1", "p2", "p3"} {
			items = append(items, mealplanner.MealHistoryItem{
				UserID:    "u1",
				PlanID:    id,
				Name:      "Meal " + id,
				MealType:  mealplanner.MealLunch,
				Meal:      "{}",
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
		}
		items = append(items, mealplanner.MealHistoryItem{
			UserID: "u2", PlanID: "q1", Name: "Other", MealType: mealplanner.MealLunch, Meal: "{}", CreatedAt: base.Add(time.Hour),
		})
		require.NoError(t, s.AppendHistory(ctx, items))

		history, err := s.History(ctx, "u1", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "Meal p3", history[0].Name)
		assert.Equal(t, "Meal p2", history[1].Name)
		assert.Equal(t, "u1", history[0].UserID)

		names, err := s.GetPastMealNames(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Meal p3", "Meal p2", "Meal p1"}, names)

		names, err = s.GetPastMealNames(ctx, "u3", 5)
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}
