// Package store defines the persistence the engine reads from and writes to.
package store

import (
	"context"

	"mealplanner"
)

const DefaultHistoryLimit = 20

// ConfirmFunc computes the new stock and history rows for a plan. It is
// called inside the store's transaction and must not have side effects.
type ConfirmFunc func(plan mealplanner.MealPlanResponse, stock []mealplanner.StockItem) ([]mealplanner.StockItem, []mealplanner.MealHistoryItem, error)

// Store is scoped per user: no method reads or writes another user's rows.
type Store interface {
	GetStock(ctx context.Context, userID string) ([]mealplanner.StockItem, error)
	PutStock(ctx context.Context, userID string, items []mealplanner.StockItem) error
	AppendHistory(ctx context.Context, items []mealplanner.MealHistoryItem) error
	// GetPastMealNames returns up to limit meal names, most recent first.
	GetPastMealNames(ctx context.Context, userID string, limit int) ([]string, error)
	// History returns up to limit history items, most recent first.
	History(ctx context.Context, userID string, limit int) ([]mealplanner.MealHistoryItem, error)

	SavePlan(ctx context.Context, userID string, plan mealplanner.MealPlanResponse) error
	// GetPlan fails with mealplanner.ErrPlanNotFound.
	GetPlan(ctx context.Context, userID, planID string) (mealplanner.MealPlanResponse, error)
	// Confirm loads the plan and the user's stock, runs apply and stores the
	// result atomically. It fails with mealplanner.ErrPlanNotFound or
	// mealplanner.ErrAlreadyConfirmed and then changes nothing.
	Confirm(ctx context.Context, userID, planID string, apply ConfirmFunc) ([]mealplanner.StockItem, error)
}
