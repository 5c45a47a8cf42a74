// Package reconcile applies a confirmed plan's ingredient usage to stock.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mealplanner"
)

// Result is the outcome of confirming a plan.
type Result struct {
	Stock   []mealplanner.StockItem
	History []mealplanner.MealHistoryItem
}

// Confirm deducts the plan's stock usage and emits one history item per meal.
// It does not know whether the plan was confirmed before; the store refuses
// a second confirmation.
func Confirm(userID string, plan mealplanner.MealPlanResponse, stock []mealplanner.StockItem, now time.Time) (Result, error) {
	res := Result{Stock: Apply(stock, plan.Days)}

	for d, day := range plan.Days {
		for m, meal := range day.Meals {
			b, err := json.Marshal(meal)
			if err != nil {
				return Result{}, fmt.Errorf("encode meal %d of day %d: %w", m, d, err)
			}
			res.History = append(res.History, mealplanner.MealHistoryItem{
				UserID:    userID,
				PlanID:    plan.PlanID,
				DayIndex:  d,
				MealIndex: m,
				Name:      meal.Name,
				MealType:  meal.MealType,
				Meal:      string(b),
				CreatedAt: now,
			})
		}
	}

	slog.Info("RECONCILE: Plan applied", "plan_id", plan.PlanID, "history_items", len(res.History))
	return res, nil
}

// Apply returns a copy of stock with, for every meal, the grams of each
// uses_existing_ingredients entry subtracted from the matching item. Amounts
// never go below zero, depleted items stay in the list and need_to_use flags
// are not touched.
func Apply(stock []mealplanner.StockItem, days []mealplanner.SingleDayPlan) []mealplanner.StockItem {
	out := make([]mealplanner.StockItem, len(stock))
	copy(out, stock)

	for _, day := range days {
		for _, meal := range day.Meals {
			done := make(map[string]bool, len(meal.UsesExistingIngredients))
			for _, used := range meal.UsesExistingIngredients {
				key := mealplanner.NormalizeName(used)
				if done[key] {
					continue
				}
				done[key] = true

				grams, ok := usedGrams(meal, key)
				if !ok {
					continue
				}
				i := indexOf(out, key)
				if i < 0 {
					slog.Debug("RECONCILE: Used ingredient not in stock", "name", used, "meal", meal.Name)
					continue
				}
				out[i].QuantityGrams -= grams
				if out[i].QuantityGrams < 0 {
					out[i].QuantityGrams = 0
				}
			}
		}
	}
	return out
}

// usedGrams totals every ingredient line of meal matching key.
func usedGrams(meal mealplanner.PlannedMeal, key string) (float64, bool) {
	var (
		total float64
		found bool
	)
	for _, ing := range meal.Ingredients {
		if mealplanner.NormalizeName(ing.Name) == key {
			total += ing.QuantityGrams
			found = true
		}
	}
	return total, found
}

func indexOf(stock []mealplanner.StockItem, key string) int {
	for i, item := range stock {
		if mealplanner.NormalizeName(item.Name) == key {
			return i
		}
	}
	return -1
}
