package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mealplanner"
)

func day(meals ...[]mealplanner.IngredientAmount) mealplanner.SingleDayPlan {
	var d mealplanner.SingleDayPlan
	for _, ings := range meals {
		d.Meals = append(d.Meals, mealplanner.PlannedMeal{Name: "meal", Ingredients: ings})
	}
	return d
}

func TestShoppingList(t *testing.T) {
	tests := []struct {
		name  string
		days  []mealplanner.SingleDayPlan
		stock []mealplanner.StockItem
		want  []mealplanner.IngredientAmount
	}{
		{
			name: "nothing planned",
			want: []mealplanner.IngredientAmount{},
		},
		{
			name: "stock covers everything",
			days: []mealplanner.SingleDayPlan{day([]mealplanner.IngredientAmount{{Name: "rice", QuantityGrams: 100}})},
			stock: []mealplanner.StockItem{
				{Name: "rice", QuantityGrams: 100},
			},
			want: []mealplanner.IngredientAmount{},
		},
		{
			name: "sums across days and subtracts stock",
			days: []mealplanner.SingleDayPlan{
				day([]mealplanner.IngredientAmount{{Name: "rice", QuantityGrams: 100}, {Name: "garlic", QuantityGrams: 10}}),
				day([]mealplanner.IngredientAmount{{Name: "Rice", QuantityGrams: 250}}),
			},
			stock: []mealplanner.StockItem{
				{Name: "rice ", QuantityGrams: 300},
			},
			want: []mealplanner.IngredientAmount{
				{Name: "rice", QuantityGrams: 50},
				{Name: "garlic", QuantityGrams: 10},
			},
		},
		{
			name: "sums within a day and keeps first spelling",
			days: []mealplanner.SingleDayPlan{
				day(
					[]mealplanner.IngredientAmount{{Name: "Soy  Sauce", QuantityGrams: 20}},
					[]mealplanner.IngredientAmount{{Name: "soy sauce", QuantityGrams: 5}},
				),
			},
			want: []mealplanner.IngredientAmount{
				{Name: "Soy  Sauce", QuantityGrams: 25},
			},
		},
		{
			name: "ignores floating point residue",
			days: []mealplanner.SingleDayPlan{
				day(
					[]mealplanner.IngredientAmount{{Name: "oil", QuantityGrams: 0.1}},
					[]mealplanner.IngredientAmount{{Name: "oil", QuantityGrams: 0.2}},
				),
			},
			stock: []mealplanner.StockItem{{Name: "oil", QuantityGrams: 0.3}},
			want:  []mealplanner.IngredientAmount{},
		},
		{
			name: "zero quantity ingredients are not bought",
			days: []mealplanner.SingleDayPlan{day([]mealplanner.IngredientAmount{{Name: "salt", QuantityGrams: 0}})},
			want: []mealplanner.IngredientAmount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShoppingList(tt.days, tt.stock))
		})
	}
}
