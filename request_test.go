package mealplanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	req := MealPlanRequest{
		Ingredients:       []StockItem{{Name: "  chicken ", QuantityGrams: 500}},
		MeasurementSystem: "Imperial",
		Variability:       "wild",
		PastMeals:         []string{"Soup"},
	}

	got := req.WithDefaults()

	assert.Equal(t, DefaultMealsPerDay, got.MealsPerDay)
	assert.Equal(t, DefaultPeopleCount, got.PeopleCount)
	assert.Equal(t, "imperial", got.MeasurementSystem)
	assert.Equal(t, "traditional", got.Variability)
	assert.Equal(t, "chicken", got.Ingredients[0].Name)
	assert.True(t, got.SpicesIncluded())

	// The original is left alone.
	assert.Equal(t, "  chicken ", req.Ingredients[0].Name)
	got.PastMeals[0] = "changed"
	assert.Equal(t, "Soup", req.PastMeals[0])
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	no := false
	req := MealPlanRequest{MealsPerDay: 1, PeopleCount: 4, MeasurementSystem: "none", Variability: "experimental", IncludeSpices: &no}

	got := req.WithDefaults()

	assert.Equal(t, 1, got.MealsPerDay)
	assert.Equal(t, 4, got.PeopleCount)
	assert.Equal(t, "none", got.MeasurementSystem)
	assert.Equal(t, "experimental", got.Variability)
	assert.False(t, got.SpicesIncluded())
}

func TestValidate(t *testing.T) {
	valid := MealPlanRequest{MealsPerDay: 3, PeopleCount: 2, DietType: DietVegan}

	tests := []struct {
		name    string
		mutate  func(r *MealPlanRequest)
		days    int
		maxDays int
		wantErr string
	}{
		{name: "valid", days: 3, maxDays: 14},
		{name: "unlimited days", days: 100, maxDays: 0},
		{name: "zero days", days: 0, maxDays: 14, wantErr: "days must be at least 1"},
		{name: "too many days", days: 15, maxDays: 14, wantErr: "days must be at most 14"},
		{name: "too many meals", mutate: func(r *MealPlanRequest) { r.MealsPerDay = 7 }, days: 1, wantErr: "meals_per_day"},
		{name: "no meals", mutate: func(r *MealPlanRequest) { r.MealsPerDay = 0 }, days: 1, wantErr: "meals_per_day"},
		{name: "too many people", mutate: func(r *MealPlanRequest) { r.PeopleCount = 11 }, days: 1, wantErr: "people_count"},
		{name: "unknown diet", mutate: func(r *MealPlanRequest) { r.DietType = "paleo" }, days: 1, wantErr: "unknown diet_type"},
		{
			name:    "unnamed ingredient",
			mutate:  func(r *MealPlanRequest) { r.Ingredients = []StockItem{{Name: " ", QuantityGrams: 1}} },
			days:    1,
			wantErr: "has no name",
		},
		{
			name:    "negative quantity",
			mutate:  func(r *MealPlanRequest) { r.Ingredients = []StockItem{{Name: "rice", QuantityGrams: -1}} },
			days:    1,
			wantErr: "negative quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			err := req.Validate(tt.days, tt.maxDays)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "soy sauce", NormalizeName("  Soy   SAUCE "))
	assert.Equal(t, "", NormalizeName("   "))
}
