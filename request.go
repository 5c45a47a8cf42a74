package mealplanner

import (
	"fmt"
	"strings"
)

const (
	DefaultMealsPerDay = 3
	DefaultPeopleCount = 2
	MaxMealsPerDay     = 6
	MaxPeopleCount     = 10
)

// WithDefaults returns a copy of r with zero-valued counts and profile fields
// filled in. Stock names are trimmed.
func (r MealPlanRequest) WithDefaults() MealPlanRequest {
	out := r
	if out.MealsPerDay == 0 {
		out.MealsPerDay = DefaultMealsPerDay
	}
	if out.PeopleCount == 0 {
		out.PeopleCount = DefaultPeopleCount
	}

	switch ms := strings.ToLower(strings.TrimSpace(out.MeasurementSystem)); ms {
	case "none", "metric", "imperial":
		out.MeasurementSystem = ms
	default:
		out.MeasurementSystem = "metric"
	}

	switch v := strings.ToLower(strings.TrimSpace(out.Variability)); v {
	case "traditional", "experimental":
		out.Variability = v
	default:
		out.Variability = "traditional"
	}

	out.Ingredients = make([]StockItem, len(r.Ingredients))
	for i, item := range r.Ingredients {
		item.Name = strings.TrimSpace(item.Name)
		out.Ingredients[i] = item
	}
	out.PastMeals = append([]string(nil), r.PastMeals...)
	return out
}

// Validate checks request bounds for a plan spanning days days.
func (r MealPlanRequest) Validate(days, maxDays int) error {
	if days < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidRequest, days)
	}
	if maxDays > 0 && days > maxDays {
		return fmt.Errorf("%w: days must be at most %d, got %d", ErrInvalidRequest, maxDays, days)
	}
	if r.MealsPerDay < 1 || r.MealsPerDay > MaxMealsPerDay {
		return fmt.Errorf("%w: meals_per_day must be between 1 and %d, got %d", ErrInvalidRequest, MaxMealsPerDay, r.MealsPerDay)
	}
	if r.PeopleCount < 1 || r.PeopleCount > MaxPeopleCount {
		return fmt.Errorf("%w: people_count must be between 1 and %d, got %d", ErrInvalidRequest, MaxPeopleCount, r.PeopleCount)
	}
	if !r.DietType.Valid() {
		return fmt.Errorf("%w: unknown diet_type %q", ErrInvalidRequest, r.DietType)
	}
	for i, item := range r.Ingredients {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: ingredient %d has no name", ErrInvalidRequest, i)
		}
		if item.QuantityGrams < 0 {
			return fmt.Errorf("%w: ingredient %q has negative quantity", ErrInvalidRequest, item.Name)
		}
	}
	return nil
}
