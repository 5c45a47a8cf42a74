package mealplanner

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Provider generates raw text for a prompt. Implementations are selected at
// construction time and must be safe to call sequentially from one request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions are per-call generation settings shared by every provider.
type GenerateOptions struct {
	System      string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type DietType string

const (
	DietBalanced    DietType = "balanced"
	DietHighProtein DietType = "high_protein"
	DietLowCarb     DietType = "low_carb"
	DietVegetarian  DietType = "vegetarian"
	DietVegan       DietType = "vegan"
)

// Valid reports whether d is empty or one of the known diets.
func (d DietType) Valid() bool {
	switch d {
	case "", DietBalanced, DietHighProtein, DietLowCarb, DietVegetarian, DietVegan:
		return true
	}
	return false
}

const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// IngredientAmount is an ingredient with its weight in grams.
type IngredientAmount struct {
	Name          string  `json:"name" yaml:"name"`
	QuantityGrams float64 `json:"quantity_grams" yaml:"quantity_grams"`
}

// StockItem is an ingredient the user has on hand.
type StockItem struct {
	Name          string  `json:"name" yaml:"name"`
	QuantityGrams float64 `json:"quantity_grams" yaml:"quantity_grams"`
	NeedToUse     bool    `json:"need_to_use" yaml:"need_to_use"`
}

// MealPlanRequest describes what to plan. It is not modified once submitted.
type MealPlanRequest struct {
	Ingredients       []StockItem `json:"ingredients" yaml:"ingredients"`
	TastePreferences  []string    `json:"taste_preferences,omitempty" yaml:"taste_preferences"`
	AvoidIngredients  []string    `json:"avoid_ingredients,omitempty" yaml:"avoid_ingredients"`
	DietType          DietType    `json:"diet_type,omitempty" yaml:"diet_type"`
	MealsPerDay       int         `json:"meals_per_day" yaml:"meals_per_day"`
	PeopleCount       int         `json:"people_count" yaml:"people_count"`
	PastMeals         []string    `json:"past_meals,omitempty" yaml:"past_meals"`
	Country           string      `json:"country,omitempty" yaml:"country"`
	MeasurementSystem string      `json:"measurement_system,omitempty" yaml:"measurement_system"`
	Variability       string      `json:"variability,omitempty" yaml:"variability"`
	IncludeSpices     *bool       `json:"include_spices,omitempty" yaml:"include_spices"`
}

// SpicesIncluded defaults to true when the request leaves it unset.
func (r MealPlanRequest) SpicesIncluded() bool {
	return r.IncludeSpices == nil || *r.IncludeSpices
}

// PlannedMeal is a single generated meal.
type PlannedMeal struct {
	Name                    string             `json:"name"`
	MealType                string             `json:"meal_type"`
	UsesExistingIngredients []string           `json:"uses_existing_ingredients"`
	Ingredients             []IngredientAmount `json:"ingredients"`
	Steps                   []string           `json:"steps"`
}

// Ingredient returns the meal ingredient matching name, if any.
func (m PlannedMeal) Ingredient(name string) (IngredientAmount, bool) {
	key := NormalizeName(name)
	for _, ing := range m.Ingredients {
		if NormalizeName(ing.Name) == key {
			return ing, true
		}
	}
	return IngredientAmount{}, false
}

// SingleDayPlan holds the meals of one day.
type SingleDayPlan struct {
	Meals []PlannedMeal `json:"meals"`
}

// MealPlanResponse is the result of one generation call.
type MealPlanResponse struct {
	PlanID       string             `json:"plan_id"`
	Days         []SingleDayPlan    `json:"days"`
	ShoppingList []IngredientAmount `json:"shopping_list"`
	CreatedAt    time.Time          `json:"created_at"`
}

// MealNames returns every meal name in plan order.
func (p MealPlanResponse) MealNames() []string {
	var names []string
	for _, day := range p.Days {
		for _, meal := range day.Meals {
			names = append(names, meal.Name)
		}
	}
	return names
}

// MealHistoryItem is an append-only record of a confirmed meal.
type MealHistoryItem struct {
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	DayIndex  int       `json:"day_index"`
	MealIndex int       `json:"meal_index"`
	Name      string    `json:"name"`
	MealType  string    `json:"meal_type"`
	Meal      string    `json:"meal_json,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeName lower-cases a name, trims it and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
