package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"mealplanner"
	"mealplanner/composer"
)

type dish struct {
	name        string
	ingredients []mealplanner.IngredientAmount
	steps       []string
}

// The first dish is what a one-meal request for day 0 gets.
var menu = []dish{
	{
		name: "Spicy chicken with rice",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "chicken", QuantityGrams: 200},
			{Name: "rice", QuantityGrams: 100},
			{Name: "garlic", QuantityGrams: 20},
			{Name: "soy sauce", QuantityGrams: 25},
		},
		steps: []string{
			"Cook the rice.",
			"Stir-fry the chicken with chopped garlic until cooked through.",
			"Add soy sauce, toss and serve over the rice.",
		},
	},
	{
		name: "Vegetable omelette",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "eggs", QuantityGrams: 180},
			{Name: "bell pepper", QuantityGrams: 80},
			{Name: "onion", QuantityGrams: 50},
			{Name: "butter", QuantityGrams: 10},
		},
		steps: []string{
			"Dice the pepper and onion and soften them in butter.",
			"Pour in the beaten eggs and cook until just set.",
		},
	},
	{
		name: "Tomato lentil soup",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "red lentils", QuantityGrams: 150},
			{Name: "tomato", QuantityGrams: 300},
			{Name: "onion", QuantityGrams: 80},
			{Name: "olive oil", QuantityGrams: 15},
		},
		steps: []string{
			"Soften the onion in olive oil.",
			"Add tomatoes, lentils and water and simmer for 20 minutes.",
			"Blend until smooth.",
		},
	},
	{
		name: "Garlic spinach pasta",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "pasta", QuantityGrams: 200},
			{Name: "spinach", QuantityGrams: 100},
			{Name: "garlic", QuantityGrams: 15},
			{Name: "olive oil", QuantityGrams: 20},
		},
		steps: []string{
			"Boil the pasta.",
			"Sauté garlic in olive oil, wilt the spinach and toss with the pasta.",
		},
	},
	{
		name: "Yogurt with oats and berries",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "greek yogurt", QuantityGrams: 250},
			{Name: "oats", QuantityGrams: 60},
			{Name: "berries", QuantityGrams: 100},
		},
		steps: []string{
			"Layer yogurt, oats and berries in bowls.",
		},
	},
	{
		name: "Chickpea salad",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "chickpeas", QuantityGrams: 240},
			{Name: "cucumber", QuantityGrams: 120},
			{Name: "tomato", QuantityGrams: 150},
			{Name: "olive oil", QuantityGrams: 15},
		},
		steps: []string{
			"Chop the vegetables.",
			"Toss with chickpeas and olive oil and season to taste.",
		},
	},
	{
		name: "Baked salmon with potatoes",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "salmon", QuantityGrams: 300},
			{Name: "potatoes", QuantityGrams: 400},
			{Name: "lemon", QuantityGrams: 50},
			{Name: "olive oil", QuantityGrams: 15},
		},
		steps: []string{
			"Roast the sliced potatoes with olive oil for 20 minutes.",
			"Add the salmon and lemon slices and bake 12 more minutes.",
		},
	},
	{
		name: "Beef and broccoli stir-fry",
		ingredients: []mealplanner.IngredientAmount{
			{Name: "beef", QuantityGrams: 250},
			{Name: "broccoli", QuantityGrams: 200},
			{Name: "soy sauce", QuantityGrams: 30},
			{Name: "ginger", QuantityGrams: 10},
		},
		steps: []string{
			"Sear the sliced beef.",
			"Add broccoli, ginger and soy sauce and stir-fry until tender.",
		},
	},
}

// Provider answers every prompt with a schema-valid day derived from the
// prompt's data section. It never touches the network.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return mealplanner.ProviderMock }

// Generate reads day_index, meals_per_day, stock and already_planned from the
// prompt and returns the same JSON for the same inputs.
func (p *Provider) Generate(ctx context.Context, prompt string, _ mealplanner.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", mealplanner.TransportError(p.Name(), err)
	}

	dayIndex := intValue(prompt, composer.KeyDayIndex, 0)
	mealsPerDay := intValue(prompt, composer.KeyMealsPerDay, 1)
	if mealsPerDay < 1 {
		mealsPerDay = 1
	}

	var stock []mealplanner.StockItem
	if raw, ok := composer.DataValue(prompt, composer.KeyStock); ok {
		_ = json.Unmarshal([]byte(raw), &stock)
	}

	taken := map[string]bool{}
	if raw, ok := composer.DataValue(prompt, composer.KeyAlreadyPlanned); ok {
		var planned []string
		_ = json.Unmarshal([]byte(raw), &planned)
		for _, name := range planned {
			taken[mealplanner.NormalizeName(name)] = true
		}
	}

	slog.Info("LLM_CLIENT: Mock invoked", "day_index", dayIndex, "meals_per_day", mealsPerDay, "stock_len", len(stock))

	types := mealTypes(mealsPerDay)
	meals := make([]mealplanner.PlannedMeal, 0, mealsPerDay)
	for i := 0; i < mealsPerDay; i++ {
		d, name := pick(dayIndex*mealsPerDay+i, taken)
		taken[mealplanner.NormalizeName(name)] = true
		meals = append(meals, mealplanner.PlannedMeal{
			Name:                    name,
			MealType:                types[i],
			UsesExistingIngredients: inStock(d.ingredients, stock),
			Ingredients:             append([]mealplanner.IngredientAmount(nil), d.ingredients...),
			Steps:                   append([]string(nil), d.steps...),
		})
	}

	b, err := json.Marshal(mealplanner.SingleDayPlan{Meals: meals})
	if err != nil {
		return "", mealplanner.NewFatalError(p.Name(), 0, err)
	}
	return string(b), nil
}

// pick walks the menu from start and returns the first dish whose name is not
// taken. Once the menu is exhausted names get a variation suffix.
func pick(start int, taken map[string]bool) (dish, string) {
	for round := 0; ; round++ {
		for i := 0; i < len(menu); i++ {
			d := menu[(start+i)%len(menu)]
			name := d.name
			if round > 0 {
				name = fmt.Sprintf("%s (variation %d)", d.name, round+1)
			}
			if !taken[mealplanner.NormalizeName(name)] {
				return d, name
			}
		}
	}
}

func mealTypes(n int) []string {
	switch n {
	case 1:
		return []string{mealplanner.MealLunch}
	case 2:
		return []string{mealplanner.MealLunch, mealplanner.MealDinner}
	}
	out := []string{mealplanner.MealBreakfast, mealplanner.MealLunch, mealplanner.MealDinner}
	for len(out) < n {
		out = append(out, mealplanner.MealSnack)
	}
	return out
}

func inStock(ingredients []mealplanner.IngredientAmount, stock []mealplanner.StockItem) []string {
	uses := []string{}
	for _, ing := range ingredients {
		for _, item := range stock {
			if item.QuantityGrams > 0 && mealplanner.NormalizeName(item.Name) == mealplanner.NormalizeName(ing.Name) {
				uses = append(uses, ing.Name)
				break
			}
		}
	}
	return uses
}

func intValue(prompt, key string, def int) int {
	raw, ok := composer.DataValue(prompt, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
