// Package validator turns raw provider text into a checked day plan.
package validator

import (
	"fmt"
	"strings"

	"mealplanner"
)

// Validator checks generated days against the meals already known for the
// request: past meals plus every earlier day.
type Validator struct {
	MealsPerDay int
	Seen        []string
}

// Validate parses raw and applies the rules in order: parse, meal count,
// meal contents, ingredient references, repetition. The first failure is
// returned as a *mealplanner.ValidationError.
func (v Validator) Validate(raw string) (mealplanner.SingleDayPlan, error) {
	day, err := Parse(raw)
	if err != nil {
		return day, err
	}
	day = clean(day)
	return day, v.Check(day)
}

// Check applies the rules after parsing.
func (v Validator) Check(day mealplanner.SingleDayPlan) error {
	if len(day.Meals) != v.MealsPerDay {
		return &mealplanner.ValidationError{
			Rule:      mealplanner.ErrShape,
			MealIndex: -1,
			Detail:    fmt.Sprintf("got %d meals, expected exactly %d", len(day.Meals), v.MealsPerDay),
		}
	}

	for i, meal := range day.Meals {
		if err := checkShape(i, meal); err != nil {
			return err
		}
	}

	for i, meal := range day.Meals {
		for _, used := range meal.UsesExistingIngredients {
			if _, ok := meal.Ingredient(used); !ok {
				return &mealplanner.ValidationError{
					Rule:      mealplanner.ErrReference,
					MealIndex: i,
					Detail:    fmt.Sprintf("uses_existing_ingredients names %q which is not in ingredients", used),
				}
			}
		}
	}

	seen := make(map[string]bool, len(v.Seen)+len(day.Meals))
	for _, name := range v.Seen {
		seen[mealplanner.NormalizeName(name)] = true
	}
	for i, meal := range day.Meals {
		key := mealplanner.NormalizeName(meal.Name)
		if seen[key] {
			return &mealplanner.ValidationError{
				Rule:      mealplanner.ErrRepetition,
				MealIndex: i,
				Detail:    fmt.Sprintf("meal name %q was already planned", meal.Name),
			}
		}
		seen[key] = true
	}
	return nil
}

func checkShape(i int, meal mealplanner.PlannedMeal) error {
	shape := func(format string, args ...any) error {
		return &mealplanner.ValidationError{Rule: mealplanner.ErrShape, MealIndex: i, Detail: fmt.Sprintf(format, args...)}
	}

	if meal.Name == "" {
		return shape("meal has no name")
	}
	if len(meal.Ingredients) == 0 {
		return shape("meal %q has no ingredients", meal.Name)
	}
	if len(meal.Steps) == 0 {
		return shape("meal %q has no steps", meal.Name)
	}
	listed := make(map[string]bool, len(meal.Ingredients))
	for _, ing := range meal.Ingredients {
		if ing.Name == "" {
			return shape("meal %q has an ingredient without a name", meal.Name)
		}
		if ing.QuantityGrams < 0 {
			return shape("ingredient %q has negative quantity_grams", ing.Name)
		}
		key := mealplanner.NormalizeName(ing.Name)
		if listed[key] {
			return shape("meal %q lists ingredient %q more than once", meal.Name, ing.Name)
		}
		listed[key] = true
	}
	return nil
}

// clean trims text fields, lower-cases meal types and drops blank steps.
func clean(day mealplanner.SingleDayPlan) mealplanner.SingleDayPlan {
	out := mealplanner.SingleDayPlan{Meals: make([]mealplanner.PlannedMeal, len(day.Meals))}
	for i, m := range day.Meals {
		cm := mealplanner.PlannedMeal{
			Name:                    strings.TrimSpace(m.Name),
			MealType:                strings.ToLower(strings.TrimSpace(m.MealType)),
			UsesExistingIngredients: make([]string, 0, len(m.UsesExistingIngredients)),
			Ingredients:             make([]mealplanner.IngredientAmount, 0, len(m.Ingredients)),
			Steps:                   make([]string, 0, len(m.Steps)),
		}
		for _, u := range m.UsesExistingIngredients {
			if u = strings.TrimSpace(u); u != "" {
				cm.UsesExistingIngredients = append(cm.UsesExistingIngredients, u)
			}
		}
		for _, ing := range m.Ingredients {
			ing.Name = strings.TrimSpace(ing.Name)
			cm.Ingredients = append(cm.Ingredients, ing)
		}
		for _, s := range m.Steps {
			if s = strings.TrimSpace(s); s != "" {
				cm.Steps = append(cm.Steps, s)
			}
		}
		out.Meals[i] = cm
	}
	return out
}
