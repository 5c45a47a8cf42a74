package planner

import "mealplanner"

// residualEpsilon ignores floating point leftovers when stock exactly covers a need.
const residualEpsilon = 1e-6

// ShoppingList sums the grams each ingredient needs across all days and keeps
// whatever the stock snapshot does not cover. Items keep the order and
// spelling of their first appearance in the plan.
func ShoppingList(days []mealplanner.SingleDayPlan, stock []mealplanner.StockItem) []mealplanner.IngredientAmount {
	type need struct {
		name  string
		grams float64
	}

	var order []string
	needs := map[string]*need{}
	for _, day := range days {
		for _, meal := range day.Meals {
			for _, ing := range meal.Ingredients {
				key := mealplanner.NormalizeName(ing.Name)
				n, ok := needs[key]
				if !ok {
					n = &need{name: ing.Name}
					needs[key] = n
					order = append(order, key)
				}
				n.grams += ing.QuantityGrams
			}
		}
	}

	available := map[string]float64{}
	for _, item := range stock {
		available[mealplanner.NormalizeName(item.Name)] += item.QuantityGrams
	}

	list := make([]mealplanner.IngredientAmount, 0, len(order))
	for _, key := range order {
		n := needs[key]
		if residual := n.grams - available[key]; residual > residualEpsilon {
			list = append(list, mealplanner.IngredientAmount{Name: n.name, QuantityGrams: residual})
		}
	}
	return list
}
