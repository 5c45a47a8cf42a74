// Package notify announces generated plans on a chat channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"mealplanner"
)

// Notifier posts a plan summary and its shopping list.
type Notifier struct {
	client  mealplanner.SlackClient
	channel string
}

func NewNotifier(client mealplanner.SlackClient, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

// PlanGenerated posts the plan. A nil Notifier does nothing.
func (n *Notifier) PlanGenerated(ctx context.Context, userID string, plan mealplanner.MealPlanResponse) error {
	if n == nil || n.client == nil {
		return nil
	}
	if err := n.client.PostMessage(ctx, n.channel, FormatPlan(userID, plan)); err != nil {
		slog.Error("NOTIFY: Failed to post plan", "plan_id", plan.PlanID, "error", err)
		return fmt.Errorf("post plan %s: %w", plan.PlanID, err)
	}
	slog.Info("NOTIFY: Plan posted", "plan_id", plan.PlanID, "channel", n.channel)
	return nil
}

// FormatPlan renders a plan as Slack mrkdwn.
func FormatPlan(userID string, plan mealplanner.MealPlanResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Meal plan %s* for %s (%d days)\n", plan.PlanID, userID, len(plan.Days))
	for i, day := range plan.Days {
		fmt.Fprintf(&b, "\n*Day %d*\n", i+1)
		for _, meal := range day.Meals {
			fmt.Fprintf(&b, "• %s: %s\n", meal.MealType, meal.Name)
		}
	}

	b.WriteString("\n*Shopping list*\n")
	if len(plan.ShoppingList) == 0 {
		b.WriteString("Nothing to buy.\n")
		return b.String()
	}
	for _, item := range plan.ShoppingList {
		fmt.Fprintf(&b, "• %s: %sg\n", item.Name, strconv.FormatFloat(item.QuantityGrams, 'f', -1, 64))
	}
	return b.String()
}
