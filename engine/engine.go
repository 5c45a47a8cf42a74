// Package engine exposes meal planning to transports: generate a plan for a
// user, confirm it against their stock, and read history and stock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealplanner"
	"mealplanner/reconcile"
	"mealplanner/store"
)

type generator interface {
	Generate(ctx context.Context, req mealplanner.MealPlanRequest, days int) (mealplanner.MealPlanResponse, error)
}

type Options struct {
	PastMealsLimit int
	MaxDays        int
	Tracer         trace.Tracer
	Now            func() time.Time
}

type Engine struct {
	store          store.Store
	planner        generator
	pastMealsLimit int
	maxDays        int
	tracer         trace.Tracer
	now            func() time.Time
}

func New(s store.Store, p generator, opts Options) *Engine {
	e := &Engine{
		store:          s,
		planner:        p,
		pastMealsLimit: opts.PastMealsLimit,
		maxDays:        opts.MaxDays,
		tracer:         opts.Tracer,
		now:            opts.Now,
	}
	if e.pastMealsLimit <= 0 {
		e.pastMealsLimit = store.DefaultHistoryLimit
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(mealplanner.TracerNameEngine)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// GeneratePlan plans days days for userID. A request without ingredients uses
// the stored stock, and the user's recent meals are added to past_meals. The
// plan is saved pending confirmation; nothing else is written.
func (e *Engine) GeneratePlan(ctx context.Context, userID string, req mealplanner.MealPlanRequest, days int) (mealplanner.MealPlanResponse, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.GeneratePlan")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("days", days))

	req = req.WithDefaults()
	if err := req.Validate(days, e.maxDays); err != nil {
		return mealplanner.MealPlanResponse{}, err
	}

	if len(req.Ingredients) == 0 {
		stock, err := e.store.GetStock(ctx, userID)
		if err != nil {
			return mealplanner.MealPlanResponse{}, fmt.Errorf("load stock: %w", err)
		}
		req.Ingredients = stock
	}

	past, err := e.store.GetPastMealNames(ctx, userID, e.pastMealsLimit)
	if err != nil {
		return mealplanner.MealPlanResponse{}, fmt.Errorf("load past meals: %w", err)
	}
	req.PastMeals = mergeNames(req.PastMeals, past)

	slog.Info("ENGINE: Generating plan", "user_id", userID, "days", days, "stock_items", len(req.Ingredients), "past_meals", len(req.PastMeals))

	plan, err := e.planner.Generate(ctx, req, days)
	if err != nil {
		span.SetStatus(codes.Error, "generation failed")
		span.RecordError(err)
		return mealplanner.MealPlanResponse{}, err
	}

	if err := e.store.SavePlan(ctx, userID, plan); err != nil {
		return mealplanner.MealPlanResponse{}, fmt.Errorf("save plan: %w", err)
	}

	span.SetAttributes(attribute.String("plan_id", plan.PlanID))
	return plan, nil
}

// ConfirmPlan applies a generated plan to the user's stock and records the
// meals in history. It returns the updated stock.
func (e *Engine) ConfirmPlan(ctx context.Context, userID, planID string) ([]mealplanner.StockItem, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ConfirmPlan")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("plan_id", planID))

	now := e.now().UTC()
	apply := func(plan mealplanner.MealPlanResponse, stock []mealplanner.StockItem) ([]mealplanner.StockItem, []mealplanner.MealHistoryItem, error) {
		res, err := reconcile.Confirm(userID, plan, stock, now)
		return res.Stock, res.History, err
	}

	stock, err := e.store.Confirm(ctx, userID, planID, apply)
	if err != nil {
		span.SetStatus(codes.Error, "confirm failed")
		span.RecordError(err)
		if errors.Is(err, mealplanner.ErrPlanNotFound) || errors.Is(err, mealplanner.ErrAlreadyConfirmed) {
			return nil, &mealplanner.ReconciliationError{PlanID: planID, Err: err}
		}
		return nil, fmt.Errorf("confirm plan %s: %w", planID, err)
	}

	slog.Info("ENGINE: Plan confirmed", "user_id", userID, "plan_id", planID)
	return stock, nil
}

// Plan returns a previously generated plan.
func (e *Engine) Plan(ctx context.Context, userID, planID string) (mealplanner.MealPlanResponse, error) {
	plan, err := e.store.GetPlan(ctx, userID, planID)
	if errors.Is(err, mealplanner.ErrPlanNotFound) {
		return plan, &mealplanner.ReconciliationError{PlanID: planID, Err: err}
	}
	return plan, err
}

// History lists the user's confirmed meals, newest first.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]mealplanner.MealHistoryItem, error) {
	return e.store.History(ctx, userID, limit)
}

func (e *Engine) Stock(ctx context.Context, userID string) ([]mealplanner.StockItem, error) {
	return e.store.GetStock(ctx, userID)
}

// PutStock replaces the user's stock.
func (e *Engine) PutStock(ctx context.Context, userID string, items []mealplanner.StockItem) error {
	clean := make([]mealplanner.StockItem, 0, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return fmt.Errorf("%w: stock item %d has no name", mealplanner.ErrInvalidRequest, i)
		}
		if item.QuantityGrams < 0 {
			return fmt.Errorf("%w: stock item %q has negative quantity", mealplanner.ErrInvalidRequest, item.Name)
		}
		clean = append(clean, item)
	}
	return e.store.PutStock(ctx, userID, clean)
}

func mergeNames(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := map[string]bool{}
	for _, name := range append(append([]string{}, a...), b...) {
		key := mealplanner.NormalizeName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
