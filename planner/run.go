package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealplanner"
)

type State int

const (
	StatePending State = iota
	StateGeneratingDay
	StateAggregating
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGeneratingDay:
		return "generating_day"
	case StateAggregating:
		return "aggregating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transition is one recorded state change. Day is -1 outside GeneratingDay.
type Transition struct {
	State State
	Day   int
}

// Run is a single request moving through
// Pending -> GeneratingDay(i) -> Aggregating -> Completed | Failed.
type Run struct {
	planner *Planner
	req     mealplanner.MealPlanRequest
	days    int

	state   State
	day     int
	history []Transition
}

func (r *Run) State() State { return r.state }

// Day is the index of the day being generated, or that failed.
func (r *Run) Day() int { return r.day }

// History returns every transition taken so far.
func (r *Run) History() []Transition {
	return append([]Transition(nil), r.history...)
}

func (r *Run) transition(s State, day int) {
	r.state = s
	r.day = day
	r.history = append(r.history, Transition{State: s, Day: day})
	slog.Debug("PLANNER: State changed", "state", s.String(), "day_index", day)
}

// Execute generates every day in order and aggregates the shopping list. No
// plan is returned unless every day succeeds.
func (r *Run) Execute(ctx context.Context) (mealplanner.MealPlanResponse, error) {
	if r.state != StatePending {
		return mealplanner.MealPlanResponse{}, fmt.Errorf("run already executed (state %s)", r.state)
	}

	p := r.planner
	ctx, span := p.opts.Tracer.Start(ctx, "Planner.Generate")
	defer span.End()

	start := time.Now()
	p.metrics.requests.Add(ctx, 1)
	defer func() {
		p.metrics.planDuration.Record(ctx, time.Since(start).Seconds())
	}()

	fail := func(day int, err error) (mealplanner.MealPlanResponse, error) {
		r.transition(StateFailed, day)
		p.metrics.requestsFailed.Add(ctx, 1)
		span.SetStatus(codes.Error, "generation failed")
		span.RecordError(err)
		return mealplanner.MealPlanResponse{}, err
	}

	if err := r.req.Validate(r.days, 0); err != nil {
		return fail(-1, err)
	}

	span.SetAttributes(
		attribute.Int("days", r.days),
		attribute.Int("meals_per_day", r.req.MealsPerDay),
		attribute.String("provider", p.provider.Name()),
	)
	slog.Info("PLANNER: Starting plan", "days", r.days, "meals_per_day", r.req.MealsPerDay, "provider", p.provider.Name())

	acc := dayAccumulator{stock: append([]mealplanner.StockItem(nil), r.req.Ingredients...)}
	planned := make([]mealplanner.SingleDayPlan, 0, r.days)

	for i := 0; i < r.days; i++ {
		r.transition(StateGeneratingDay, i)

		if err := ctx.Err(); err != nil {
			return fail(i, fmt.Errorf("generate day %d: %w", i, err))
		}

		day, err := p.generateDay(ctx, r.req, i, acc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return fail(i, fmt.Errorf("generate day %d: %w", i, ctx.Err()))
				}
			}
			slog.Error("PLANNER: Day generation failed", "day_index", i, "error", err)
			return fail(i, &mealplanner.GenerationFailedError{DayIndex: i, LastError: err})
		}

		planned = append(planned, day)
		acc = acc.with(day)
		span.AddEvent("Day completed", trace.WithAttributes(attribute.Int("day_index", i)))
	}

	r.transition(StateAggregating, -1)
	resp := mealplanner.MealPlanResponse{
		PlanID:       p.opts.NewID(),
		Days:         planned,
		ShoppingList: ShoppingList(planned, r.req.Ingredients),
		CreatedAt:    p.opts.Now().UTC(),
	}

	r.transition(StateCompleted, -1)
	span.SetAttributes(attribute.String("plan_id", resp.PlanID))
	slog.Info("PLANNER: Plan completed", "plan_id", resp.PlanID, "days", len(resp.Days), "shopping_items", len(resp.ShoppingList))
	return resp, nil
}
