// Package planner generates multi-day meal plans one day at a time.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"mealplanner"
	"mealplanner/composer"
	"mealplanner/corpus"
	"mealplanner/reconcile"
	"mealplanner/retrieval"
	"mealplanner/validator"
)

const (
	DefaultMaxRepairs          = 2
	DefaultMaxProviderAttempts = 3
	DefaultBackoffBase         = time.Second
	DefaultBackoffMax          = 8 * time.Second
)

type retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) []corpus.Recipe
}

type Options struct {
	// MaxRepairs is the repair budget per day. Zero means the default, a
	// negative value disables repairs.
	MaxRepairs          int
	MaxProviderAttempts int
	BackoffBase         time.Duration
	BackoffMax          time.Duration
	// NewBackOff overrides the exponential policy built from BackoffBase and
	// BackoffMax.
	NewBackOff func() backoff.BackOff
	// AcceptRepetitionOnExhaustion keeps a day whose only remaining problem
	// is a repeated meal name once the repair budget is spent.
	AcceptRepetitionOnExhaustion bool
	Generate                     mealplanner.GenerateOptions
	Logger                       mealplanner.GenerationLogger
	Tracer                       trace.Tracer
	Meter                        metric.Meter
	Now                          func() time.Time
	NewID                        func() string
}

type instruments struct {
	requests        metric.Int64Counter
	requestsFailed  metric.Int64Counter
	dayAttempts     metric.Int64Counter
	repairs         metric.Int64Counter
	providerRetries metric.Int64Counter
	planDuration    metric.Float64Histogram
	providerLatency metric.Float64Histogram
}

// Planner turns a request into a plan by calling the provider once per day
// plus repairs.
type Planner struct {
	provider  mealplanner.Provider
	retriever retriever
	opts      Options
	metrics   instruments
}

// New builds a Planner. retriever may be nil.
func New(provider mealplanner.Provider, r retriever, opts Options) *Planner {
	if opts.MaxRepairs < 0 {
		opts.MaxRepairs = 0
	} else if opts.MaxRepairs == 0 {
		opts.MaxRepairs = DefaultMaxRepairs
	}
	if opts.MaxProviderAttempts <= 0 {
		opts.MaxProviderAttempts = DefaultMaxProviderAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.Logger == nil {
		opts.Logger = mealplanner.NewNoOpGenerationLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(mealplanner.TracerNamePlanner)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(mealplanner.MeterNamePlanner)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Generate.System == "" {
		opts.Generate.System = composer.SystemPrompt
	}

	p := &Planner{provider: provider, retriever: r, opts: opts}

	m := opts.Meter
	p.metrics.requests, _ = m.Int64Counter("plan_requests_total",
		metric.WithDescription("Total number of meal plan requests started"))
	p.metrics.requestsFailed, _ = m.Int64Counter("plan_requests_failed_total",
		metric.WithDescription("Total number of meal plan requests that failed"))
	p.metrics.dayAttempts, _ = m.Int64Counter("day_attempts_total",
		metric.WithDescription("Total number of provider attempts made for a day"))
	p.metrics.repairs, _ = m.Int64Counter("repairs_total",
		metric.WithDescription("Total number of repair prompts issued"))
	p.metrics.providerRetries, _ = m.Int64Counter("provider_retries_total",
		metric.WithDescription("Total number of provider calls retried after a transient failure"))
	p.metrics.planDuration, _ = m.Float64Histogram("plan_duration_seconds",
		metric.WithDescription("Duration of a whole meal plan generation in seconds"))
	p.metrics.providerLatency, _ = m.Float64Histogram("provider_latency_seconds",
		metric.WithDescription("Time taken by a single provider call in seconds"))

	return p
}

// Generate plans days days for req.
func (p *Planner) Generate(ctx context.Context, req mealplanner.MealPlanRequest, days int) (mealplanner.MealPlanResponse, error) {
	return p.NewRun(req, days).Execute(ctx)
}

// NewRun prepares a run without starting it.
func (p *Planner) NewRun(req mealplanner.MealPlanRequest, days int) *Run {
	return &Run{planner: p, req: req.WithDefaults(), days: days, state: StatePending}
}

// dayAccumulator is what earlier days hand to the next one.
type dayAccumulator struct {
	planned []string
	stock   []mealplanner.StockItem
}

func (a dayAccumulator) with(day mealplanner.SingleDayPlan) dayAccumulator {
	next := dayAccumulator{
		planned: append(append([]string(nil), a.planned...), mealNames(day)...),
		stock:   reconcile.Apply(a.stock, []mealplanner.SingleDayPlan{day}),
	}
	return next
}

func mealNames(day mealplanner.SingleDayPlan) []string {
	names := make([]string, len(day.Meals))
	for i, m := range day.Meals {
		names[i] = m.Name
	}
	return names
}

// generateDay runs the bounded attempt loop for one day: one initial prompt
// and at most MaxRepairs repair prompts.
func (p *Planner) generateDay(ctx context.Context, req mealplanner.MealPlanRequest, dayIndex int, acc dayAccumulator) (mealplanner.SingleDayPlan, error) {
	ctx, span := p.opts.Tracer.Start(ctx, fmt.Sprintf("Planner.Day.%d", dayIndex))
	defer span.End()

	var candidates []corpus.Recipe
	if p.retriever != nil {
		candidates = p.retriever.Retrieve(ctx, retrieval.QueryFor(req, acc.stock))
	}

	prompt, err := composer.Compose(req, dayIndex, composer.DayState{PlannedMeals: acc.planned, Stock: acc.stock}, candidates)
	if err != nil {
		span.SetStatus(codes.Error, "compose failed")
		span.RecordError(err)
		return mealplanner.SingleDayPlan{}, err
	}

	v := validator.Validator{
		MealsPerDay: req.MealsPerDay,
		Seen:        append(append([]string(nil), req.PastMeals...), acc.planned...),
	}

	current := prompt
	var lastErr error
	var repeated *mealplanner.SingleDayPlan

	for attempt := 0; attempt <= p.opts.MaxRepairs; attempt++ {
		p.metrics.dayAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Int("day_index", dayIndex)))
		entry := mealplanner.AttemptLog{
			DayIndex:  dayIndex,
			Attempt:   attempt + 1,
			Repair:    attempt > 0,
			Timestamp: p.opts.Now(),
			Prompt:    current,
		}

		slog.Info("PLANNER: Requesting day", "day_index", dayIndex, "attempt", attempt+1, "prompt_size_bytes", len(current), "candidates", len(candidates))

		raw, err := p.call(ctx, current, dayIndex)
		if err != nil {
			entry.Error = err.Error()
			entry.Rule = mealplanner.RuleName(err)
			p.logAttempt(entry)
			span.SetStatus(codes.Error, "provider failed")
			span.RecordError(err)
			return mealplanner.SingleDayPlan{}, err
		}
		entry.Output = raw

		day, verr := v.Validate(raw)
		if verr == nil {
			p.logAttempt(entry)
			span.AddEvent("Day accepted", trace.WithAttributes(
				attribute.Int("attempt", attempt+1),
				attribute.Int("meals", len(day.Meals)),
			))
			slog.Info("PLANNER: Day accepted", "day_index", dayIndex, "attempt", attempt+1)
			return day, nil
		}

		entry.Rule = mealplanner.RuleName(verr)
		entry.Error = verr.Error()
		p.logAttempt(entry)
		span.AddEvent("Day rejected", trace.WithAttributes(
			attribute.Int("attempt", attempt+1),
			attribute.String("rule", entry.Rule),
		))
		slog.Warn("PLANNER: Day output rejected", "day_index", dayIndex, "attempt", attempt+1, "rule", entry.Rule, "error", verr)

		lastErr = verr
		repeated = nil
		if errors.Is(verr, mealplanner.ErrRepetition) {
			repeated = &day
		}

		if attempt == p.opts.MaxRepairs {
			break
		}

		current, err = composer.Repair(prompt, raw, verr)
		if err != nil {
			return mealplanner.SingleDayPlan{}, err
		}
		p.metrics.repairs.Add(ctx, 1)
	}

	if repeated != nil && p.opts.AcceptRepetitionOnExhaustion {
		slog.Warn("PLANNER: Accepting day with repeated meal name after repairs", "day_index", dayIndex, "error", lastErr)
		return *repeated, nil
	}

	span.SetStatus(codes.Error, "repair budget exhausted")
	span.RecordError(lastErr)
	return mealplanner.SingleDayPlan{}, lastErr
}

// call invokes the provider, retrying transient failures with exponential
// backoff and jitter. Fatal failures are returned at once.
func (p *Planner) call(ctx context.Context, prompt string, dayIndex int) (string, error) {
	op := func() (string, error) {
		start := time.Now()
		out, err := p.provider.Generate(ctx, prompt, p.opts.Generate)
		p.metrics.providerLatency.Record(ctx, time.Since(start).Seconds())
		if err == nil {
			return out, nil
		}
		if mealplanner.IsTransient(err) && ctx.Err() == nil {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		p.metrics.providerRetries.Add(ctx, 1)
		slog.Warn("PLANNER: Transient provider failure, backing off", "day_index", dayIndex, "wait", wait, "error", err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(uint(p.opts.MaxProviderAttempts)),
		backoff.WithNotify(notify),
	)
}

func (p *Planner) newBackOff() backoff.BackOff {
	if p.opts.NewBackOff != nil {
		return p.opts.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.BackoffBase
	b.MaxInterval = p.opts.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

func (p *Planner) logAttempt(entry mealplanner.AttemptLog) {
	if err := p.opts.Logger.LogAttempt(entry); err != nil {
		slog.Warn("PLANNER: Failed to record attempt", "error", err)
	}
}
