package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealplanner"
	"mealplanner/composer"
	"mealplanner/corpus"
	"mealplanner/llm/mock"
	"mealplanner/store/memory"
)

type fakePlanner struct {
	calls int
	req   mealplanner.MealPlanRequest
	days  int
	plan  mealplanner.MealPlanResponse
	err   error
}

func (f *fakePlanner) Generate(ctx context.Context, req mealplanner.MealPlanRequest, days int) (mealplanner.MealPlanResponse, error) {
	f.calls++
	f.req = req
	f.days = days
	return f.plan, f.err
}

func testConfig() mealplanner.Config {
	return mealplanner.Config{
		Model: mealplanner.ModelConfig{Provider: mealplanner.ProviderGemini, Mock: true},
		Engine: mealplanner.EngineConfig{
			MaxRepairs:          2,
			MaxProviderAttempts: 3,
			BackoffBase:         time.Millisecond,
			BackoffMax:          time.Millisecond,
			PastMealsLimit:      20,
			MaxDays:             14,
		},
	}
}

func chickenStock() []mealplanner.StockItem {
	return []mealplanner.StockItem{
		{Name: "chicken", QuantityGrams: 600, NeedToUse: true},
		{Name: "rice", QuantityGrams: 500},
	}
}

func TestGeneratePlanStock(t *testing.T) {
	tests := []struct {
		name    string
		request []mealplanner.StockItem
		want    []mealplanner.StockItem
	}{
		{
			name: "falls back to stored stock",
			want: chickenStock(),
		},
		{
			name:    "request stock wins",
			request: []mealplanner.StockItem{{Name: " eggs ", QuantityGrams: 120}},
			want:    []mealplanner.StockItem{{Name: "eggs", QuantityGrams: 120}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			require.NoError(t, s.PutStock(ctx, "u1", chickenStock()))

			fp := &fakePlanner{plan: mealplanner.MealPlanResponse{PlanID: "p1"}}
			e := New(s, fp, Options{MaxDays: 14})

			plan, err := e.GeneratePlan(ctx, "u1", mealplanner.MealPlanRequest{Ingredients: tt.request}, 2)
			require.NoError(t, err)
			assert.Equal(t, "p1", plan.PlanID)
			assert.Equal(t, tt.want, fp.req.Ingredients)
			assert.Equal(t, 2, fp.days)
			assert.Equal(t, mealplanner.DefaultMealsPerDay, fp.req.MealsPerDay)

			saved, err := e.Plan(ctx, "u1", "p1")
			require.NoError(t, err)
			assert.Equal(t, plan, saved)
		})
	}
}

func TestGeneratePlanMergesPastMeals(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.AppendHistory(ctx, []mealplanner.MealHistoryItem{
		{UserID: "u1", PlanID: "old", Name: "Curry"},
		{UserID: "u1", PlanID: "old", Name: "Beef Stew"},
		{UserID: "u2", PlanID: "other", Name: "Pizza"},
	}))

	fp := &fakePlanner{plan: mealplanner.MealPlanResponse{PlanID: "p1"}}
	e := New(s, fp, Options{})

	_, err := e.GeneratePlan(ctx, "u1", mealplanner.MealPlanRequest{PastMeals: []string{"Soup", "beef  stew"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soup", "beef  stew", "Curry"}, fp.req.PastMeals)
}

func TestGeneratePlanRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  mealplanner.MealPlanRequest
		days int
	}{
		{name: "no days", days: 0},
		{name: "too many days", days: 15},
		{name: "too many meals", req: mealplanner.MealPlanRequest{MealsPerDay: 7}, days: 1},
		{name: "unknown diet", req: mealplanner.MealPlanRequest{DietType: "carnivore"}, days: 1},
		{name: "negative stock", req: mealplanner.MealPlanRequest{Ingredients: []mealplanner.StockItem{{Name: "rice", QuantityGrams: -1}}}, days: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakePlanner{}
			e := New(memory.New(), fp, Options{MaxDays: 14})

			_, err := e.GeneratePlan(context.Background(), "u1", tt.req, tt.days)
			assert.ErrorIs(t, err, mealplanner.ErrInvalidRequest)
			assert.Zero(t, fp.calls)
		})
	}
}

func TestGeneratePlanFailure(t *testing.T) {
	fp := &fakePlanner{err: &mealplanner.GenerationFailedError{DayIndex: 2, LastError: errors.New("bad output")}}
	e := New(memory.New(), fp, Options{})

	_, err := e.GeneratePlan(context.Background(), "u1", mealplanner.MealPlanRequest{}, 3)

	var failed *mealplanner.GenerationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 2, failed.DayIndex)
}

func TestGenerateAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.PutStock(ctx, "u1", chickenStock()))
	e := FromConfig(testConfig(), Deps{Store: s, Provider: mock.NewProvider()})

	plan, err := e.GeneratePlan(ctx, "u1", mealplanner.MealPlanRequest{MealsPerDay: 1}, 2)
	require.NoError(t, err)
	require.Len(t, plan.Days, 2)
	assert.Equal(t, []string{"Spicy chicken with rice", "Vegetable omelette"}, plan.MealNames())

	stock, err := e.Stock(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, chickenStock(), stock, "generating does not touch stock")

	stock, err = e.ConfirmPlan(ctx, "u1", plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, []mealplanner.StockItem{
		{Name: "chicken", QuantityGrams: 400, NeedToUse: true},
		{Name: "rice", QuantityGrams: 400},
	}, stock)

	history, err := e.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Vegetable omelette", history[0].Name)
	assert.Equal(t, "Spicy chicken with rice", history[1].Name)

	_, err = e.ConfirmPlan(ctx, "u1", plan.PlanID)
	var rerr *mealplanner.ReconciliationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, plan.PlanID, rerr.PlanID)
	assert.ErrorIs(t, err, mealplanner.ErrAlreadyConfirmed)

	next, err := e.GeneratePlan(ctx, "u1", mealplanner.MealPlanRequest{MealsPerDay: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato lentil soup"}, next.MealNames(), "confirmed meals are not planned again")
}

func TestFromConfigWithRetrieval(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Engine.UseRAG = true
	cfg.Engine.CandidateCount = 2

	provider := mock.NewScriptedProvider()
	e := FromConfig(cfg, Deps{
		Store:         memory.New(),
		Provider:      provider,
		Recipes:       corpus.NewFileRecipeState("../artifacts/recipes.json"),
		RecipesFormat: corpus.FormatJSON,
	})

	_, err := e.GeneratePlan(ctx, "u1", mealplanner.MealPlanRequest{
		Ingredients:      chickenStock(),
		AvoidIngredients: []string{"soy sauce"},
		MealsPerDay:      1,
	}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, provider.Calls())

	raw, ok := composer.DataValue(provider.Prompts()[0], composer.KeyCandidates)
	require.True(t, ok, "retrieved recipes are part of the prompt")
	assert.Contains(t, raw, "Chicken caesar salad")
	assert.NotContains(t, raw, "Chicken fried rice", "recipes with avoided ingredients are excluded")
}

func TestConfirmUnknownPlan(t *testing.T) {
	e := New(memory.New(), &fakePlanner{}, Options{})

	_, err := e.ConfirmPlan(context.Background(), "u1", "missing")
	var rerr *mealplanner.ReconciliationError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)

	_, err = e.Plan(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, mealplanner.ErrPlanNotFound)
}

func TestPutStock(t *testing.T) {
	tests := []struct {
		name    string
		items   []mealplanner.StockItem
		want    []mealplanner.StockItem
		wantErr bool
	}{
		{
			name:  "trims names",
			items: []mealplanner.StockItem{{Name: "  rice ", QuantityGrams: 100}},
			want:  []mealplanner.StockItem{{Name: "rice", QuantityGrams: 100}},
		},
		{
			name:  "empty clears",
			items: []mealplanner.StockItem{},
			want:  []mealplanner.StockItem{},
		},
		{
			name:    "blank name",
			items:   []mealplanner.StockItem{{Name: " ", QuantityGrams: 100}},
			wantErr: true,
		},
		{
			name:    "negative quantity",
			items:   []mealplanner.StockItem{{Name: "rice", QuantityGrams: -5}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			require.NoError(t, s.PutStock(ctx, "u1", chickenStock()))
			e := New(s, &fakePlanner{}, Options{})

			err := e.PutStock(ctx, "u1", tt.items)
			got, _ := e.Stock(ctx, "u1")
			if tt.wantErr {
				assert.ErrorIs(t, err, mealplanner.ErrInvalidRequest)
				assert.Equal(t, chickenStock(), got)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestMergeNames(t *testing.T) {
	tests := []struct {
		a, b []string
		want []string
	}{
		{want: []string{}},
		{a: []string{"A", "a"}, want: []string{"A"}},
		{a: []string{"A"}, b: []string{" a ", "B", ""}, want: []string{"A", "B"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mergeNames(tt.a, tt.b))
	}
}
