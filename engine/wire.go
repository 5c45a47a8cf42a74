package engine

import (
	"log/slog"

	"mealplanner"
	"mealplanner/corpus"
	"mealplanner/llm"
	"mealplanner/planner"
	"mealplanner/retrieval"
	"mealplanner/store"
)

// Deps are the collaborators a binary builds before wiring an Engine.
type Deps struct {
	Store    store.Store
	Provider mealplanner.Provider

	// Recipes is the retrieval corpus source. Nil disables retrieval.
	Recipes       corpus.RecipeState
	RecipesFormat corpus.Format
	Logger        mealplanner.GenerationLogger
}

// FromConfig wires the planner, retriever and engine from configuration.
func FromConfig(cfg mealplanner.Config, deps Deps) *Engine {
	var r *retrieval.Retriever
	if cfg.Engine.UseRAG && deps.Recipes != nil {
		r = retrieval.New(corpus.New(deps.Recipes, deps.RecipesFormat), retrieval.Options{
			Enabled: true,
			K:       cfg.Engine.CandidateCount,
		})
	} else if cfg.Engine.UseRAG {
		slog.Warn("ENGINE: Retrieval enabled but no recipe corpus configured")
	}

	maxRepairs := cfg.Engine.MaxRepairs
	if maxRepairs == 0 {
		maxRepairs = -1
	}

	p := planner.New(deps.Provider, r, planner.Options{
		MaxRepairs:                   maxRepairs,
		MaxProviderAttempts:          cfg.Engine.MaxProviderAttempts,
		BackoffBase:                  cfg.Engine.BackoffBase,
		BackoffMax:                   cfg.Engine.BackoffMax,
		AcceptRepetitionOnExhaustion: cfg.Engine.AcceptRepetitionOnExhaustion,
		Generate:                     llm.GenerateOptions(cfg.Model, ""),
		Logger:                       deps.Logger,
	})

	return New(deps.Store, p, Options{
		PastMealsLimit: cfg.Engine.PastMealsLimit,
		MaxDays:        cfg.Engine.MaxDays,
	})
}
