package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"mealplanner"
	"mealplanner/corpus"
)

const DefaultK = 4

// Weights scale each component of the similarity score.
type Weights struct {
	Ingredient float64
	Diet       float64
	Taste      float64
}

var DefaultWeights = Weights{Ingredient: 2, Diet: 3, Taste: 1}

// Query is what retrieval knows about the request.
type Query struct {
	StockNames       []string
	Diet             mealplanner.DietType
	TastePreferences []string
	AvoidIngredients []string
}

// QueryFor builds a query from a request and the stock currently available.
// Depleted items do not count towards overlap.
func QueryFor(req mealplanner.MealPlanRequest, stock []mealplanner.StockItem) Query {
	q := Query{
		Diet:             req.DietType,
		TastePreferences: req.TastePreferences,
		AvoidIngredients: req.AvoidIngredients,
	}
	for _, item := range stock {
		if item.QuantityGrams > 0 {
			q.StockNames = append(q.StockNames, item.Name)
		}
	}
	return q
}

type candidateSource interface {
	QueryCandidates(ctx context.Context, hints corpus.FilterHints) ([]corpus.Recipe, error)
}

// Scored is a recipe with its similarity score.
type Scored struct {
	Recipe corpus.Recipe
	Score  float64
}

type Options struct {
	Enabled bool
	K       int
	Weights *Weights
}

// Retriever selects the top-K recipes for a query.
type Retriever struct {
	source  candidateSource
	enabled bool
	k       int
	weights Weights
}

func New(source candidateSource, opts Options) *Retriever {
	r := &Retriever{
		source:  source,
		enabled: opts.Enabled,
		k:       opts.K,
		weights: DefaultWeights,
	}
	if r.k <= 0 {
		r.k = DefaultK
	}
	if opts.Weights != nil {
		r.weights = *opts.Weights
	}
	return r
}

// Retrieve returns at most K recipes with a positive score, best first, ties
// kept in corpus order. It never fails: a disabled retriever or an unavailable
// corpus yields no candidates.
func (r *Retriever) Retrieve(ctx context.Context, q Query) []corpus.Recipe {
	if r == nil || !r.enabled || r.source == nil {
		return nil
	}

	recipes, err := r.source.QueryCandidates(ctx, corpus.FilterHints{AvoidIngredients: q.AvoidIngredients})
	if err != nil {
		slog.Warn("RETRIEVAL: Corpus unavailable, continuing without candidates", "error", err)
		return nil
	}

	top := TopK(recipes, q, r.weights, r.k)
	out := make([]corpus.Recipe, len(top))
	for i, s := range top {
		out[i] = s.Recipe
	}

	slog.Info("RETRIEVAL: Candidates selected", "corpus_size", len(recipes), "selected", len(out))
	return out
}

// TopK scores every recipe and keeps the k best with a positive score.
func TopK(recipes []corpus.Recipe, q Query, w Weights, k int) []Scored {
	scored := make([]Scored, 0, len(recipes))
	for _, rec := range recipes {
		if s := Score(rec, q, w); s > 0 {
			scored = append(scored, Scored{Recipe: rec, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Score is the weighted count of stock ingredient overlap, diet tag match and
// taste keyword matches.
func Score(rec corpus.Recipe, q Query, w Weights) float64 {
	var overlap int
	for _, ing := range rec.Ingredients {
		for _, name := range q.StockNames {
			if corpus.NamesMatch(ing, name) {
				overlap++
				break
			}
		}
	}

	var diet int
	if q.Diet != "" {
		want := tagKey(string(q.Diet))
		for _, tag := range append(append([]string{}, rec.Diets...), rec.Tags...) {
			if tagKey(tag) == want {
				diet = 1
				break
			}
		}
	}

	var taste int
	tags := append([]string{rec.Cuisine}, rec.Tags...)
	for _, pref := range q.TastePreferences {
		p := tagKey(pref)
		if p == "" {
			continue
		}
		for _, tag := range tags {
			if tagKey(tag) == p {
				taste++
				break
			}
		}
	}

	return w.Ingredient*float64(overlap) + w.Diet*float64(diet) + w.Taste*float64(taste)
}

// tagKey folds case, separators and surrounding space so "High-Protein",
// "high_protein" and "high protein" compare equal.
func tagKey(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return mealplanner.NormalizeName(s)
}
