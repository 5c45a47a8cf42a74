package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mealplanner"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the decoder from a file or object key extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Recipe is one record of the static recipe corpus.
type Recipe struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string         `json:"title" yaml:"title"`
	Ingredients IngredientList `json:"ingredients" yaml:"ingredients"`
	Steps       []string       `json:"steps,omitempty" yaml:"steps,omitempty"`
	Cuisine     string         `json:"cuisine,omitempty" yaml:"cuisine,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Diets       []string       `json:"diets,omitempty" yaml:"diets,omitempty"`
}

// IngredientList accepts either a list of names or a single
// semicolon-separated string.
type IngredientList []string

func (l *IngredientList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = cleanNames(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("ingredients must be a list or a ';' separated string: %w", err)
	}
	*l = cleanNames(strings.Split(joined, ";"))
	return nil
}

func (l *IngredientList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = cleanNames(list)
	case yaml.ScalarNode:
		*l = cleanNames(strings.Split(value.Value, ";"))
	default:
		return fmt.Errorf("ingredients must be a list or a ';' separated string (line %d)", value.Line)
	}
	return nil
}

func cleanNames(in []string) IngredientList {
	out := make(IngredientList, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Decode reads a corpus that is either a bare list of recipes or an object
// with a "recipes" list.
func Decode(data []byte, format Format) ([]Recipe, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var wrapped struct {
		Recipes []Recipe `json:"recipes" yaml:"recipes"`
	}
	var list []Recipe

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse yaml recipes: %w", err)
		}
	default:
		if data[0] == '[' {
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("parse json recipes: %w", err)
			}
			return list, nil
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse json recipes: %w", err)
		}
	}
	return wrapped.Recipes, nil
}

// FilterHints narrow a corpus query.
type FilterHints struct {
	AvoidIngredients []string
}

// Corpus caches the decoded recipes of a RecipeState. A failed load is not
// cached so a later query can succeed.
type Corpus struct {
	state  RecipeState
	format Format

	mu      sync.Mutex
	recipes []Recipe
	loaded  bool
}

func New(state RecipeState, format Format) *Corpus {
	return &Corpus{state: state, format: format}
}

// Recipes returns every recipe in insertion order.
func (c *Corpus) Recipes(ctx context.Context) ([]Recipe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.recipes, nil
	}

	b, err := c.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	recipes, err := Decode(b, c.format)
	if err != nil {
		return nil, err
	}

	slog.Info("CORPUS: Recipes loaded", "recipes_count", len(recipes))
	c.recipes = recipes
	c.loaded = true
	return c.recipes, nil
}

// QueryCandidates returns the recipes that use none of the avoided
// ingredients, preserving corpus order.
func (c *Corpus) QueryCandidates(ctx context.Context, hints FilterHints) ([]Recipe, error) {
	recipes, err := c.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	if len(hints.AvoidIngredients) == 0 {
		return recipes, nil
	}

	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if !r.usesAny(hints.AvoidIngredients) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (r Recipe) usesAny(names []string) bool {
	for _, ing := range r.Ingredients {
		for _, n := range names {
			if NamesMatch(ing, n) {
				return true
			}
		}
	}
	return false
}

// NamesMatch reports whether two ingredient names refer to the same thing:
// equal after normalization, or one is a whole-word run inside the other
// ("chicken" matches "chicken breast").
func NamesMatch(a, b string) bool {
	na, nb := mealplanner.NormalizeName(a), mealplanner.NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return containsWords(na, nb) || containsWords(nb, na)
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
