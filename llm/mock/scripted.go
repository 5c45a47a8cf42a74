package mock

import (
	"context"
	"errors"
	"sync"

	"mealplanner"
)

// Step is one scripted reply: either Output or Err.
type Step struct {
	Output string
	Err    error
}

// ScriptedProvider replays a fixed sequence of replies and records the
// prompts it was given. Once the script runs out it falls back to the
// deterministic Provider.
type ScriptedProvider struct {
	mu       sync.Mutex
	steps    []Step
	prompts  []string
	fallback *Provider
}

func NewScriptedProvider(steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{steps: steps, fallback: NewProvider()}
}

func (s *ScriptedProvider) Name() string { return "scripted" }

func (s *ScriptedProvider) Generate(ctx context.Context, prompt string, opts mealplanner.GenerateOptions) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return s.fallback.Generate(ctx, prompt, opts)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	return step.Output, step.Err
}

// Calls returns how many times Generate was called.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns a copy of every prompt received, in order.
func (s *ScriptedProvider) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// TransientStep is a rate-limit failure.
func TransientStep() Step {
	return Step{Err: mealplanner.NewTransientError("scripted", 429, errors.New("rate limited"))}
}

// FatalStep is an authentication failure.
func FatalStep() Step {
	return Step{Err: mealplanner.NewFatalError("scripted", 401, errors.New("unauthorized"))}
}
