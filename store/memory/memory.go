// Package memory is an in-process Store used by tests and mock mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mealplanner"
	"mealplanner/store"
)

type planRecord struct {
	plan        mealplanner.MealPlanResponse
	confirmedAt *time.Time
}

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	stock   map[string][]mealplanner.StockItem
	plans   map[string]map[string]*planRecord
	history []mealplanner.MealHistoryItem
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:   time.Now,
		stock: map[string][]mealplanner.StockItem{},
		plans: map[string]map[string]*planRecord{},
	}
}

func (s *Store) GetStock(ctx context.Context, userID string) ([]mealplanner.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mealplanner.StockItem(nil), s.stock[userID]...), nil
}

func (s *Store) PutStock(ctx context.Context, userID string, items []mealplanner.StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[userID] = append([]mealplanner.StockItem(nil), items...)
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, items []mealplanner.MealHistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, items...)
	return nil
}

func (s *Store) GetPastMealNames(ctx context.Context, userID string, limit int) ([]string, error) {
	items, err := s.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names, nil
}

func (s *Store) History(ctx context.Context, userID string, limit int) ([]mealplanner.MealHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	var out []mealplanner.MealHistoryItem
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].UserID == userID {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *Store) SavePlan(ctx context.Context, userID string, plan mealplanner.MealPlanResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plans[userID] == nil {
		s.plans[userID] = map[string]*planRecord{}
	}
	if _, ok := s.plans[userID][plan.PlanID]; ok {
		return fmt.Errorf("plan %s already saved", plan.PlanID)
	}
	s.plans[userID][plan.PlanID] = &planRecord{plan: plan}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, userID, planID string) (mealplanner.MealPlanResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.plans[userID][planID]
	if !ok {
		return mealplanner.MealPlanResponse{}, mealplanner.ErrPlanNotFound
	}
	return rec.plan, nil
}

func (s *Store) Confirm(ctx context.Context, userID, planID string, apply store.ConfirmFunc) ([]mealplanner.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.plans[userID][planID]
	if !ok {
		return nil, mealplanner.ErrPlanNotFound
	}
	if rec.confirmedAt != nil {
		return nil, mealplanner.ErrAlreadyConfirmed
	}

	stock, history, err := apply(rec.plan, append([]mealplanner.StockItem(nil), s.stock[userID]...))
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec.confirmedAt = &now
	s.stock[userID] = stock
	s.history = append(s.history, history...)
	return append([]mealplanner.StockItem(nil), stock...), nil
}
