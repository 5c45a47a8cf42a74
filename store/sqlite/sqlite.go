// Package sqlite is the durable Store backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"mealplanner"
	"mealplanner/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open creates the database directory if needed, applies migrations and
// opens the database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := RunMigrations(path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time keeps confirmations serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// RunMigrations applies the embedded migrations to the database at path.
func RunMigrations(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("STORE: Database migrations applied", "path", path)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetStock(ctx context.Context, userID string) ([]mealplanner.StockItem, error) {
	return getStock(ctx, s.db, userID)
}

func getStock(ctx context.Context, q querier, userID string) ([]mealplanner.StockItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, quantity_grams, need_to_use FROM stock_items WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	items := []mealplanner.StockItem{}
	for rows.Next() {
		var item mealplanner.StockItem
		if err := rows.Scan(&item.Name, &item.QuantityGrams, &item.NeedToUse); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) PutStock(ctx context.Context, userID string, items []mealplanner.StockItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := putStock(ctx, tx, userID, items); err != nil {
		return err
	}
	return tx.Commit()
}

func putStock(ctx context.Context, q querier, userID string, items []mealplanner.StockItem) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM stock_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear stock: %w", err)
	}
	for i, item := range items {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO stock_items (user_id, position, name, quantity_grams, need_to_use) VALUES (?, ?, ?, ?, ?)`,
			userID, i, item.Name, item.QuantityGrams, item.NeedToUse); err != nil {
			return fmt.Errorf("insert stock item %q: %w", item.Name, err)
		}
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, items []mealplanner.MealHistoryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := appendHistory(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit()
}

func appendHistory(ctx context.Context, q querier, items []mealplanner.MealHistoryItem) error {
	for _, item := range items {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO meal_entries (user_id, plan_id, day_index, meal_index, name, meal_type, meal_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.UserID, item.PlanID, item.DayIndex, item.MealIndex, item.Name, item.MealType, item.Meal,
			item.CreatedAt.UTC().UnixNano()); err != nil {
			return fmt.Errorf("insert history item %s/%d/%d: %w", item.PlanID, item.DayIndex, item.MealIndex, err)
		}
	}
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
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT plan_id, day_index, meal_index, name, meal_type, meal_json, created_at
		 FROM meal_entries WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []mealplanner.MealHistoryItem
	for rows.Next() {
		item := mealplanner.MealHistoryItem{UserID: userID}
		var created int64
		if err := rows.Scan(&item.PlanID, &item.DayIndex, &item.MealIndex, &item.Name, &item.MealType, &item.Meal, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		item.CreatedAt = time.Unix(0, created).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) SavePlan(ctx context.Context, userID string, plan mealplanner.MealPlanResponse) error {
	b, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	created := plan.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO meal_plans (plan_id, user_id, plan_json, created_at) VALUES (?, ?, ?, ?)`,
		plan.PlanID, userID, string(b), created.UTC().UnixNano()); err != nil {
		return fmt.Errorf("insert plan %s: %w", plan.PlanID, err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, userID, planID string) (mealplanner.MealPlanResponse, error) {
	plan, _, err := getPlan(ctx, s.db, userID, planID)
	return plan, err
}

func getPlan(ctx context.Context, q querier, userID, planID string) (mealplanner.MealPlanResponse, bool, error) {
	var (
		raw       string
		confirmed sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT plan_json, confirmed_at FROM meal_plans WHERE plan_id = ? AND user_id = ?`, planID, userID).
		Scan(&raw, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return mealplanner.MealPlanResponse{}, false, mealplanner.ErrPlanNotFound
	}
	if err != nil {
		return mealplanner.MealPlanResponse{}, false, fmt.Errorf("query plan %s: %w", planID, err)
	}

	var plan mealplanner.MealPlanResponse
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return mealplanner.MealPlanResponse{}, false, fmt.Errorf("decode plan %s: %w", planID, err)
	}
	return plan, confirmed.Valid, nil
}

func (s *Store) Confirm(ctx context.Context, userID, planID string, apply store.ConfirmFunc) ([]mealplanner.StockItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	plan, confirmed, err := getPlan(ctx, tx, userID, planID)
	if err != nil {
		return nil, err
	}
	if confirmed {
		return nil, mealplanner.ErrAlreadyConfirmed
	}

	stock, err := getStock(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	updated, history, err := apply(plan, stock)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE meal_plans SET confirmed_at = ? WHERE plan_id = ? AND user_id = ? AND confirmed_at IS NULL`,
		s.now().UTC().UnixNano(), planID, userID)
	if err != nil {
		return nil, fmt.Errorf("mark plan %s confirmed: %w", planID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, mealplanner.ErrAlreadyConfirmed
	}

	if err := putStock(ctx, tx, userID, updated); err != nil {
		return nil, err
	}
	if err := appendHistory(ctx, tx, history); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirmation: %w", err)
	}

	slog.Info("STORE: Plan confirmed", "plan_id", planID, "stock_items", len(updated), "history_items", len(history))
	return updated, nil
}
