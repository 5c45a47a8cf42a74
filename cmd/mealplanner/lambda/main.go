package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mealplanner"
	"mealplanner/corpus"
	"mealplanner/engine"
	"mealplanner/llm"
	"mealplanner/notify"
	"mealplanner/store/sqlite"
)

type Params struct {
	Action  string                       `json:"action"`
	UserID  string                       `json:"user_id"`
	Days    int                          `json:"days,omitempty"`
	Request *mealplanner.MealPlanRequest `json:"request,omitempty"`
	PlanID  string                       `json:"plan_id,omitempty"`
	Limit   int                          `json:"limit,omitempty"`
	Stock   []mealplanner.StockItem      `json:"stock,omitempty"`
}

type Results struct {
	Plan    *mealplanner.MealPlanResponse `json:"plan,omitempty"`
	Stock   []mealplanner.StockItem       `json:"stock,omitempty"`
	History []mealplanner.MealHistoryItem `json:"history,omitempty"`
}

type handler struct {
	engine   *engine.Engine
	notifier *notify.Notifier
}

func main() {
	ctx := context.Background()

	cfg, err := mealplanner.LoadConfig()
	if err != nil {
		slog.Error("SETUP: Failed to load config", "error", err)
		return
	}

	otelShutdown, err := mealplanner.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	dbPath := databasePath(cfg.Store.DatabasePath)
	slog.Info("SETUP: Opening store", "path", dbPath)
	db, err := sqlite.Open(dbPath)
	if err != nil {
		slog.Error("SETUP: Failed to open store", "error", err)
		return
	}
	defer db.Close()

	provider, closeProvider, err := llm.New(ctx, cfg.Model, &http.Client{Timeout: cfg.Model.Timeout})
	if err != nil {
		slog.Error("SETUP: Failed to create provider", "error", err)
		return
	}
	defer closeProvider()

	var recipes corpus.RecipeState
	if cfg.Engine.UseRAG {
		if cfg.Engine.ArtifactsS3Bucket == "" || cfg.Engine.ArtifactsRecipesS3Key == "" {
			slog.Error("SETUP: Missing S3 config: ARTIFACTS_S3_BUCKET and ARTIFACTS_RECIPES_S3_KEY must be set when USE_RAG is on")
			return
		}
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to load AWS config", "error", err)
			return
		}
		recipes = corpus.NewS3RecipeState(s3.NewFromConfig(awsCfg), cfg.Engine.ArtifactsS3Bucket, cfg.Engine.ArtifactsRecipesS3Key)
		slog.Info("SETUP: S3 recipe corpus configured", "bucket", cfg.Engine.ArtifactsS3Bucket)
	}

	h := &handler{
		engine: engine.FromConfig(cfg, engine.Deps{
			Store:         db,
			Provider:      provider,
			Recipes:       recipes,
			RecipesFormat: corpus.FormatFromPath(cfg.Engine.ArtifactsRecipesS3Key),
			Logger:        mealplanner.NewStdoutGenerationLogger(),
		}),
	}
	if cfg.Notify.SlackWebhookURL != "" {
		h.notifier = notify.NewNotifier(notify.NewSlackClient(cfg.Notify.SlackWebhookURL, http.DefaultClient), cfg.Notify.SlackChannel)
	}

	lambda.Start(h.handle)
}

// databasePath resolves relative paths under the temp dir, the only
// writable location in the Lambda runtime.
func databasePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(os.TempDir(), path)
}

func (h *handler) handle(ctx context.Context, params Params) (Results, error) {
	if params.UserID == "" {
		return Results{}, errors.New("user_id is required")
	}

	switch params.Action {
	case "generate":
		var req mealplanner.MealPlanRequest
		if params.Request != nil {
			req = *params.Request
		}
		days := params.Days
		if days == 0 {
			days = 1
		}
		plan, err := h.engine.GeneratePlan(ctx, params.UserID, req, days)
		if err != nil {
			var failed *mealplanner.GenerationFailedError
			if errors.As(err, &failed) {
				slog.Error("RESULT: Generation failed", "day_index", failed.DayIndex, "last_error", failed.LastError)
			}
			return Results{}, err
		}
		if err := h.notifier.PlanGenerated(ctx, params.UserID, plan); err != nil {
			slog.Warn("RESULT: Plan generated but notification failed", "error", err)
		}
		return Results{Plan: &plan}, nil

	case "confirm":
		stock, err := h.engine.ConfirmPlan(ctx, params.UserID, params.PlanID)
		if err != nil {
			return Results{}, err
		}
		return Results{Stock: stock}, nil

	case "history":
		items, err := h.engine.History(ctx, params.UserID, params.Limit)
		if err != nil {
			return Results{}, err
		}
		return Results{History: items}, nil

	case "stock":
		if params.Stock != nil {
			if err := h.engine.PutStock(ctx, params.UserID, params.Stock); err != nil {
				return Results{}, err
			}
		}
		stock, err := h.engine.Stock(ctx, params.UserID)
		if err != nil {
			return Results{}, err
		}
		return Results{Stock: stock}, nil
	}

	return Results{}, fmt.Errorf("unknown action %q", params.Action)
}
