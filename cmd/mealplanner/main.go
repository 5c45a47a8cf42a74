package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"mealplanner"
	"mealplanner/corpus"
	"mealplanner/engine"
	"mealplanner/llm"
	"mealplanner/notify"
	"mealplanner/store/sqlite"
)

const usage = `usage: mealplanner <command> [flags]

commands:
  generate  -user ID [-days N] [-request FILE] [-dump]
  confirm   -user ID -plan PLAN_ID
  history   -user ID [-limit N]
  stock     -user ID [-set FILE]
`

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		slog.Error("RESULT: Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      mealplanner.Config
	engine   *engine.Engine
	notifier *notify.Notifier
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	cfg, err := mealplanner.LoadConfig()
	if err != nil {
		return err
	}

	otelShutdown, err := mealplanner.InitOtel(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	db, err := sqlite.Open(cfg.Store.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, closeProvider, err := llm.New(ctx, cfg.Model, &http.Client{Timeout: cfg.Model.Timeout})
	if err != nil {
		return err
	}
	defer closeProvider()

	logger, cleanup, err := newGenerationLogger(cfg.Model.ResolvedModelID())
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush generation log", "error", err)
		}
	}()

	recipes, format, err := newRecipeState(ctx, cfg.Engine)
	if err != nil {
		return err
	}

	a := &app{
		cfg: cfg,
		engine: engine.FromConfig(cfg, engine.Deps{
			Store:         db,
			Provider:      provider,
			Recipes:       recipes,
			RecipesFormat: format,
			Logger:        logger,
		}),
	}
	if cfg.Notify.SlackWebhookURL != "" {
		a.notifier = notify.NewNotifier(notify.NewSlackClient(cfg.Notify.SlackWebhookURL, http.DefaultClient), cfg.Notify.SlackChannel)
	}

	ctx, span := otel.Tracer(mealplanner.TracerNameEngine).Start(ctx, "mealplanner."+command, trace.WithAttributes(
		attribute.String("model.provider", cfg.Model.ProviderName()),
		attribute.String("model.id", cfg.Model.ResolvedModelID()),
	))
	defer span.End()

	switch command {
	case "generate":
		return a.generate(ctx, args, out)
	case "confirm":
		return a.confirm(ctx, args, out)
	case "history":
		return a.history(ctx, args, out)
	case "stock":
		return a.stock(ctx, args, out)
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func (a *app) generate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	days := fs.Int("days", 1, "number of days to plan")
	reqPath := fs.String("request", "", "JSON or YAML request file")
	dump := fs.Bool("dump", false, "dump the request and plan to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	var req mealplanner.MealPlanRequest
	if *reqPath != "" {
		if err := decodeFile(*reqPath, &req); err != nil {
			return fmt.Errorf("read request: %w", err)
		}
	}
	if *dump {
		mealplanner.Fdump(os.Stderr, req)
	}

	plan, err := a.engine.GeneratePlan(ctx, *user, req, *days)
	if err != nil {
		var failed *mealplanner.GenerationFailedError
		if errors.As(err, &failed) {
			slog.Error("RESULT: Generation failed", "day_index", failed.DayIndex, "last_error", failed.LastError)
			slog.Debug("RESULT: Failed request", "request", mealplanner.Sdump(req))
		}
		return err
	}
	if *dump {
		mealplanner.Fdump(os.Stderr, plan)
	}

	if err := a.notifier.PlanGenerated(ctx, *user, plan); err != nil {
		slog.Warn("RESULT: Plan generated but notification failed", "error", err)
	}
	return writeJSON(out, plan)
}

func (a *app) confirm(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("confirm", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	planID := fs.String("plan", "", "plan id returned by generate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *planID == "" {
		return errors.New("-user and -plan are required")
	}

	stock, err := a.engine.ConfirmPlan(ctx, *user, *planID)
	if err != nil {
		return err
	}
	return writeJSON(out, stock)
}

func (a *app) history(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	limit := fs.Int("limit", a.cfg.Engine.PastMealsLimit, "maximum number of meals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	items, err := a.engine.History(ctx, *user, *limit)
	if err != nil {
		return err
	}
	return writeJSON(out, items)
}

func (a *app) stock(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stock", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	set := fs.String("set", "", "JSON or YAML file replacing the stock")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	if *set != "" {
		var items []mealplanner.StockItem
		if err := decodeFile(*set, &items); err != nil {
			return fmt.Errorf("read stock: %w", err)
		}
		if err := a.engine.PutStock(ctx, *user, items); err != nil {
			return err
		}
		slog.Info("RESULT: Stock replaced", "user_id", *user, "items", len(items))
	}

	items, err := a.engine.Stock(ctx, *user)
	if err != nil {
		return err
	}
	return writeJSON(out, items)
}

func newRecipeState(ctx context.Context, cfg mealplanner.EngineConfig) (corpus.RecipeState, corpus.Format, error) {
	if !cfg.UseRAG {
		return nil, corpus.FormatJSON, nil
	}
	if cfg.ArtifactsS3Bucket != "" && cfg.ArtifactsRecipesS3Key != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load AWS config: %w", err)
		}
		slog.Info("SETUP: Using S3 recipe corpus", "bucket", cfg.ArtifactsS3Bucket, "key", cfg.ArtifactsRecipesS3Key)
		return corpus.NewS3RecipeState(s3.NewFromConfig(awsCfg), cfg.ArtifactsS3Bucket, cfg.ArtifactsRecipesS3Key),
			corpus.FormatFromPath(cfg.ArtifactsRecipesS3Key), nil
	}
	slog.Info("SETUP: Using file recipe corpus", "path", cfg.ArtifactsRecipesPath)
	return corpus.NewFileRecipeState(cfg.ArtifactsRecipesPath), corpus.FormatFromPath(cfg.ArtifactsRecipesPath), nil
}

func newGenerationLogger(modelID string) (mealplanner.GenerationLogger, func() error, error) {
	logFilePath := mealplanner.NewGenerationLogFilePath(modelID)
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := mealplanner.NewFileGenerationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
