package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/config"
	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
	"github.com/kirillkom/mailbills-assistant/internal/core/usecase"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/cache"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/chat/natschat"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/filetypes"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/interpret/httpinterp"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/ocr/httpocr"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/ocr/pdftext"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/photo"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/mailbills-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Classifier      ports.FileClassifier
	Pipeline        *usecase.PipelineOrchestrator
	Exporter        ports.RunExporter
	HTTPMetrics     *metrics.HTTPServerMetrics
	PipelineMetrics *metrics.PipelineMetrics

	closers []func()
}

// NewClassifier builds only the file classifier, for tools that never call
// remote services.
func NewClassifier(cfg config.Config) (ports.FileClassifier, error) {
	types, err := filetypes.Load(cfg.FileTypesPath)
	if err != nil {
		return nil, fmt.Errorf("load file types: %w", err)
	}
	table, err := types.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile file types: %w", err)
	}
	return usecase.NewFileClassifier(table), nil
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	app.Classifier = classifier

	app.HTTPMetrics = metrics.NewHTTPServerMetrics("mailbills-api")
	app.PipelineMetrics = metrics.NewPipelineMetrics(app.HTTPMetrics.Registry())

	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}, logger)

	extractor, err := app.buildExtractor(ctx, executor)
	if err != nil {
		app.Close()
		return nil, err
	}

	usage, err := app.buildUsageGate(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var channel ports.ChatChannel
	if cfg.NATSURL != "" {
		ch, err := natschat.Connect(cfg.NATSURL, cfg.NATSChatSubject, natschat.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			logger.Warn("chat_channel_unavailable", "error", err)
		} else {
			channel = ch
			app.closers = append(app.closers, ch.Close)
		}
	}

	var translator ports.Translator
	if cfg.TranslateURL != "" {
		translator = httpinterp.NewTranslator(cfg.TranslateURL, &http.Client{Timeout: 60 * time.Second}, executor, logger)
	}

	app.Pipeline = usecase.NewPipelineOrchestrator(usecase.PipelineDeps{
		Classifier:  classifier,
		Normalizer:  photo.NewNormalizer(cfg.JPEGQuality, logger),
		TextReader:  plaintext.NewExtractor(),
		Extractor:   extractor,
		Interpreter: httpinterp.New(cfg.InterpretURL, &http.Client{Timeout: 120 * time.Second}, executor, logger),
		Translator:  translator,
		Presenter:   usecase.NewClarificationPresenter(channel, logger),
		Batcher:     chunking.NewBatcher(cfg.InterpretMaxChars, usecase.DefaultPageBreak),
		Usage:       usage,
		Observer:    app.PipelineMetrics,
		Logger:      logger,
	}, usecase.PipelineOptions{
		DefaultTargetLang: cfg.DefaultTargetLang,
		DefaultUILang:     cfg.UILang,
	})
	app.Exporter = xlsx.NewExporter(logger)

	return app, nil
}

// buildExtractor stacks the OCR client behind the optional PDF text layer
// reader and the result cache.
func (a *App) buildExtractor(ctx context.Context, executor *resilience.Executor) (ports.TextExtractor, error) {
	cfg := a.Config

	var extractor ports.TextExtractor = httpocr.New(cfg.OCRBaseURL, httpocr.Options{
		Mode:         httpocr.Mode(cfg.OCRMode),
		SyncPath:     cfg.OCRSyncPath,
		StartPath:    cfg.OCRStartPath,
		StatusPath:   cfg.OCRStatusPath,
		PollInterval: cfg.OCRPollInterval,
		PollTimeout:  cfg.OCRPollTimeout,
		Executor:     executor,
		Logger:       a.Logger,
		OnPoll:       a.PipelineMetrics.RecordOCRPoll,
	})
	if cfg.OCRPDFTextLayer {
		extractor = pdftext.NewExtractor(extractor, cfg.OCRPDFMinChars, a.Logger)
	}
	if cfg.CacheTTL <= 0 {
		return extractor, nil
	}

	var store ports.ExtractionCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, "")
		if err != nil {
			a.Logger.Warn("redis_cache_unavailable", "error", err)
		} else {
			store = redisCache
			a.closers = append(a.closers, func() { _ = redisCache.Close() })
		}
	}
	if store == nil {
		store = cache.NewMemoryCache(cfg.CacheMaxItems)
	}
	return cache.NewExtractor(extractor, store, cfg.CacheTTL, a.Logger), nil
}

// buildUsageGate returns nil when free runs are unlimited.
func (a *App) buildUsageGate(ctx context.Context) (*usecase.UsageGate, error) {
	cfg := a.Config
	if cfg.FreeRuns <= 0 {
		return nil, nil
	}
	if cfg.PostgresDSN == "" {
		return usecase.NewUsageGate(memory.NewUsageRepository(), cfg.FreeRuns, a.Logger), nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	repo := postgres.NewUsageRepository(db)
	if err := ensureSchema(ctx, db, repo); err != nil {
		return nil, err
	}
	return usecase.NewUsageGate(repo, cfg.FreeRuns, a.Logger), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, repo *postgres.UsageRepository) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return domain.WrapError(domain.ErrTransport, "ping postgres", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
