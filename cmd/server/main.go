package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickerpulse/internal/advisor"
	"tickerpulse/internal/bot"
	"tickerpulse/internal/cache"
	"tickerpulse/internal/config"
	"tickerpulse/internal/confluence"
	"tickerpulse/internal/db"
	"tickerpulse/internal/handler"
	"tickerpulse/internal/job"
	"tickerpulse/internal/metrics"
	"tickerpulse/internal/ml/inference"
	"tickerpulse/internal/ml/outcome"
	mlregistry "tickerpulse/internal/ml/registry"
	"tickerpulse/internal/ml/training"
	"tickerpulse/internal/provider"
	"tickerpulse/internal/repository"
	"tickerpulse/internal/sentiment"
	"tickerpulse/internal/service"
	"tickerpulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "tickerpulse/docs"
)

const outcomeHorizon = 24 * time.Hour

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newBotFunc             = bot.NewBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// reloadingTrainer refreshes the inference cache after a promotion so new
// model versions serve without a restart.
type reloadingTrainer struct {
	trainer   *training.Service
	inference *inference.Service
}

func (t *reloadingTrainer) RunTraining(ctx context.Context) ([]training.ModelTrainResult, error) {
	results, err := t.trainer.RunTraining(ctx)
	for _, r := range results {
		if r.Promoted {
			t.inference.Reload()
			break
		}
	}
	return results, err
}

// @title           TickerPulse API
// @version         1.0
// @description     Sentiment aggregation and confluence scoring for equities.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if pool == nil {
		log.Warn().Msg("DATABASE_URL not set, persistence disabled")
	}

	var sourceCache cache.SourceCache
	redisClient, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-process cache")
		sourceCache = cache.NewMemorySourceCache()
	} else {
		sourceCache = cache.NewRedisSourceCache(redisClient, log)
	}

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	recorder := metrics.New()

	// Text scorer: LLM with lexicon fallback, lexicon alone without a key.
	lexicon := sentiment.NewLexiconScorer()
	var textScorer provider.TextScorer = lexicon
	if cfg.OpenAIAPIKey != "" {
		textScorer = sentiment.NewLLMScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel, lexicon, log)
		log.Info().Str("model", cfg.OpenAIModel).Msg("LLM text scoring enabled")
	}

	retries := cfg.Sentiment.ProviderMaxRetries
	flowProvider := provider.NewOptionsFlowProvider(cfg.FlowAPIBaseURL, cfg.FlowAPIKey, tracer, retries)
	registry := provider.NewRegistry(log,
		provider.NewTwitterProvider(cfg.TwitterBearerToken, textScorer, tracer, retries),
		provider.NewRedditProvider(cfg.RedditSubs, textScorer, tracer, log, retries),
		provider.NewStockTwitsProvider(textScorer, tracer, retries),
		provider.NewNewsProvider(cfg.NewsFeedURL, textScorer, tracer),
		provider.NewTrendsProvider(tracer, retries),
		provider.NewAnalystProvider(cfg.FinnhubAPIKey, tracer, retries),
		provider.NewInsiderProvider(cfg.FinnhubAPIKey, tracer, retries),
		provider.NewDarkPoolProvider(cfg.FlowAPIBaseURL, cfg.FlowAPIKey, tracer, retries),
		flowProvider,
	)

	var sentimentStore sentiment.Store
	var snapshotStore confluence.SnapshotStore
	var confluenceRepo *repository.ConfluenceRepository
	if pool != nil {
		sentimentStore = repository.NewSentimentRepository(pool, tracer)
		confluenceRepo = repository.NewConfluenceRepository(pool, tracer)
		snapshotStore = confluenceRepo
	}

	aggregator := sentiment.NewAggregator(registry, cfg.Sentiment, sourceCache, sentimentStore, recorder, tracer, log)

	marketSvc := service.NewMarketService(provider.NewMarketDataProvider(tracer, retries), tracer, log)
	technical := confluence.NewTechnicalCalculator(cfg.Confluence)
	calculator := confluence.NewCalculator(technical, aggregator, flowProvider, cfg.Confluence, snapshotStore, recorder, tracer, log)
	confluenceSvc := service.NewConfluenceService(marketSvc, calculator, cfg.Sentiment.DefaultHours, tracer)

	var advisorSvc *advisor.Service
	if cfg.OpenAIAPIKey != "" {
		advisorSvc = advisor.NewService(tracer, advisor.NewOpenAIClient(cfg.OpenAIAPIKey),
			aggregator, confluenceSvc, cfg.OpenAIModel, log)
	}

	// ML pipeline needs persisted snapshots to learn from.
	var forecastSvc *inference.Service
	if cfg.MLEnabled && pool != nil {
		modelRepo := mlregistry.New(pool, tracer)
		forecastSvc = inference.NewService(modelRepo, tracer, log)

		trainer := &reloadingTrainer{
			trainer: training.NewService(confluenceRepo, modelRepo,
				training.Config{MinTrainSamples: cfg.MLMinTrainSamples}, tracer, log),
			inference: forecastSvc,
		}
		go job.NewTrainingJob(trainer, cfg.MLTrainHourUTC, tracer, log).Start(ctx)

		resolver := outcome.NewResolver(confluenceRepo, marketSvc, outcomeHorizon, tracer, log)
		go job.NewOutcomeResolverJob(resolver, 0, 0, tracer, log).Start(ctx)
	}

	var notifier job.Notifier
	var briefer bot.Briefer
	if advisorSvc != nil {
		briefer = advisorSvc
	}
	var forecaster bot.Forecaster
	if forecastSvc != nil {
		forecaster = forecastSvc
	}
	if cfg.TelegramBotToken != "" {
		tgBot, err := newBotFunc(cfg.TelegramBotToken, cfg.TelegramChatID, aggregator, confluenceSvc, briefer, forecaster, log)
		if err != nil {
			log.Error().Err(err).Msg("telegram bot disabled")
		} else {
			go tgBot.Start()
			defer tgBot.Stop()
			notifier = tgBot
		}
	}

	scanJob := job.NewScanJob(confluenceSvc, notifier, cfg.Watchlist, cfg.Sentiment.DefaultHours, cfg.ScanIntervalSecs, tracer, log)
	go scanJob.Start(ctx)

	h := handler.New(tracer, aggregator, confluenceSvc, scanJob, registry)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("tickerpulse"))
	r.Use(handler.RequestLogger(log))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
