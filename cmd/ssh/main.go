package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"tickerpulse/internal/cache"
	"tickerpulse/internal/config"
	"tickerpulse/internal/confluence"
	"tickerpulse/internal/metrics"
	"tickerpulse/internal/provider"
	"tickerpulse/internal/sentiment"
	"tickerpulse/internal/service"
	"tickerpulse/internal/tui"
	"tickerpulse/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	lexicon := sentiment.NewLexiconScorer()
	var textScorer provider.TextScorer = lexicon
	if cfg.OpenAIAPIKey != "" {
		textScorer = sentiment.NewLLMScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel, lexicon, log)
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

	// Read-only process, scores are never persisted from here.
	aggregator := sentiment.NewAggregator(registry, cfg.Sentiment, sourceCache, nil, recorder, tracer, log)
	marketSvc := service.NewMarketService(provider.NewMarketDataProvider(tracer, retries), tracer, log)
	technical := confluence.NewTechnicalCalculator(cfg.Confluence)
	calculator := confluence.NewCalculator(technical, aggregator, flowProvider, cfg.Confluence, nil, recorder, tracer, log)
	confluenceSvc := service.NewConfluenceService(marketSvc, calculator, cfg.Sentiment.DefaultHours, tracer)

	authorized := make(map[string]bool, len(cfg.SSHAuthorizedFingerprints))
	for _, fp := range cfg.SSHAuthorizedFingerprints {
		authorized[fp] = true
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			if !authorized[fingerprint] {
				log.Warn().Str("fingerprint", fingerprint).Str("user", ctx.User()).Msg("SSH auth denied")
				return false
			}
			log.Info().Str("fingerprint", fingerprint).Str("user", ctx.User()).Msg("SSH auth accepted")
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := tui.NewModel(tui.Services{
					Sentiment: aggregator,
					Scores:    confluenceSvc,
					Watchlist: cfg.Watchlist,
					Hours:     cfg.Sentiment.DefaultHours,
					Username:  s.User(),
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SSH server")
	}

	if srv != nil {
		go func() {
			log.Info().Str("addr", addr).Msg("SSH server listening")
			if err := srv.ListenAndServe(); err != nil {
				log.Info().Err(err).Msg("SSH server stopped")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down SSH server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("SSH server shutdown error")
		}
	}

	log.Info().Msg("SSH server exited")
}
