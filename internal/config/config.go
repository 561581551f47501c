package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"tickerpulse/internal/domain"

	"github.com/go-playground/validator/v10"
)

// SourceWeights holds the configured base weight per sentiment source.
// Defaults are the canonical set; each entry can be overridden with
// SENTIMENT_WEIGHT_<SOURCE> (e.g. SENTIMENT_WEIGHT_DARK_POOL=1.2).
type SourceWeights map[string]float64

func defaultSourceWeights() SourceWeights {
	return SourceWeights{
		domain.SourceTwitter:     1.0,
		domain.SourceReddit:      1.0,
		domain.SourceStockTwits:  0.8,
		domain.SourceNews:        1.2,
		domain.SourceTrends:      0.5,
		domain.SourceAnalyst:     1.5,
		domain.SourceInsider:     1.2,
		domain.SourceDarkPool:    1.5,
		domain.SourceOptionsFlow: 1.3,
	}
}

type Config struct {
	HTTPPort int    `validate:"gt=0,lt=65536"`
	APIKey   string `validate:"-"`

	SSHPort                   int `validate:"gt=0,lt=65536"`
	SSHHostKeyPath            string
	SSHAuthorizedFingerprints []string

	DatabaseURL string
	RedisURL    string

	TelegramBotToken string
	TelegramChatID   int64

	OpenAIAPIKey string
	OpenAIModel  string

	TwitterBearerToken string
	FinnhubAPIKey      string
	FlowAPIBaseURL     string
	FlowAPIKey         string
	NewsFeedURL        string
	RedditSubs         []string

	Watchlist        []string
	ScanIntervalSecs int `validate:"gt=0"`

	Sentiment  SentimentConfig
	Confluence ConfluenceConfig

	MLEnabled         bool
	MLTrainHourUTC    int `validate:"gte=0,lte=23"`
	MLMinTrainSamples int `validate:"gt=0"`
}

// SentimentConfig carries every aggregator knob. All values are validated at
// load time so a misconfigured deployment fails before it can score anything.
type SentimentConfig struct {
	Weights             SourceWeights `validate:"-"`
	MinConfidence       float64       `validate:"gte=0,lte=1"`
	DivergenceThreshold float64       `validate:"gte=0,lte=1"`
	DecayHalfLifeHours  float64       `validate:"gt=0"`
	MinProviders        int           `validate:"gte=1"`
	DefaultHours        int           `validate:"gte=1,lte=168"`
	CacheTTLSecs        int           `validate:"gt=0"`
	ProviderCacheSecs   int           `validate:"gte=60,lte=3600"`
	ProviderTimeoutSecs int           `validate:"gt=0"`
	ProviderMaxRetries  int           `validate:"gte=1,lte=10"`
	PersistToDB         bool
}

type ConfluenceConfig struct {
	WeightTechnical   float64 `validate:"gte=0,lte=1"`
	WeightSentiment   float64 `validate:"gte=0,lte=1"`
	WeightOptionsFlow float64 `validate:"gte=0,lte=1"`
	MinThreshold      float64 `validate:"gte=0,lte=1"`
	HighThreshold     float64 `validate:"gte=0,lte=1"`
	CacheTTLSecs      int     `validate:"gt=0"`
	UseSentiment      bool
	UseOptionsFlow    bool

	WeightSMATrend  float64 `validate:"gte=0,lte=1"`
	WeightRSI       float64 `validate:"gte=0,lte=1"`
	WeightVolume    float64 `validate:"gte=0,lte=1"`
	WeightBollinger float64 `validate:"gte=0,lte=1"`
}

// Load reads configuration from the environment and validates it. Any value
// outside its declared range is a hard error: scores must never be produced
// from a half-valid configuration.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:                  envInt("HTTP_PORT", 8080),
		APIKey:                    os.Getenv("API_KEY"),
		SSHPort:                   envInt("SSH_PORT", 23234),
		SSHHostKeyPath:            envString("SSH_HOST_KEY_PATH", ".ssh/tickerpulse_ed25519"),
		SSHAuthorizedFingerprints: envList("SSH_AUTHORIZED_FINGERPRINTS", nil),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		RedisURL:                  envString("REDIS_URL", "localhost:6379"),
		TelegramBotToken:          os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:            envInt64("TELEGRAM_CHAT_ID", 0),
		OpenAIAPIKey:              os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:               envString("OPENAI_MODEL", "gpt-4o-mini"),
		TwitterBearerToken:        os.Getenv("TWITTER_BEARER_TOKEN"),
		FinnhubAPIKey:             os.Getenv("FINNHUB_API_KEY"),
		FlowAPIBaseURL:            strings.TrimRight(os.Getenv("FLOW_API_BASE_URL"), "/"),
		FlowAPIKey:                os.Getenv("FLOW_API_KEY"),
		NewsFeedURL:               envString("NEWS_FEED_URL", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"),
		RedditSubs:                envList("REDDIT_SUBS", []string{"stocks", "wallstreetbets", "investing"}),
		Watchlist:                 envList("WATCHLIST", domain.DefaultWatchlist),
		ScanIntervalSecs:          envInt("SCAN_INTERVAL_SECS", 900),
		MLEnabled:                 envBool("ML_ENABLED", false),
		MLTrainHourUTC:            envInt("ML_TRAIN_HOUR_UTC", 1),
		MLMinTrainSamples:         envInt("ML_MIN_TRAIN_SAMPLES", 200),
		Sentiment: SentimentConfig{
			Weights:             loadSourceWeights(),
			MinConfidence:       envFloat("SENTIMENT_MIN_CONFIDENCE", 0.3),
			DivergenceThreshold: envFloat("SENTIMENT_DIVERGENCE_THRESHOLD", 0.5),
			DecayHalfLifeHours:  envFloat("SENTIMENT_DECAY_HALF_LIFE_HOURS", 6),
			MinProviders:        envInt("SENTIMENT_MIN_PROVIDERS", 1),
			DefaultHours:        envInt("SENTIMENT_DEFAULT_HOURS", 24),
			CacheTTLSecs:        envInt("SENTIMENT_CACHE_TTL_SECS", 300),
			ProviderCacheSecs:   envInt("SENTIMENT_PROVIDER_CACHE_SECS", 900),
			ProviderTimeoutSecs: envInt("SENTIMENT_PROVIDER_TIMEOUT_SECS", 15),
			ProviderMaxRetries:  envInt("SENTIMENT_PROVIDER_MAX_RETRIES", 3),
			PersistToDB:         envBool("SENTIMENT_PERSIST_TO_DB", true),
		},
		Confluence: ConfluenceConfig{
			WeightTechnical:   envFloat("CONFLUENCE_WEIGHT_TECHNICAL", 0.40),
			WeightSentiment:   envFloat("CONFLUENCE_WEIGHT_SENTIMENT", 0.35),
			WeightOptionsFlow: envFloat("CONFLUENCE_WEIGHT_OPTIONS_FLOW", 0.25),
			MinThreshold:      envFloat("CONFLUENCE_MIN_THRESHOLD", 0.6),
			HighThreshold:     envFloat("CONFLUENCE_HIGH_THRESHOLD", 0.8),
			CacheTTLSecs:      envInt("CONFLUENCE_CACHE_TTL_SECS", 300),
			UseSentiment:      envBool("CONFLUENCE_USE_SENTIMENT", true),
			UseOptionsFlow:    envBool("CONFLUENCE_USE_OPTIONS_FLOW", true),
			WeightSMATrend:    envFloat("TECHNICAL_WEIGHT_SMA_TREND", 0.30),
			WeightRSI:         envFloat("TECHNICAL_WEIGHT_RSI", 0.25),
			WeightVolume:      envFloat("TECHNICAL_WEIGHT_VOLUME", 0.25),
			WeightBollinger:   envFloat("TECHNICAL_WEIGHT_BOLLINGER", 0.20),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	for source, weight := range cfg.Sentiment.Weights {
		if weight < 0 || weight > 5 {
			return fmt.Errorf("config validation: weight for %s is %v, must be in [0,5]", source, weight)
		}
	}

	confluenceSum := cfg.Confluence.WeightTechnical + cfg.Confluence.WeightSentiment + cfg.Confluence.WeightOptionsFlow
	if math.Abs(confluenceSum-1.0) > 1e-9 {
		return fmt.Errorf("config validation: confluence weights sum to %v, must sum to 1.0", confluenceSum)
	}
	technicalSum := cfg.Confluence.WeightSMATrend + cfg.Confluence.WeightRSI + cfg.Confluence.WeightVolume + cfg.Confluence.WeightBollinger
	if math.Abs(technicalSum-1.0) > 1e-9 {
		return fmt.Errorf("config validation: technical sub-weights sum to %v, must sum to 1.0", technicalSum)
	}
	if cfg.Confluence.MinThreshold > cfg.Confluence.HighThreshold {
		return fmt.Errorf("config validation: min threshold %v exceeds high threshold %v",
			cfg.Confluence.MinThreshold, cfg.Confluence.HighThreshold)
	}

	for _, symbol := range cfg.Watchlist {
		if _, ok := domain.NormalizeSymbol(symbol); !ok {
			return fmt.Errorf("config validation: invalid watchlist symbol %q", symbol)
		}
	}
	return nil
}

func loadSourceWeights() SourceWeights {
	weights := defaultSourceWeights()
	for source := range weights {
		key := "SENTIMENT_WEIGHT_" + strings.ToUpper(source)
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				weights[source] = n
			}
		}
	}
	return weights
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
