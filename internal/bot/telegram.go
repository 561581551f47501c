package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickerpulse/internal/domain"
	"tickerpulse/internal/ml/inference"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

const commandTimeout = 30 * time.Second

// SentimentQuerier answers /sentiment commands.
type SentimentQuerier interface {
	GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error)
}

// Scorer answers /confluence commands.
type Scorer interface {
	ScorePlain(ctx context.Context, symbol string, hours int) (*domain.ConfluenceScore, error)
}

// Briefer answers free-form /brief questions.
type Briefer interface {
	Brief(ctx context.Context, question string) (string, error)
}

// Forecaster answers /forecast commands from the promoted models.
type Forecaster interface {
	Predict(ctx context.Context, score *domain.ConfluenceScore) (*inference.Forecast, error)
}

// Bot is the Telegram front end. It serves commands over long polling and
// receives pushed signal alerts from the scan job.
type Bot struct {
	bot         *tele.Bot
	sentiment   SentimentQuerier
	confluence  Scorer
	advisor     Briefer
	forecaster  Forecaster
	alertChatID int64
	log         zerolog.Logger
}

func NewBot(token string, alertChatID int64, sentiment SentimentQuerier, confluence Scorer, advisor Briefer, forecaster Forecaster, log zerolog.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:         b,
		sentiment:   sentiment,
		confluence:  confluence,
		advisor:     advisor,
		forecaster:  forecaster,
		alertChatID: alertChatID,
		log:         log,
	}
	bot.registerHandlers()
	return bot, nil
}

// Start blocks on the long poller until Stop is called.
func (b *Bot) Start() {
	b.log.Info().Msg("telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// NotifySignal pushes a high-confluence alert to the configured chat. It is
// the scan job's notifier; sends are best effort.
func (b *Bot) NotifySignal(score *domain.ConfluenceScore) {
	if b.alertChatID == 0 {
		return
	}
	_, err := b.bot.Send(tele.ChatID(b.alertChatID), FormatSignalAlert(score))
	if err != nil {
		b.log.Error().Err(err).Str("symbol", score.Symbol).Msg("failed to push signal alert")
	}
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.bot.Handle("/sentiment", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /sentiment AAPL")
		}
		symbol, ok := domain.NormalizeSymbol(args[0])
		if !ok {
			return c.Send(fmt.Sprintf("Invalid symbol: %s", args[0]))
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		agg, err := b.sentiment.GetAggregatedSentiment(ctx, symbol, 24, nil)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("sentiment command failed")
			return c.Send(fmt.Sprintf("Error fetching sentiment for %s", symbol))
		}
		if agg == nil {
			return c.Send(fmt.Sprintf("No sentiment data for %s", symbol))
		}
		return c.Send(FormatSentiment(agg))
	})

	b.bot.Handle("/confluence", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /confluence AAPL")
		}
		symbol, ok := domain.NormalizeSymbol(args[0])
		if !ok {
			return c.Send(fmt.Sprintf("Invalid symbol: %s", args[0]))
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		score, err := b.confluence.ScorePlain(ctx, symbol, 24)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("confluence command failed")
			return c.Send(fmt.Sprintf("Error scoring %s", symbol))
		}
		if score == nil {
			return c.Send(fmt.Sprintf("Not enough history to score %s", symbol))
		}
		return c.Send(FormatConfluence(score))
	})

	b.bot.Handle("/forecast", func(c tele.Context) error {
		if b.forecaster == nil {
			return c.Send("Forecasts are disabled on this deployment.")
		}
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /forecast AAPL")
		}
		symbol, ok := domain.NormalizeSymbol(args[0])
		if !ok {
			return c.Send(fmt.Sprintf("Invalid symbol: %s", args[0]))
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		score, err := b.confluence.ScorePlain(ctx, symbol, 24)
		if err != nil || score == nil {
			return c.Send(fmt.Sprintf("Not enough data to forecast %s", symbol))
		}
		forecast, err := b.forecaster.Predict(ctx, score)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("forecast command failed")
			return c.Send(fmt.Sprintf("Error forecasting %s", symbol))
		}
		if forecast == nil {
			return c.Send("No model has been trained yet.")
		}
		return c.Send(FormatForecast(forecast))
	})

	b.bot.Handle("/brief", func(c tele.Context) error {
		if b.advisor == nil {
			return c.Send("Briefs are disabled on this deployment.")
		}
		question := strings.TrimSpace(strings.Join(c.Args(), " "))
		if question == "" {
			return c.Send("Usage: /brief what do you make of AAPL here?")
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		reply, err := b.advisor.Brief(ctx, question)
		if err != nil {
			b.log.Error().Err(err).Msg("brief command failed")
			return c.Send("The advisor is unavailable right now, try again later.")
		}
		return c.Send(reply)
	})
}

// FormatSentiment renders an aggregate for a chat message.
func FormatSentiment(agg *domain.AggregatedSentiment) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s sentiment: %.2f (%s)\n", agg.Symbol, agg.UnifiedSentiment, agg.SentimentLevel))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f | Sources: %d | Mentions: %d", agg.Confidence, agg.SourceCount, agg.TotalMentions))
	if agg.DivergenceDetected {
		sb.WriteString(fmt.Sprintf("\nSources diverge (%.2f), read with care", agg.DivergenceScore))
	}
	if len(agg.ProvidersUsed) > 0 {
		sb.WriteString("\nBreakdown:")
		for _, source := range agg.ProvidersUsed {
			sb.WriteString(fmt.Sprintf(" %s %.0f%%", source, agg.SourceBreakdown[source]))
		}
	}
	return sb.String()
}

// FormatConfluence renders a confluence score for a chat message.
func FormatConfluence(score *domain.ConfluenceScore) string {
	direction := "neutral"
	switch {
	case score.DirectionalBias > 0.1:
		direction = "bullish"
	case score.DirectionalBias < -0.1:
		direction = "bearish"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s confluence: %.2f (%s), %s bias %+.2f\n",
		score.Symbol, score.ConfluenceScore, score.ConfluenceLevel, direction, score.DirectionalBias))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f | Components: %s",
		score.Confidence, strings.Join(score.ComponentsUsed, "+")))
	return sb.String()
}

// FormatForecast renders a model direction forecast.
func FormatForecast(f *inference.Forecast) string {
	return fmt.Sprintf("%s forecast: %s (P(up) %.2f)\nlogreg %.2f | boosted %.2f",
		f.Symbol, strings.ToUpper(f.Direction), f.ProbUp, f.LogRegProb, f.BoostedProb)
}

// FormatSignalAlert renders a pushed high-confluence alert.
func FormatSignalAlert(score *domain.ConfluenceScore) string {
	direction := "NEUTRAL"
	switch {
	case score.DirectionalBias > 0.1:
		direction = "BULLISH"
	case score.DirectionalBias < -0.1:
		direction = "BEARISH"
	}
	return fmt.Sprintf("SIGNAL %s %s\nStrength %.2f (%s) | Bias %+.2f | Confidence %.2f\nComponents: %s",
		score.Symbol, direction, score.ConfluenceScore, score.ConfluenceLevel,
		score.DirectionalBias, score.Confidence, strings.Join(score.ComponentsUsed, "+"))
}
