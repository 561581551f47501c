package advisor

import (
	"context"
	"fmt"

	"tickerpulse/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// SentimentQuerier supplies aggregated sentiment for the brief's context.
type SentimentQuerier interface {
	GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error)
}

// Scorer supplies confluence scores for the brief's context without dragging
// the calculator's options type into the LLM layer.
type Scorer interface {
	ScorePlain(ctx context.Context, symbol string, hours int) (*domain.ConfluenceScore, error)
}

// Service turns live sentiment and confluence data into a short
// natural-language brief. It interprets the numbers; it never invents them.
type Service struct {
	tracer     trace.Tracer
	llm        LLMClient
	sentiment  SentimentQuerier
	confluence Scorer
	model      string
	log        zerolog.Logger
}

func NewService(tracer trace.Tracer, llm LLMClient, sentiment SentimentQuerier, confluence Scorer, model string, log zerolog.Logger) *Service {
	return &Service{
		tracer:     tracer,
		llm:        llm,
		sentiment:  sentiment,
		confluence: confluence,
		model:      model,
		log:        log,
	}
}

// Brief answers a free-form question about one or more symbols. Symbols are
// extracted from the question; with none mentioned the brief declines rather
// than guessing.
func (s *Service) Brief(ctx context.Context, question string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.brief")
	defer span.End()

	symbols := ExtractSymbols(question)
	if len(symbols) == 0 {
		return "Name at least one ticker, e.g. \"brief AAPL\".", nil
	}
	span.SetAttributes(attribute.StringSlice("symbols", symbols))

	marketContext := s.gatherContext(ctx, symbols)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(BuildSystemPrompt(marketContext)),
		openai.UserMessage(question),
	}

	completion, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return completion.Choices[0].Message.Content, nil
}

func (s *Service) gatherContext(ctx context.Context, symbols []string) string {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()

	var sentiments []*domain.AggregatedSentiment
	var confluences []*domain.ConfluenceScore
	for _, symbol := range symbols {
		agg, err := s.sentiment.GetAggregatedSentiment(ctx, symbol, 24, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("brief sentiment fetch failed")
		} else if agg != nil {
			sentiments = append(sentiments, agg)
		}
		score, err := s.confluence.ScorePlain(ctx, symbol, 24)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("brief confluence fetch failed")
		} else if score != nil {
			confluences = append(confluences, score)
		}
	}
	return FormatMarketContext(symbols, sentiments, confluences)
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	return &openaiClient{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (c *openaiClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
