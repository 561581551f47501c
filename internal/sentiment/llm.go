package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tickerpulse/internal/provider"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const llmBatchSize = 24

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// LLMScorer scores text batches with an OpenAI chat model and falls back to
// the lexicon scorer when the model is unreachable or returns garbage. The
// fallback keeps the aggregator running through provider outages.
type LLMScorer struct {
	client   openAIChatClient
	model    string
	fallback *LexiconScorer
	log      zerolog.Logger
}

// NewLLMScorer returns nil when no API key is configured; callers should use
// the lexicon scorer directly in that case.
func NewLLMScorer(apiKey, model string, fallback *LexiconScorer, log zerolog.Logger) *LLMScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &LLMScorer{
		client:   &openAIClient{client: client},
		model:    model,
		fallback: fallback,
		log:      log,
	}
}

func (s *LLMScorer) ScoreItems(ctx context.Context, symbol string, items []provider.TextItem) (float64, float64, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	var scoreSum, confSum float64
	scored := 0
	for start := 0; start < len(items); start += llmBatchSize {
		end := start + llmBatchSize
		if end > len(items) {
			end = len(items)
		}
		score, confidence, err := s.scoreBatch(ctx, symbol, items[start:end])
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("llm scoring failed, using lexicon")
			score, confidence, err = s.fallback.ScoreItems(ctx, symbol, items[start:end])
			if err != nil {
				return 0, 0, err
			}
		}
		weight := float64(end - start)
		scoreSum += score * weight
		confSum += confidence * weight
		scored += end - start
	}

	return scoreSum / float64(scored), confSum / float64(scored), nil
}

func (s *LLMScorer) scoreBatch(ctx context.Context, symbol string, items []provider.TextItem) (float64, float64, error) {
	var sb strings.Builder
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("id=%d\n", i))
		sb.WriteString(fmt.Sprintf("text=%s\n\n", strings.TrimSpace(item.Text)))
	}

	systemPrompt := "You score stock sentiment for a single ticker. Return ONLY a JSON object: {\"score\": -1..1, \"confidence\": 0..1}. score is the aggregate bullishness of the texts toward the ticker. No markdown."
	userPrompt := fmt.Sprintf("Ticker: %s\nItems:\n%s", symbol, sb.String())

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return 0, 0, err
	}
	if len(completion.Choices) == 0 {
		return 0, 0, fmt.Errorf("empty scorer completion")
	}

	raw := trimCodeFence(completion.Choices[0].Message.Content)
	var parsed struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, 0, fmt.Errorf("parse scorer json: %w", err)
	}

	return clamp(parsed.Score, -1, 1), clamp(parsed.Confidence, 0, 1), nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
