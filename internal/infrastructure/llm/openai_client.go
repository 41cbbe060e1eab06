// Package llm adapts the OpenAI-compatible completion API to the domain's
// generation and judgment interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/pkg/constants"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// OpenAIClient implements service.GenerationClient and
// service.CompletionBackend against any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     logger.Logger
}

// NewOpenAIClient builds the client. The API key is a hard requirement;
// construction fails rather than deferring the error to the first turn.
func NewOpenAIClient(cfg *config.GenerationConfig, log logger.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ccserrors.ErrMissingCredential("generation.api_key")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = constants.DefaultGenerationModel
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.Timeout(),
		log:     log.WithComponent("generation_client"),
	}, nil
}

// Generate streams a completion and assembles the reply. The first non-empty
// content chunk marks time-to-first-token.
func (c *OpenAIClient) Generate(ctx context.Context, req service.GenerationRequest) (*service.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		Temperature: req.Persona.Temperature,
		MaxTokens:   req.Persona.MaxTokens,
		Stream:      true,
	}

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	defer stream.Close()

	var sb strings.Builder
	var firstToken time.Duration
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, mapUpstreamError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		sb.WriteString(chunk)
	}

	text := sb.String()
	total := time.Since(start)
	c.log.Debug(ctx, "completion streamed",
		logger.Duration("time_to_first_token", firstToken),
		logger.Duration("total", total),
		logger.Int("reply_chars", len(text)),
	)

	return &service.GenerationResult{
		Text:             text,
		TimeToFirstToken: firstToken,
		Total:            total,
		TokenEstimate:    EstimateTokens(text),
	}, nil
}

// Complete issues a plain non-streaming completion. Used by the risk judge.
func (c *OpenAIClient) Complete(ctx context.Context, model string, system string, user string) (string, error) {
	if model == "" {
		model = c.model
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", mapUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ccserrors.ErrUpstreamFailure("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// EstimateTokens approximates token usage from character length. The figure
// is telemetry-grade only.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / constants.CharsPerTokenEstimate
	if n < 1 {
		n = 1
	}
	return n
}

// buildMessages assembles the prompt: system instructions first, then the
// history in order, then the new user turn. A history turn recorded as
// human-operator is rewritten into a synthetic user/assistant exchange so
// the model knows a human already answered and does not contradict them.
func buildMessages(req service.GenerationRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)*2+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(req.Persona),
	})

	for _, turn := range req.History {
		if turn.SenderType == string(constants.SenderHumanOperator) {
			messages = append(messages,
				openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf("[A human team member stepped into this conversation and replied: %q]", turn.Content),
				},
				openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "Understood. A colleague already handled that, and I will stay consistent with their reply.",
				},
			)
			continue
		}

		role := openai.ChatMessageRoleUser
		if turn.Role == string(constants.RoleAssistant) {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return messages
}

// systemPrompt flattens the resolved persona into one system message.
func systemPrompt(p models.PersonaConfig) string {
	var sb strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&sb, "You are %s.\n", p.Name)
	}
	if p.SystemInstructions != "" {
		sb.WriteString(p.SystemInstructions)
		sb.WriteString("\n")
	}
	if p.Personality != "" {
		fmt.Fprintf(&sb, "Personality: %s\n", p.Personality)
	}
	if p.Language != "" {
		fmt.Fprintf(&sb, "Always reply in language: %s\n", p.Language)
	}
	if p.KnowledgeText != "" {
		fmt.Fprintf(&sb, "\nReference material:\n%s\n", p.KnowledgeText)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// mapUpstreamError classifies provider failures. Saturation (429) stays
// distinguishable so the boundary can tell the caller to back off; anything
// else is a terminal upstream failure for this turn.
func mapUpstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return ccserrors.ErrUpstreamRateLimited(apiErr.Message).WithCause(err)
		}
		return ccserrors.ErrUpstreamFailure(apiErr.Message).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ccserrors.ErrUpstreamFailure("generation timed out").WithCause(err)
	}
	return ccserrors.ErrUpstreamFailure("generation request failed").WithCause(err)
}
