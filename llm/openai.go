package llm

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/webforge-dev/webforge/cleanup"
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/provider"
	"go.uber.org/zap"
)

const failedMessage = "Failed to generate enhanced description"

var sentenceRe = regexp.MustCompile(`[^\.!\?]*[\.!\?]`)

// Enhancer turns a cleaned project description into a project specification.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

type OpenAIClient struct {
	provider     *provider.Client
	model        string
	systemPrompt string
	userPrompt   string
	temperature  float32
	maxTokens    int
	logger       *zap.Logger
}

func NewOpenAIClient(p *provider.Client, cfg config.ProviderConfig, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		provider:     p,
		model:        cfg.CompletionModel,
		systemPrompt: cfg.SystemPrompt,
		userPrompt:   cfg.UserPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		logger:       logging.Component(logger, "enhancer"),
	}
}

func (c *OpenAIClient) request(text string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: c.userPrompt + text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
}

// Enhance sends one completion request and returns the trimmed answer.
func (c *OpenAIClient) Enhance(ctx context.Context, text string) (string, error) {
	api, err := c.provider.API()
	if err != nil {
		return "", err
	}

	c.logger.Debug("sending description to provider", zap.Int("chars", len(text)))
	resp, err := api.CreateChatCompletion(ctx, c.request(text, false))
	if err != nil {
		c.logger.Warn("completion request failed", zap.Error(err))
		return "", provider.Classify(errors.Wrap(err, "create chat completion"), failedMessage)
	}
	if len(resp.Choices) == 0 {
		return "", &model.ProviderError{Status: 200, Message: failedMessage}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// StreamEnhance streams the completion and calls emit once per finished
// sentence, then once more with any trailing text.
func (c *OpenAIClient) StreamEnhance(ctx context.Context, text string, emit func(string) error) error {
	api, err := c.provider.API()
	if err != nil {
		return err
	}

	stream, err := api.CreateChatCompletionStream(ctx, c.request(text, true))
	if err != nil {
		return provider.Classify(errors.Wrap(err, "create chat completion stream"), failedMessage)
	}
	defer stream.Close()

	buffer := &strings.Builder{}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return provider.Classify(errors.Wrap(err, "receive completion chunk"), failedMessage)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		for _, s := range processChunk(buffer, chunk, sentenceRe) {
			if err := emit(s); err != nil {
				return err
			}
		}
	}

	if leftover := strings.TrimSpace(buffer.String()); leftover != "" {
		return emit(leftover)
	}
	return nil
}

// processChunk appends new text, extracts all full sentences and leaves the
// remainder in the buffer.
func processChunk(buffer *strings.Builder, chunk string, sentenceRe *regexp.Regexp) []string {
	buffer.WriteString(chunk)
	text := buffer.String()

	var sentences []string
	for {
		loc := sentenceRe.FindStringIndex(text)
		if loc == nil {
			break
		}
		sentence := strings.TrimSpace(text[:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		text = text[loc[1]:]
	}

	buffer.Reset()
	buffer.WriteString(text)
	return sentences
}

// Prepare validates a raw description and returns its cleaned form.
func Prepare(description string) (string, error) {
	cleaned := cleanup.Clean(description)
	if cleaned == "" {
		return "", &model.ValidationError{Message: "Description is required"}
	}
	return cleaned, nil
}
