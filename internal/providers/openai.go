// Package providers wraps the model API behind the schema provider
// interfaces. One OpenAI-compatible client serves streaming chat, one-shot
// completion and image generation.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inkwell/inkwell/internal/schema"
)

// OpenAIProvider talks to any OpenAI-compatible endpoint via the official
// client. A custom apiBase routes the same calls to gateways and local
// servers.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	imageModel   string
}

func NewOpenAIProvider(apiKey, apiBase, defaultModel, imageModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = strings.TrimRight(apiBase, "/")
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
		imageModel:   imageModel,
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Stream implements schema.StreamProvider. The returned channel is closed
// when the upstream stream ends; a frame with Err set is always terminal.
func (p *OpenAIProvider) Stream(
	ctx context.Context,
	messages schema.Messages,
	tools []schema.ToolDefinition,
	opts schema.ChatOptions,
) (<-chan schema.Frame, error) {
	req := p.buildRequest(messages, opts)
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create completion stream: %w", err)
	}

	frames := make(chan schema.Frame)
	go func() {
		defer close(frames)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case frames <- schema.Frame{Err: fmt.Errorf("stream recv: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			if choice.Delta.Content != "" {
				if !send(ctx, frames, schema.Frame{TextDelta: choice.Delta.Content}) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				delta := &schema.ToolCallDelta{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
				if tc.Index != nil {
					delta.Index = *tc.Index
				}
				if !send(ctx, frames, schema.Frame{Tool: delta}) {
					return
				}
			}
			if choice.FinishReason != "" && choice.FinishReason != openai.FinishReasonNull {
				if !send(ctx, frames, schema.Frame{Finish: schema.FinishReason(choice.FinishReason)}) {
					return
				}
			}
		}
	}()
	return frames, nil
}

func send(ctx context.Context, ch chan<- schema.Frame, f schema.Frame) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// Complete implements schema.Completer.
func (p *OpenAIProvider) Complete(ctx context.Context, messages schema.Messages, opts schema.ChatOptions) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, opts))
	if err != nil {
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("create completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage returns the hosted URL of a generated image.
func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.imageModel,
		Size:           size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("create image: empty response")
	}
	slog.Debug("image generated", "model", p.imageModel, "size", size)
	return resp.Data[0].URL, nil
}

func (p *OpenAIProvider) buildRequest(messages schema.Messages, opts schema.ChatOptions) openai.ChatCompletionRequest {
	wire := make([]openai.ChatCompletionMessage, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		wire = append(wire, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    wire,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	}
}
