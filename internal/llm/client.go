package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	chromem "github.com/philippgille/chromem-go"
)

// Generator produces code from a prompt, in one piece or as a stream.
type Generator interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	Stream(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) TextStream
	ModelName() string
}

// TextStream is a finite, non-restartable sequence of text chunks.
type TextStream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

// Client talks to any OpenAI-compatible endpoint.
type Client struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// New creates a client for the given model.
func New(apiKey, model, baseURL string, temperature float64, maxTokens int64) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	// OpenRouter/Groq/local servers need a different base URL
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:      &client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) params(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(c.maxTokens)
	}
	return p
}

// Complete returns the whole completion text.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion. Errors surface through TextStream.Err.
func (c *Client) Stream(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) TextStream {
	return &chatStream{stream: c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))}
}

// EmbeddingFunc embeds text with the given model for the retrieval index.
func (c *Client) EmbeddingFunc(model string, dims int) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Model: openai.EmbeddingModel(model),
		}
		if dims > 0 {
			params.Dimensions = openai.Int(int64(dims))
		}
		resp, err := c.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("embedding response is empty")
		}
		src := resp.Data[0].Embedding
		vec := make([]float32, len(src))
		for i, v := range src {
			vec[i] = float32(v)
		}
		return vec, nil
	}
}

// chatStream adapts the SDK stream to TextStream, skipping empty deltas.
type chatStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	chunk  string
}

func (s *chatStream) Next() bool {
	for s.stream.Next() {
		cur := s.stream.Current()
		if len(cur.Choices) == 0 || cur.Choices[0].Delta.Content == "" {
			continue
		}
		s.chunk = cur.Choices[0].Delta.Content
		return true
	}
	s.chunk = ""
	return false
}

func (s *chatStream) Chunk() string { return s.chunk }

func (s *chatStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("llm stream failed: %w", err)
	}
	return nil
}

func (s *chatStream) Close() error { return s.stream.Close() }
