package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const groqDefaultBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to Groq's OpenAI-compatible API and serves both chat
// completions and whisper transcription.
type GroqClient struct {
	client       *openai.Client
	chatModel    string
	whisperModel string
}

func NewGroqClient(apiKey, baseURL, chatModel, whisperModel string) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = groqDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &GroqClient{
		client:       openai.NewClientWithConfig(cfg),
		chatModel:    chatModel,
		whisperModel: whisperModel,
	}
}

func (g *GroqClient) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.chatModel,
		Messages:    msgs,
		Temperature: 0.2,
		MaxTokens:   180,
	})
	if err != nil {
		return "", mapUpstreamErr("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: %w", ErrEmptyResult)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: %w", ErrEmptyResult)
	}
	return content, nil
}

func (g *GroqClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       g.whisperModel,
		FilePath:    filename,
		Reader:      bytes.NewReader(audio),
		Format:      openai.AudioResponseFormatVerboseJSON,
		Language:    "en",
		Temperature: 0,
	})
	if err != nil {
		return "", mapUpstreamErr("transcription", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcription: %w", ErrEmptyResult)
	}
	return text, nil
}

// mapUpstreamErr folds SDK errors into the package taxonomy while keeping
// the original error text for operators.
func mapUpstreamErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrUpstreamTimeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%s: %v: %w", op, apiErr, ErrUpstreamAuth)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%s: %v: %w", op, reqErr, ErrUpstreamAuth)
		}
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrUpstream)
}
