package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interview-copilot/internal/ai"
	"interview-copilot/internal/common"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/store"
)

// ErrEmptyInput is returned when there is no text to answer: a blank chat
// message or a transcript the provider could not produce.
var ErrEmptyInput = errors.New("input is empty")

const (
	maxHistoryLimit    = 200
	maxAnswerSentences = 4
)

// Recorder is the slice of the record store the chat service writes through.
type Recorder interface {
	AppendChatMessage(userID int64, role, content string) error
	ListChatHistory(userID int64, limit int) ([]store.ChatMessage, error)
}

// Service proxies questions to the language-model provider and persists the
// resulting turn. A turn is two rows: the user's text and the assistant's
// answer. Nothing is persisted when the provider call fails.
type Service struct {
	store        Recorder
	provider     ai.Provider
	transcriber  ai.Transcriber
	log          *logger.Logger
	systemPrompt string
	timeout      time.Duration
}

func NewService(rec Recorder, provider ai.Provider, transcriber ai.Transcriber, log *logger.Logger, systemPrompt string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Service{
		store:        rec,
		provider:     provider,
		transcriber:  transcriber,
		log:          log,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

// Respond generates a short answer for message and records the turn.
func (s *Service) Respond(ctx context.Context, userID int64, message string) (string, error) {
	answer, err := s.generate(ctx, userID, message)
	if err != nil {
		return "", err
	}
	if err := s.recordTurn(userID, message, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// ProcessAudio transcribes the upload, generates an answer for the
// transcript and records the turn with the transcript as the user's text.
func (s *Service) ProcessAudio(ctx context.Context, userID int64, filename string, audio []byte) (transcript, answer string, err error) {
	if len(audio) == 0 {
		return "", "", ErrEmptyInput
	}

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	transcript, err = s.transcriber.Transcribe(tctx, filename, audio)
	cancel()
	if err != nil {
		s.log.Error("transcription failed", "user_id", userID, "cost", time.Since(start), "err", err)
		return "", "", err
	}

	answer, err = s.generate(ctx, userID, transcript)
	if err != nil {
		return "", "", err
	}
	if err := s.recordTurn(userID, transcript, answer); err != nil {
		return "", "", err
	}
	return transcript, answer, nil
}

// History returns the user's persisted messages, limit clamped to
// [1, 200]. The default when no limit was requested is the caller's
// concern; an explicit zero clamps to 1 like any other low value.
func (s *Service) History(userID int64, limit int) ([]store.ChatMessage, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.ListChatHistory(userID, limit)
}

func (s *Service) generate(ctx context.Context, userID int64, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}

	turnID, err := common.NewULID()
	if err != nil {
		return "", fmt.Errorf("new turn id: %w", err)
	}

	userPrompt := "Client question/transcript:\n" + input + "\n\nReturn only the final meeting-ready answer."

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	answer, err := s.provider.Chat(cctx, []ai.Message{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		s.log.Error("llm generation failed", "turn_id", turnID, "user_id", userID, "cost", time.Since(start), "err", err)
		return "", err
	}
	s.log.Debug("llm answer generated", "turn_id", turnID, "user_id", userID, "cost", time.Since(start))

	return limitSentences(answer, maxAnswerSentences), nil
}

func (s *Service) recordTurn(userID int64, userText, answer string) error {
	if err := s.store.AppendChatMessage(userID, "user", userText); err != nil {
		return fmt.Errorf("record user turn: %w", err)
	}
	if err := s.store.AppendChatMessage(userID, "assistant", answer); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}
	return nil
}

// limitSentences collapses whitespace and clips text after max sentence
// terminators (. ! ?); a run of terminators counts as one boundary.
func limitSentences(text string, max int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if max <= 0 {
		return cleaned
	}
	count := 0
	for i := 0; i < len(cleaned); i++ {
		switch cleaned[i] {
		case '.', '!', '?':
			if i+1 < len(cleaned) && cleaned[i+1] == ' ' {
				count++
				if count == max {
					return cleaned[:i+1]
				}
			}
		}
	}
	return cleaned
}
