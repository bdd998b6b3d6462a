package handlers

import (
	"fmt"
	"strings"

	"interview-copilot/internal/ai"
	"interview-copilot/internal/auth"
	"interview-copilot/internal/chat"
	"interview-copilot/internal/config"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/store"
)

type Handler struct {
	Cfg     *config.Config
	Log     *logger.Logger
	Store   *store.Store
	Tokens  *auth.TokenService
	ChatSvc *chat.Service
}

func NewHandler(cfg *config.Config, log *logger.Logger, st *store.Store, tokens *auth.TokenService) *Handler {
	var (
		provider    ai.Provider
		transcriber ai.Transcriber
	)
	switch strings.ToLower(cfg.AIProvider) {
	case "", "groq":
		groq := ai.NewGroqClient(cfg.GroqKey(), cfg.GroqBaseURL, cfg.GroqLLMModel, cfg.GroqWhisperModel)
		provider, transcriber = groq, groq
	default:
		panic(fmt.Sprintf("unsupported AI_PROVIDER=%q", cfg.AIProvider))
	}

	chatSvc := chat.NewService(st, provider, transcriber, log, cfg.LLMSystemPrompt, cfg.GroqTimeout)

	return &Handler{
		Cfg:     cfg,
		Log:     log,
		Store:   st,
		Tokens:  tokens,
		ChatSvc: chatSvc,
	}
}
