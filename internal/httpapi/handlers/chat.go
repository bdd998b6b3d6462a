package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/ai"
	"interview-copilot/internal/chat"
	"interview-copilot/internal/common"
	"interview-copilot/internal/httpapi/middleware"
	"interview-copilot/internal/store"
)

const maxChatMessageLen = 4000

type chatRespondReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) ChatRespond(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatRespondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.Message) > maxChatMessageLen {
		common.Fail(c, http.StatusBadRequest, 10006, "Message is too long")
		return
	}
	if !h.Cfg.GroqKeyConfigured() {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "GROQ_API_KEY is missing or invalid in .env.")
		return
	}

	answer, err := h.ChatSvc.Respond(c.Request.Context(), user.ID, req.Message)
	if err != nil {
		h.failChatTurn(c, err)
		return
	}

	common.OK(c, gin.H{"answer": answer})
}

func (h *Handler) ChatHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10007, "invalid limit")
		return
	}

	msgs, err := h.ChatSvc.History(user.ID, limit)
	if err != nil {
		var ie *store.IntegrityError
		if errors.As(err, &ie) {
			h.Log.Error("chat table is corrupt", "err", err)
			common.Fail(c, http.StatusInternalServerError, 50005, "chat history is corrupted")
			return
		}
		h.Log.Error("list history failed", "user_id", user.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "storage unavailable")
		return
	}

	common.OK(c, gin.H{"items": msgs})
}

func (h *Handler) ProcessAudio(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if !h.Cfg.GroqKeyConfigured() {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "GROQ_API_KEY is missing or invalid in .env.")
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10008, "Audio file is required.")
		return
	}
	if fileHeader.Filename == "" {
		common.Fail(c, http.StatusBadRequest, 10009, "Audio filename is missing.")
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "audio/") {
		common.Fail(c, http.StatusBadRequest, 10010, "Invalid file type. Please upload an audio file.")
		return
	}
	if fileHeader.Size > h.Cfg.MaxAudioBytes() {
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301,
			fmt.Sprintf("Audio file is too large. Max allowed: %dMB.", h.Cfg.MaxAudioSizeMB))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10011, "failed to read audio upload")
		return
	}
	audio, err := io.ReadAll(io.LimitReader(f, h.Cfg.MaxAudioBytes()+1))
	_ = f.Close()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10011, "failed to read audio upload")
		return
	}
	if len(audio) == 0 {
		common.Fail(c, http.StatusBadRequest, 10012, "Uploaded audio file is empty.")
		return
	}
	if int64(len(audio)) > h.Cfg.MaxAudioBytes() {
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301,
			fmt.Sprintf("Audio file is too large. Max allowed: %dMB.", h.Cfg.MaxAudioSizeMB))
		return
	}

	transcript, answer, err := h.ChatSvc.ProcessAudio(c.Request.Context(), user.ID, fileHeader.Filename, audio)
	if err != nil {
		h.failChatTurn(c, err)
		return
	}

	common.OK(c, gin.H{
		"transcription": transcript,
		"answer":        answer,
	})
}

// failChatTurn maps chat/provider failures onto the response taxonomy.
// Upstream detail stays in the logs; clients get the generic message.
func (h *Handler) failChatTurn(c *gin.Context, err error) {
	var ie *store.IntegrityError
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		common.Fail(c, http.StatusBadRequest, 10013, "Nothing to answer: input is empty.")
	case errors.Is(err, ai.ErrUpstreamAuth):
		h.Log.Error("provider rejected credentials", "err", err)
		common.Fail(c, http.StatusUnauthorized, 40106, "Invalid GROQ_API_KEY. Update .env with a valid key.")
	case errors.Is(err, ai.ErrUpstreamTimeout):
		h.Log.Error("provider timed out", "err", err)
		common.Fail(c, http.StatusGatewayTimeout, 50401, "Provider response timed out.")
	case errors.Is(err, ai.ErrEmptyResult):
		h.Log.Error("provider returned empty result", "err", err)
		common.Fail(c, http.StatusUnprocessableEntity, 42201, "Provider returned an empty result.")
	case errors.Is(err, ai.ErrUpstream):
		h.Log.Error("provider call failed", "err", err)
		common.Fail(c, http.StatusBadGateway, 50201, "Provider service unavailable.")
	case errors.As(err, &ie):
		h.Log.Error("chat table is corrupt", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50005, "chat history is corrupted")
	default:
		h.Log.Error("chat turn failed", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
