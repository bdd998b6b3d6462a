package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/auth"
	"interview-copilot/internal/common"
	"interview-copilot/internal/httpapi/middleware"
	"interview-copilot/internal/store"
)

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok", "service": h.Cfg.AppName})
}

type signupReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "Username is required")
		return
	}
	if len(username) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "Username is too long")
		return
	}
	if len(password) < 6 {
		common.Fail(c, http.StatusBadRequest, 10004, "Password must be at least 6 characters")
		return
	}

	// fast duplicate rejection before the expensive hash; the store re-checks
	// under its own lock, so a concurrent signup still cannot slip through
	existing, err := h.Store.FindUserByUsername(username)
	if err != nil {
		h.failUserRead(c, "signup lookup failed", err)
		return
	}
	if existing != nil {
		common.Fail(c, http.StatusConflict, 40901, "Username already exists")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.Log.Error("password hashing failed", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user, err := h.Store.CreateUser(username, hash)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			common.Fail(c, http.StatusConflict, 40901, "Username already exists")
			return
		}
		h.failUserRead(c, "create user failed", err)
		return
	}

	common.OK(c, user)
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		common.Fail(c, http.StatusBadRequest, 10005, "Username and password are required")
		return
	}

	user, err := h.Store.FindUserByUsername(username)
	if err != nil {
		h.failUserRead(c, "login lookup failed", err)
		return
	}
	if user == nil {
		// same rejection as a wrong password; do not reveal which
		common.Fail(c, http.StatusUnauthorized, 40104, "Invalid credentials")
		return
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		h.Log.Error("stored password hash is corrupt", "user_id", user.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "internal error")
		return
	}
	if !match {
		common.Fail(c, http.StatusUnauthorized, 40104, "Invalid credentials")
		return
	}

	token, ttl, err := h.Tokens.Issue(user.Username)
	if err != nil {
		h.Log.Error("token signing failed", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   ttl,
		"user":         user,
	})
}

// failUserRead maps user-table read failures the same way the chat paths
// do: a corrupt table gets its own code, everything else is storage
// unavailability.
func (h *Handler) failUserRead(c *gin.Context, what string, err error) {
	var ie *store.IntegrityError
	if errors.As(err, &ie) {
		h.Log.Error("user table is corrupt", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50005, "user records are corrupted")
		return
	}
	h.Log.Error(what, "err", err)
	common.Fail(c, http.StatusInternalServerError, 50001, "storage unavailable")
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	common.OK(c, user)
}
