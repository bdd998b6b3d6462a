package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/auth"
	"interview-copilot/internal/config"
	"interview-copilot/internal/logger"
	"interview-copilot/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *auth.TokenService, *store.Store) {
	return newTestRouterAt(t, t.TempDir())
}

func newTestRouterAt(t *testing.T, dataDir string) (*gin.Engine, *auth.TokenService, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppName:          "test backend",
		AppEnv:           "test",
		DataDir:          dataDir,
		JWTSecret:        "test-secret",
		JWTAlgorithm:     "HS256",
		JWTExpireMinutes: 60,
		AIProvider:       "groq",
		GroqTimeout:      time.Second,
		LLMSystemPrompt:  "be brief",
		CORSAllowOrigins: []string{"*"},
		CORSAllowMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowHeaders: []string{"*"},
		MaxAudioSizeMB:   15,
	}

	st := store.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenLifetime())
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return NewRouter(cfg, logger.NewNop(), st, tokens), tokens, st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, env := doJSON(t, r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("expected ok, got status=%d envelope=%+v", w.Code, env)
	}
}

func TestSignupLoginFlow(t *testing.T) {
	r, tokens, st := newTestRouter(t)

	// signup alice -> id 1
	w, env := doJSON(t, r, http.MethodPost, "/auth/signup", `{"username":"alice","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("signup: status %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("signup data: %v", err)
	}
	if created.ID != 1 || created.Username != "alice" {
		t.Fatalf("unexpected signup response: %+v", created)
	}
	if strings.Contains(string(env.Data), "password") {
		t.Fatalf("signup response leaks password material: %s", env.Data)
	}

	// duplicate signup -> conflict, still exactly one alice row
	w, _ = doJSON(t, r, http.MethodPost, "/auth/signup", `{"username":"alice","password":"other12"}`, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", w.Code)
	}
	u, err := st.FindUserByUsername("alice")
	if err != nil || u == nil || u.ID != 1 {
		t.Fatalf("expected single alice row with id 1, got %+v err=%v", u, err)
	}

	// wrong password -> 401
	w, _ = doJSON(t, r, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrongpw"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", w.Code)
	}

	// unknown user gets the same rejection
	w, _ = doJSON(t, r, http.MethodPost, "/auth/login", `{"username":"mallory","password":"secret1"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", w.Code)
	}

	// correct password -> token whose subject is alice
	w, env = doJSON(t, r, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("login data: %v", err)
	}
	if login.TokenType != "bearer" || login.ExpiresIn != 3600 {
		t.Fatalf("unexpected login payload: %+v", login)
	}
	subject, err := tokens.Verify(login.AccessToken)
	if err != nil || subject != "alice" {
		t.Fatalf("token does not verify to alice: subject=%q err=%v", subject, err)
	}

	// authenticated /auth/me
	w, env = doJSON(t, r, http.MethodGet, "/auth/me", "", login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(string(env.Data), `"alice"`) {
		t.Fatalf("me: expected alice, got %s", env.Data)
	}

	// empty history for a fresh user
	w, env = doJSON(t, r, http.MethodGet, "/chat/history", "", login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("history: status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(string(env.Data), `"items":[]`) {
		t.Fatalf("history: expected empty items, got %s", env.Data)
	}
}

func TestSignupValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	cases := []struct {
		body string
		want int
	}{
		{`{"username":"","password":"secret1"}`, http.StatusBadRequest},
		{`{"username":"   ","password":"secret1"}`, http.StatusBadRequest},
		{`{"username":"bob","password":"short"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{fmt.Sprintf(`{"username":%q,"password":"secret1"}`, strings.Repeat("a", 200)), http.StatusBadRequest},
	}
	for _, c := range cases {
		w, _ := doJSON(t, r, http.MethodPost, "/auth/signup", c.body, "")
		if w.Code != c.want {
			t.Fatalf("signup %q: expected %d, got %d", c.body, c.want, w.Code)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, tokens, _ := newTestRouter(t)

	// no credential at all
	w, env := doJSON(t, r, http.MethodGet, "/auth/me", "", "")
	if w.Code != http.StatusUnauthorized || env.Message != "Missing access token" {
		t.Fatalf("expected missing-token 401, got %d %q", w.Code, env.Message)
	}

	// garbage credential
	w, env = doJSON(t, r, http.MethodGet, "/auth/me", "", "garbage")
	if w.Code != http.StatusUnauthorized || env.Message != "Invalid or expired token" {
		t.Fatalf("expected invalid-token 401, got %d %q", w.Code, env.Message)
	}

	// verifiable token whose principal no longer exists
	ghost, _, err := tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w, env = doJSON(t, r, http.MethodGet, "/auth/me", "", ghost)
	if w.Code != http.StatusUnauthorized || env.Message != "User not found" {
		t.Fatalf("expected not-found 401, got %d %q", w.Code, env.Message)
	}
}

func TestChatHistoryLimitZeroClampsToOne(t *testing.T) {
	r, tokens, st := newTestRouter(t)

	user, err := st.CreateUser("alice", "irrelevant")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, row := range []struct{ role, content string }{
		{"user", "first question"},
		{"assistant", "first answer"},
		{"user", "second question"},
	} {
		if err := st.AppendChatMessage(user.ID, row.role, row.content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	token, _, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, env := doJSON(t, r, http.MethodGet, "/chat/history?limit=0", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("history: status %d body %s", w.Code, w.Body.String())
	}
	var payload struct {
		Items []struct {
			Content string `json:"content"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("data: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Content != "first question" {
		t.Fatalf("limit=0 should clamp to the single oldest row, got %+v", payload.Items)
	}
}

func TestAuthSurfacesCorruptUserTable(t *testing.T) {
	dir := t.TempDir()
	r, _, _ := newTestRouterAt(t, dir)

	w, _ := doJSON(t, r, http.MethodPost, "/auth/signup", `{"username":"alice","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("signup: status %d body %s", w.Code, w.Body.String())
	}

	f, err := os.OpenFile(filepath.Join(dir, "users.csv"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("not-a-number,bob,h2,2024-01-01T00:00:00Z\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	w, env := doJSON(t, r, http.MethodPost, "/auth/login", `{"username":"alice","password":"secret1"}`, "")
	if w.Code != http.StatusInternalServerError || env.Code != 50005 {
		t.Fatalf("login over corrupt table: expected 500/50005, got %d/%d", w.Code, env.Code)
	}

	w, env = doJSON(t, r, http.MethodPost, "/auth/signup", `{"username":"carol","password":"secret1"}`, "")
	if w.Code != http.StatusInternalServerError || env.Code != 50005 {
		t.Fatalf("signup over corrupt table: expected 500/50005, got %d/%d", w.Code, env.Code)
	}
}

func TestChatRespondWithoutProviderKey(t *testing.T) {
	r, tokens, st := newTestRouter(t)

	if _, err := st.CreateUser("alice", "irrelevant"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPost, "/chat/respond", `{"message":"hello"}`, token)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with unconfigured key, got %d", w.Code)
	}
}
