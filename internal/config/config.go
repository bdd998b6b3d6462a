package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"AI Interview Backend"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	AppHost  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	AppPort  int    `env:"APP_PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DataDir string `env:"DATA_DIR" envDefault:"data"`

	JWTSecret        string `env:"JWT_SECRET_KEY" envDefault:"dev-secret-change-me"`
	JWTAlgorithm     string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"60"`

	AIProvider       string        `env:"AI_PROVIDER" envDefault:"groq"`
	GroqAPIKey       string        `env:"GROQ_API_KEY"`
	GroqBaseURL      string        `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	GroqWhisperModel string        `env:"GROQ_WHISPER_MODEL" envDefault:"whisper-large-v3-turbo"`
	GroqLLMModel     string        `env:"GROQ_LLM_MODEL" envDefault:"llama-3.1-8b-instant"`
	GroqTimeout      time.Duration `env:"GROQ_TIMEOUT" envDefault:"8s"`

	LLMSystemPrompt string `env:"LLM_SYSTEM_PROMPT" envDefault:"You are a professional technical consultant in a live client meeting. Provide short, confident, business-ready answers. No long explanations. No filler words. Keep answers under 4 sentences."`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
	CORSAllowMethods []string `env:"CORS_ALLOW_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	CORSAllowHeaders []string `env:"CORS_ALLOW_HEADERS" envSeparator:"," envDefault:"*"`

	MaxAudioSizeMB int `env:"MAX_AUDIO_SIZE_MB" envDefault:"15"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
}

func (c *Config) MaxAudioBytes() int64 {
	return int64(c.MaxAudioSizeMB) * 1024 * 1024
}

// GroqKey returns the API key with surrounding whitespace and wrapping
// quotes stripped; both show up when the key is pasted into a .env file.
func (c *Config) GroqKey() string {
	raw := strings.TrimSpace(c.GroqAPIKey)
	if len(raw) >= 2 && raw[0] == raw[len(raw)-1] && (raw[0] == '\'' || raw[0] == '"') {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	return raw
}

// GroqKeyConfigured reports whether a usable key is present, rejecting the
// placeholder values shipped in .env templates.
func (c *Config) GroqKeyConfigured() bool {
	key := c.GroqKey()
	if key == "" {
		return false
	}
	switch strings.ToLower(key) {
	case "replace_with_real_key", "your_groq_api_key_here":
		return false
	}
	return true
}
