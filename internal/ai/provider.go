package ai

import (
	"context"
	"errors"
)

type Message struct {
	Role    string
	Content string
}

// Provider generates a single assistant completion for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Transcriber turns an uploaded audio payload into text. filename is a name
// hint for the upstream service, not a local path.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Upstream failure kinds. Callers map these to their own taxonomy; anything
// not matched below is a generic provider failure.
var (
	ErrUpstreamAuth    = errors.New("upstream rejected credentials")
	ErrUpstreamTimeout = errors.New("upstream timed out")
	ErrEmptyResult     = errors.New("upstream returned an empty result")
	ErrUpstream        = errors.New("upstream failure")
)
