package tagger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Message is one turn of a chat exchange with the classifier.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// LLMClient abstracts LLM providers for swappability.
type LLMClient interface {
	// Chat sends messages and returns the complete response.
	Chat(ctx context.Context, messages []Message) (string, error)
}

// OllamaClient implements LLMClient using the Ollama API.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an OllamaClient for the given server and model.
func NewOllamaClient(serverURL, model string) (*OllamaClient, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	// Prepend scheme if missing so url.Parse produces a valid host.
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		serverURL = "http://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}
	if model == "" {
		return nil, fmt.Errorf("no model configured: set [tagger] model")
	}
	return &OllamaClient{client: api.NewClient(u, &http.Client{}), model: model}, nil
}

func toOllamaMessages(msgs []Message) []api.Message {
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Chat runs a non-streaming chat request. Classification replies must be
// deterministic, so temperature is pinned to zero.
func (o *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	var sb strings.Builder
	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options:  map[string]interface{}{"temperature": 0},
	}

	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return sb.String(), nil
}
