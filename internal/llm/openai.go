package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

// OpenAI runs conversations against an OpenAI-compatible chat API, keeping
// the message history per session so the backend sees the whole exchange.
type OpenAI struct {
	client   *openai.Client
	model    string
	sessions map[string][]openai.ChatCompletionMessage
}

func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		sessions: make(map[string][]openai.ChatCompletionMessage),
	}, nil
}

func (o *OpenAI) StartSession(ctx context.Context, userID string) (string, error) {
	id := userID + "-" + uuid.NewString()
	o.sessions[id] = nil
	return id, nil
}

func (o *OpenAI) Send(ctx context.Context, sessionID, prompt string) (string, error) {
	history, ok := o.sessions[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	history = append(history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    history,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	o.sessions[sessionID] = append(history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	})
	return content, nil
}

func (o *OpenAI) EndSession(ctx context.Context, sessionID string) error {
	if _, ok := o.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}
	delete(o.sessions, sessionID)
	return nil
}
