package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini runs conversations against the Gemini API, one chat session per
// session id.
type Gemini struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	sessions map[string]*genai.ChatSession
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	return &Gemini{
		client:   client,
		model:    model,
		sessions: make(map[string]*genai.ChatSession),
	}, nil
}

func (g *Gemini) StartSession(ctx context.Context, userID string) (string, error) {
	id := userID + "-" + uuid.NewString()
	g.sessions[id] = g.model.StartChat()
	return id, nil
}

func (g *Gemini) Send(ctx context.Context, sessionID, prompt string) (string, error) {
	chat, ok := g.sessions[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text += string(txt)
		}
	}
	return text, nil
}

func (g *Gemini) EndSession(ctx context.Context, sessionID string) error {
	if _, ok := g.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}
	delete(g.sessions, sessionID)
	return nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
