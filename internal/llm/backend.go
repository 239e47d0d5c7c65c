package llm

import (
	"context"
	"errors"
)

var ErrUnknownSession = errors.New("unknown session")

// Backend is a stateful conversational AI capability. One session is opened
// per batch run and reused across messages; sends within a session must not
// be issued concurrently.
type Backend interface {
	StartSession(ctx context.Context, userID string) (string, error)
	Send(ctx context.Context, sessionID, prompt string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
}
