package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailtriage/internal/pipeline"
)

// Credentials hold an OAuth2 refresh-token grant, typically sourced from
// environment variables in CI or a deployed environment.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURI     string
}

// Gmail enumerates raw messages through the Gmail REST API.
type Gmail struct {
	svc      *gmail.Service
	pageSize int64
}

func NewGmail(ctx context.Context, creds Credentials, pageSize int64) (*Gmail, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, errors.New("gmail credentials not configured (GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, GMAIL_REFRESH_TOKEN)")
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	if creds.TokenURI != "" {
		conf.Endpoint.TokenURL = creds.TokenURI
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("build gmail service: %w", err)
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Gmail{svc: svc, pageSize: pageSize}, nil
}

// Messages lists message ids up front, then fetches each raw payload lazily
// as the pipeline pulls it.
func (g *Gmail) Messages(ctx context.Context) (pipeline.Iterator, error) {
	resp, err := g.svc.Users.Messages.List("me").MaxResults(g.pageSize).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &iterator{svc: g.svc, ctx: ctx, ids: resp.Messages}, nil
}

type iterator struct {
	svc *gmail.Service
	ctx context.Context
	ids []*gmail.Message
	pos int
}

func (it *iterator) Next() (pipeline.RawMessage, error) {
	for it.pos < len(it.ids) {
		id := it.ids[it.pos].Id
		it.pos++

		msg, err := it.svc.Users.Messages.Get("me", id).Format("raw").Context(it.ctx).Do()
		if err != nil {
			return pipeline.RawMessage{}, fmt.Errorf("get message %s: %w", id, err)
		}
		if msg.Raw == "" {
			continue
		}
		return pipeline.RawMessage{ID: id, Raw: msg.Raw}, nil
	}
	return pipeline.RawMessage{}, io.EOF
}
