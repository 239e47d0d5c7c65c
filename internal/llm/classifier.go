package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"mailtriage/internal/message"
	"mailtriage/internal/report"
)

// DefaultPromptTemplate is used when no template is supplied via flag or
// environment. Placeholders are substituted per message.
const DefaultPromptTemplate = "Analyze this email and give me the percent probability it is spam. " +
	"Respond with a JSON object containing \"pct_spam\" (integer 0-100) and \"tone\" " +
	"(one word describing the email's tone). " +
	"Subject: {subject}, Body: {body}, From: {from_}"

// LegacyPromptTemplate asks for a bare percentage, matching the legacy
// response parsing mode.
const LegacyPromptTemplate = "Analyze this email and give me the percent probability it is spam: " +
	"Subject: {subject}, Body: {body}, From: {from_}"

const sessionUser = "mailtriage"

// Verdict is the delegated classification for one message.
type Verdict struct {
	PctSpam int
	Tone    string
}

var defaultVerdict = Verdict{PctSpam: 0, Tone: "unknown"}

// Legacy responses carry the percentage as the leading run of digits;
// digits appearing later in the text do not count.
var digitRun = regexp.MustCompile(`^[0-9]+`)

// Classifier delegates spam classification to a conversational Backend.
// One backend session is opened per batch run and reused for every message.
type Classifier struct {
	backend  Backend
	template string

	// legacy mode expects a bare percentage in the response instead of JSON
	// and reports without the tone column.
	legacy bool

	sessionID string
	failed    uint64
}

func NewClassifier(backend Backend, template string, legacy bool) *Classifier {
	if template == "" {
		template = DefaultPromptTemplate
		if legacy {
			template = LegacyPromptTemplate
		}
	}
	return &Classifier{backend: backend, template: template, legacy: legacy}
}

// Start opens the batch session. Failure here is fatal for the run.
func (c *Classifier) Start(ctx context.Context) error {
	id, err := c.backend.StartSession(ctx, sessionUser)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	c.sessionID = id
	return nil
}

// Close ends the batch session, if one is open.
func (c *Classifier) Close(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	id := c.sessionID
	c.sessionID = ""
	return c.backend.EndSession(ctx, id)
}

func (c *Classifier) Header() []string {
	if c.legacy {
		return report.LegacyHeader
	}
	return report.TonedHeader
}

// Classify renders the report cells for one message. Per-message failures are
// logged and substituted with the default verdict; they never abort the batch.
func (c *Classifier) Classify(ctx context.Context, msg *message.Message) []string {
	v := c.ClassifyMessage(ctx, msg)
	if c.legacy {
		return []string{strconv.Itoa(v.PctSpam)}
	}
	return []string{strconv.Itoa(v.PctSpam), v.Tone}
}

func (c *Classifier) ClassifyMessage(ctx context.Context, msg *message.Message) Verdict {
	v, err := c.classify(ctx, msg)
	if err != nil {
		atomic.AddUint64(&c.failed, 1)
		log.Printf("warning: classify message %s: %v", msg.ID, err)
		return defaultVerdict
	}
	return v
}

// Failed reports how many messages fell back to the default verdict.
func (c *Classifier) Failed() uint64 {
	return atomic.LoadUint64(&c.failed)
}

func (c *Classifier) classify(ctx context.Context, msg *message.Message) (Verdict, error) {
	if c.sessionID == "" {
		return Verdict{}, fmt.Errorf("no open session")
	}
	if reason := injectionReason(msg.Body); reason != "" {
		return Verdict{}, fmt.Errorf("build prompt: %s", reason)
	}

	prompt := renderPrompt(c.template, msg)
	response, err := c.backend.Send(ctx, c.sessionID, prompt)
	if err != nil {
		return Verdict{}, fmt.Errorf("send prompt: %w", err)
	}
	return c.parse(response)
}

func renderPrompt(template string, msg *message.Message) string {
	return strings.NewReplacer(
		"{subject}", msg.Subject,
		"{body}", msg.Body,
		"{from_}", msg.From,
	).Replace(template)
}

func (c *Classifier) parse(response string) (Verdict, error) {
	text := stripFences(response)
	if c.legacy {
		v := defaultVerdict
		if digits := digitRun.FindString(text); digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil {
				return Verdict{}, fmt.Errorf("parse percentage %q: %w", digits, err)
			}
			v.PctSpam = clampPct(n)
		}
		return v, nil
	}

	var payload struct {
		PctSpam *json.Number `json:"pct_spam"`
		Tone    string       `json:"tone"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Verdict{}, fmt.Errorf("parse response JSON: %w (raw: %s)", err, text)
	}
	v := defaultVerdict
	if payload.PctSpam != nil {
		f, err := payload.PctSpam.Float64()
		if err != nil {
			return Verdict{}, fmt.Errorf("parse pct_spam %q: %w", payload.PctSpam.String(), err)
		}
		v.PctSpam = clampPct(int(f))
	}
	if payload.Tone != "" {
		v.Tone = payload.Tone
	}
	return v, nil
}

// stripFences removes markdown code fences some backends wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampPct(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
