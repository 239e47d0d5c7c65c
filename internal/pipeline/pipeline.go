package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"mailtriage/internal/message"
)

const DefaultLimit = 5

// RawMessage is one transport-encoded payload as delivered by the mailbox
// provider.
type RawMessage struct {
	ID  string
	Raw string
}

// Iterator is a finite forward-only sequence of raw messages. Next returns
// io.EOF when the sequence is exhausted.
type Iterator interface {
	Next() (RawMessage, error)
}

// Mailbox enumerates raw messages. An enumeration error is fatal for the run.
type Mailbox interface {
	Messages(ctx context.Context) (Iterator, error)
}

// Classifier produces report cells for one decoded message. Per-message
// failures are absorbed by the classifier itself; Classify never aborts
// the batch.
type Classifier interface {
	Header() []string
	Classify(ctx context.Context, msg *message.Message) []string
}

// SessionClassifier additionally holds a backend session spanning the whole
// batch run. Start failure aborts the run before any message is processed.
type SessionClassifier interface {
	Classifier
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// Sink persists the finished report.
type Sink interface {
	Write(header []string, rows [][]string) error
}

type State int

const (
	StateInit State = iota
	StateFetching
	StateClassifying
	StateReporting
	StateDone
	StateFailed
)

// Pipeline pulls messages one at a time, classifies each and materializes
// the verdicts into an ordered report. Strictly sequential: the classifier
// session is stateful and must never see concurrent sends.
type Pipeline struct {
	mailbox    Mailbox
	classifier Classifier
	sink       Sink
	limit      int
	verifyDKIM bool

	state     State
	processed int
	results   map[string][]string
	order     []string
}

func New(mailbox Mailbox, classifier Classifier, sink Sink, limit int) *Pipeline {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pipeline{
		mailbox:    mailbox,
		classifier: classifier,
		sink:       sink,
		limit:      limit,
		results:    make(map[string][]string),
	}
}

// VerifyDKIM enables per-message DKIM verification logging. Observational
// only; verdicts are unaffected.
func (p *Pipeline) VerifyDKIM(on bool) {
	p.verifyDKIM = on
}

func (p *Pipeline) State() State {
	return p.state
}

// Processed reports how many messages have been classified so far.
func (p *Pipeline) Processed() int {
	return p.processed
}

// Run drives the batch through Init, Fetching, Classifying, Reporting and
// Done. It returns an error only on fatal conditions: classifier session
// start or mailbox enumeration failure.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	p.state = StateInit

	sc, hasSession := p.classifier.(SessionClassifier)
	if hasSession {
		if err := sc.Start(ctx); err != nil {
			p.state = StateFailed
			return fmt.Errorf("init classifier backend: %w", err)
		}
	}

	p.state = StateFetching
	iter, err := p.mailbox.Messages(ctx)
	if err != nil {
		p.fail(ctx, sc, hasSession)
		return fmt.Errorf("enumerate mailbox: %w", err)
	}

	for p.processed < p.limit {
		raw, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.fail(ctx, sc, hasSession)
			return fmt.Errorf("fetch message: %w", err)
		}

		msg := message.Decode(raw.ID, raw.Raw)
		if p.verifyDKIM && msg.Raw != "" {
			p.logDKIM(msg.ID, []byte(msg.Raw))
		}

		p.state = StateClassifying
		cells := p.classifier.Classify(ctx, &msg)
		if _, seen := p.results[msg.ID]; !seen {
			p.order = append(p.order, msg.ID)
		}
		p.results[msg.ID] = cells
		p.processed++
		p.state = StateFetching
	}

	p.state = StateReporting
	rows := make([][]string, 0, len(p.order))
	for _, id := range p.order {
		rows = append(rows, append([]string{id}, p.results[id]...))
	}
	if err := p.sink.Write(p.classifier.Header(), rows); err != nil {
		log.Printf("warning: write report: %v", err)
	}

	p.state = StateDone
	if hasSession {
		if err := sc.Close(ctx); err != nil {
			log.Printf("warning: close classifier session: %v", err)
		}
	}

	log.Printf("batch complete: %d messages classified in %s", p.processed, time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, sc SessionClassifier, hasSession bool) {
	p.state = StateFailed
	if hasSession {
		if err := sc.Close(ctx); err != nil {
			log.Printf("warning: close classifier session: %v", err)
		}
	}
}

func (p *Pipeline) logDKIM(id string, raw []byte) {
	results, err := message.CheckDKIM(raw)
	if err != nil {
		log.Printf("dkim verify message %s: %v", id, err)
		return
	}
	for _, r := range results {
		log.Printf("dkim message %s: domain=%s status=%s", id, r.Domain, r.Status)
	}
}
