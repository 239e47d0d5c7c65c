package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"testing"

	"mailtriage/internal/message"
)

func encodeRaw(body string) string {
	raw := "From: sender@example.com\r\nSubject: test\r\n\r\n" + body
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

type sliceIterator struct {
	msgs   []RawMessage
	failAt int // fail on the nth Next call (1-based); 0 disables
	calls  int
}

func (it *sliceIterator) Next() (RawMessage, error) {
	it.calls++
	if it.failAt > 0 && it.calls == it.failAt {
		return RawMessage{}, errors.New("transport error")
	}
	if len(it.msgs) == 0 {
		return RawMessage{}, io.EOF
	}
	m := it.msgs[0]
	it.msgs = it.msgs[1:]
	return m, nil
}

type fakeMailbox struct {
	iter    *sliceIterator
	listErr error
}

func (f *fakeMailbox) Messages(ctx context.Context) (Iterator, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.iter, nil
}

type fakeClassifier struct {
	seen     []message.Message
	startErr error
	started  bool
	closed   bool
}

func (f *fakeClassifier) Header() []string { return []string{"Email ID", "Percentage Probability of SPAM"} }

func (f *fakeClassifier) Classify(ctx context.Context, msg *message.Message) []string {
	f.seen = append(f.seen, *msg)
	return []string{strconv.Itoa(len(f.seen))}
}

func (f *fakeClassifier) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeClassifier) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type captureSink struct {
	header []string
	rows   [][]string
	err    error
	writes int
}

func (s *captureSink) Write(header []string, rows [][]string) error {
	s.writes++
	s.header = header
	s.rows = rows
	return s.err
}

func mailboxWith(n int) *fakeMailbox {
	var msgs []RawMessage
	for i := 0; i < n; i++ {
		msgs = append(msgs, RawMessage{
			ID:  fmt.Sprintf("email_%03d", i+1),
			Raw: encodeRaw(fmt.Sprintf("body %d", i+1)),
		})
	}
	return &fakeMailbox{iter: &sliceIterator{msgs: msgs}}
}

func TestRunHonorsLimit(t *testing.T) {
	mailbox := mailboxWith(8)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 3)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(classifier.seen) != 3 {
		t.Errorf("classified %d messages, want 3", len(classifier.seen))
	}
	if len(sink.rows) != 3 {
		t.Errorf("report has %d rows, want 3", len(sink.rows))
	}
	if p.State() != StateDone {
		t.Errorf("state = %v, want StateDone", p.State())
	}
}

func TestRunProcessesAllWhenFewerThanLimit(t *testing.T) {
	mailbox := mailboxWith(2)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.rows) != 2 {
		t.Errorf("report has %d rows, want 2", len(sink.rows))
	}
}

func TestRunPreservesOrder(t *testing.T) {
	mailbox := mailboxWith(3)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for i, row := range sink.rows {
		wantID := fmt.Sprintf("email_%03d", i+1)
		if row[0] != wantID {
			t.Errorf("row %d id = %q, want %q", i, row[0], wantID)
		}
	}
}

func TestRunDecodesBeforeClassifying(t *testing.T) {
	mailbox := mailboxWith(1)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if classifier.seen[0].Body != "body 1" {
		t.Errorf("classifier saw body %q, want decoded body", classifier.seen[0].Body)
	}
	if classifier.seen[0].From != "sender@example.com" {
		t.Errorf("classifier saw from %q", classifier.seen[0].From)
	}
}

func TestRunMalformedMessageStillReported(t *testing.T) {
	mailbox := &fakeMailbox{iter: &sliceIterator{msgs: []RawMessage{
		{ID: "bad_1", Raw: "!!! not base64 !!!"},
	}}}
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.rows) != 1 || sink.rows[0][0] != "bad_1" {
		t.Errorf("rows = %v, want the placeholder message reported", sink.rows)
	}
	if classifier.seen[0].Subject != message.ParseErrorSubject {
		t.Errorf("classifier saw subject %q, want sentinel", classifier.seen[0].Subject)
	}
}

func TestRunSessionLifecycle(t *testing.T) {
	mailbox := mailboxWith(1)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !classifier.started {
		t.Error("session was not started")
	}
	if !classifier.closed {
		t.Error("session was not closed")
	}
}

func TestRunStartFailureIsFatal(t *testing.T) {
	mailbox := mailboxWith(3)
	classifier := &fakeClassifier{startErr: errors.New("no backend")}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error from session start")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want StateFailed", p.State())
	}
	if len(classifier.seen) != 0 {
		t.Errorf("classified %d messages after fatal init", len(classifier.seen))
	}
	if sink.writes != 0 {
		t.Error("report written after fatal init")
	}
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	mailbox := &fakeMailbox{listErr: errors.New("mailbox unavailable")}
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected fatal enumeration error")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %v, want StateFailed", p.State())
	}
	if !classifier.closed {
		t.Error("session not closed on fatal enumeration error")
	}
}

func TestRunMidFetchFailureIsFatal(t *testing.T) {
	mailbox := mailboxWith(3)
	mailbox.iter.failAt = 2
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected fatal fetch error")
	}
	if len(classifier.seen) != 1 {
		t.Errorf("classified %d messages before failure, want 1", len(classifier.seen))
	}
}

func TestRunSinkErrorIsNotFatal(t *testing.T) {
	mailbox := mailboxWith(1)
	classifier := &fakeClassifier{}
	sink := &captureSink{err: errors.New("disk full")}

	p := New(mailbox, classifier, sink, 5)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("sink error must not fail the run: %v", err)
	}
	if p.State() != StateDone {
		t.Errorf("state = %v, want StateDone", p.State())
	}
	if !classifier.closed {
		t.Error("session not closed after sink error")
	}
}

func TestRunDefaultLimit(t *testing.T) {
	mailbox := mailboxWith(9)
	classifier := &fakeClassifier{}
	sink := &captureSink{}

	p := New(mailbox, classifier, sink, 0)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.rows) != DefaultLimit {
		t.Errorf("report has %d rows, want default limit %d", len(sink.rows), DefaultLimit)
	}
}
