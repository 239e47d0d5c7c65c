package message

import (
	"bytes"
	"encoding/base64"
	"log"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Sentinel values substituted when a field cannot be recovered from the
// raw payload. Downstream stages rely on every field being a plain string.
const (
	UnknownSender     = "Unknown Sender"
	UnknownRecipient  = "Unknown Recipient"
	UnknownDate       = "Unknown Date"
	ParseErrorSubject = "Error Parsing Message"

	NoPlainTextBody     = "[No plain text body found]"
	UndecodableBody     = "[Could not decode body]"
	UndecodableBodyPart = "[Could not decode body part]"
)

// Message is the decoded form of one raw mailbox payload. Every field is
// always a string; decode failures degrade to sentinel values instead of
// surfacing errors.
type Message struct {
	ID      string
	From    string
	To      string
	Date    string
	Subject string
	Body    string

	// Raw holds the transport-decoded document for collaborators that score
	// or verify the original bytes (spamd, DKIM). Empty when decoding failed.
	Raw string
}

// Decode turns a base64url transport blob into a Message. It never fails:
// a payload that cannot be decoded or parsed yields a placeholder Message
// with sentinel header values and an empty body.
func Decode(id, raw string) Message {
	decoded, err := DecodeRaw(raw)
	if err != nil {
		log.Printf("decode message %s: %v", id, err)
		return placeholder(id)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(ensureHeaderBlock(decoded)))
	if err != nil {
		log.Printf("parse message %s: %v", id, err)
		return placeholder(id)
	}

	return Message{
		ID:      id,
		From:    env.GetHeader("From"),
		To:      env.GetHeader("To"),
		Date:    formatDate(env.GetHeader("Date")),
		Subject: env.GetHeader("Subject"),
		Body:    extractBody(id, env),
		Raw:     string(decoded),
	}
}

// DecodeRaw decodes the transport encoding. Mailbox providers emit unpadded
// base64url; test fixtures and older providers pad.
func DecodeRaw(raw string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(raw)
}

func placeholder(id string) Message {
	return Message{
		ID:      id,
		From:    UnknownSender,
		To:      UnknownRecipient,
		Date:    UnknownDate,
		Subject: ParseErrorSubject,
		Body:    "",
	}
}

// ensureHeaderBlock prepends an empty header section when the payload starts
// with a non-header line, so a bare body parses as a headerless message.
func ensureHeaderBlock(b []byte) []byte {
	head := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		head = b[:i]
	}
	if len(head) == 0 || bytes.IndexByte(head, ':') >= 0 {
		return b
	}
	return append([]byte("\r\n"), b...)
}

// formatDate reformats an RFC 5322 date header as MM/DD/YYYY. A header that
// cannot be parsed is returned verbatim; only a missing header becomes the
// sentinel.
func formatDate(raw string) string {
	if raw == "" {
		return UnknownDate
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return raw
	}
	return t.Format("01/02/2006")
}

func extractBody(id string, env *enmime.Envelope) string {
	root := env.Root
	if root == nil {
		return ""
	}

	if !strings.HasPrefix(root.ContentType, "multipart/") {
		if hasSevereError(root) && len(root.Content) == 0 {
			log.Printf("decode body of message %s: %v", id, root.Errors[0])
			return UndecodableBody
		}
		return string(root.Content)
	}

	part := root.DepthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" &&
			!strings.Contains(strings.ToLower(p.Disposition), "attachment")
	})
	if part == nil {
		return NoPlainTextBody
	}
	if hasSevereError(part) && len(part.Content) == 0 {
		log.Printf("decode body part of message %s: %v", id, part.Errors[0])
		return UndecodableBodyPart
	}
	return string(part.Content)
}

func hasSevereError(p *enmime.Part) bool {
	for _, e := range p.Errors {
		if e.Severe {
			return true
		}
	}
	return false
}
