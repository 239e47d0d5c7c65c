package spamd

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	"mailtriage/internal/message"
	"mailtriage/internal/report"
)

// Classifier adapts the spamd client to the batch pipeline. The daemon
// score is mapped onto the 0-100 spam percentage scale of the report.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Header() []string {
	return report.LegacyHeader
}

func (c *Classifier) Classify(ctx context.Context, msg *message.Message) []string {
	raw := []byte(msg.Raw)
	if len(raw) == 0 {
		raw = rebuildRaw(msg)
	}
	res, err := c.client.Check(raw)
	if err != nil {
		log.Printf("warning: spamd check for message %s: %v", msg.ID, err)
		return []string{"0"}
	}
	return []string{strconv.Itoa(pctFromScore(res))}
}

// rebuildRaw reassembles a minimal RFC 5322 document from the decoded
// fields, as a fallback when the original bytes were unrecoverable.
func rebuildRaw(msg *message.Message) []byte {
	s := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		msg.From, msg.To, msg.Subject, msg.Body)
	return []byte(s)
}

func pctFromScore(res *Result) int {
	if res.Required <= 0 {
		if res.IsSpam {
			return 100
		}
		return 0
	}
	pct := int(math.Round(res.Score / res.Required * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
