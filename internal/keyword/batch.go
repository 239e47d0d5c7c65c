package keyword

import (
	"context"
	"log"

	"mailtriage/internal/message"
	"mailtriage/internal/report"
)

// Header and Classify adapt the rule-based classifier to the batch pipeline.
// The report carries a spam percentage column, so the boolean verdict maps
// to 100/0; importance is surfaced through logs and counters.

func (c *Classifier) Header() []string {
	return report.LegacyHeader
}

func (c *Classifier) Classify(ctx context.Context, msg *message.Message) []string {
	v := c.Analyze(msg.Body)
	if v.Importance != "normal" {
		log.Printf("message %s: importance=%s", msg.ID, v.Importance)
	}
	if v.IsSpam {
		return []string{"100"}
	}
	return []string{"0"}
}
