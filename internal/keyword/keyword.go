package keyword

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// Verdict is the rule-based classification for one message body.
type Verdict struct {
	IsSpam     bool
	Importance string
}

var spamKeywords = []string{
	"unsubscribe", "buy now", "click here", "winner", "free", "offer", "act now",
}

var (
	highPriority = regexp.MustCompile(`(?i)\b(urgent|immediately|asap|meeting|schedule)\b`)
	lowPriority  = regexp.MustCompile(`(?i)\b(low priority|ignore)\b`)
)

// Stats are plain run counters, read after a batch completes.
type Stats struct {
	Processed      uint64
	Spam           uint64
	HighImportance uint64
}

// Classifier detects spam and importance using fixed keyword rules. It is
// deterministic and safe for any input, including the empty string.
type Classifier struct {
	processed uint64
	spam      uint64
	high      uint64
}

func New() *Classifier {
	return &Classifier{}
}

// Analyze matches the body against the spam keyword set and the importance
// triggers. High-priority triggers win over low-priority ones.
func (c *Classifier) Analyze(body string) Verdict {
	atomic.AddUint64(&c.processed, 1)

	lower := strings.ToLower(body)
	v := Verdict{Importance: "normal"}
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			v.IsSpam = true
			atomic.AddUint64(&c.spam, 1)
			break
		}
	}

	switch {
	case highPriority.MatchString(body):
		v.Importance = "high"
		atomic.AddUint64(&c.high, 1)
	case lowPriority.MatchString(body):
		v.Importance = "low"
	}
	return v
}

func (c *Classifier) Stats() Stats {
	return Stats{
		Processed:      atomic.LoadUint64(&c.processed),
		Spam:           atomic.LoadUint64(&c.spam),
		HighImportance: atomic.LoadUint64(&c.high),
	}
}
