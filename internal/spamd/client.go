package spamd

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Client talks SPAMC/1.2 to a SpamAssassin daemon.
type Client struct {
	Host string
	Port string
}

type Result struct {
	Score    float64
	Required float64
	IsSpam   bool
	Rules    []string
}

func New(host, port string) *Client {
	return &Client{Host: host, Port: port}
}

// Check submits the raw message bytes with the SYMBOLS command and parses
// the score line and rule list from the response.
func (c *Client) Check(raw []byte) (*Result, error) {
	conn, err := net.DialTimeout("tcp", c.Host+":"+c.Port, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spamd: %w", err)
	}
	defer conn.Close()

	reqHeader := fmt.Sprintf("SYMBOLS SPAMC/1.2\r\nContent-Length: %d\r\n\r\n", len(raw))
	if _, err := conn.Write([]byte(reqHeader)); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	res := &Result{}

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty response from spamd")
	}
	statusLine := scanner.Text()
	if !strings.Contains(statusLine, "EX_OK") {
		return nil, fmt.Errorf("spamd error: %s", statusLine)
	}

	bodyStarted := false
	var bodyBuilder strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !bodyStarted {
			if line == "" {
				bodyStarted = true
				continue
			}
			if strings.HasPrefix(line, "Spam:") {
				parseSpamLine(line, res)
			}
		} else {
			bodyBuilder.WriteString(line)
		}
	}

	// SYMBOLS responds with the matched rules as a comma separated list.
	rulesStr := strings.TrimSpace(bodyBuilder.String())
	if rulesStr != "" {
		res.Rules = strings.Split(rulesStr, ",")
	}
	return res, nil
}

// parseSpamLine handles "Spam: True ; 10.0 / 5.0".
func parseSpamLine(line string, res *Result) {
	parts := strings.Split(line, ";")
	if len(parts) < 2 {
		return
	}
	boolPart := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(parts[0], "Spam:")))
	res.IsSpam = boolPart == "true" || boolPart == "yes"

	scores := strings.Split(strings.TrimSpace(parts[1]), "/")
	if len(scores) != 2 {
		return
	}
	if s, err := strconv.ParseFloat(strings.TrimSpace(scores[0]), 64); err == nil {
		res.Score = s
	}
	if r, err := strconv.ParseFloat(strings.TrimSpace(scores[1]), 64); err == nil {
		res.Required = r
	}
}
