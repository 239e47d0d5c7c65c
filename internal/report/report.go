package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// Report headers. The legacy header is used by the keyword, spamd and
// legacy-LLM modes; the toned header by the JSON LLM mode.
var (
	LegacyHeader = []string{"Email ID", "Percentage Probability of SPAM"}
	TonedHeader  = []string{"Email ID", "Percentage Probability of SPAM", "Tone"}
)

// CSV persists a report to a file, header first, one row per message.
type CSV struct {
	Path string
}

func (c CSV) Write(header []string, rows [][]string) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", c.Path, err)
	}
	return f.Close()
}

// Table renders the report as a console table.
type Table struct {
	Out io.Writer
}

func (t Table) Write(header []string, rows [][]string) error {
	out := t.Out
	if out == nil {
		out = os.Stdout
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return nil
}

// Multi fans a report out to several sinks. Every sink is attempted; the
// first error is returned.
type Multi []interface {
	Write(header []string, rows [][]string) error
}

func (m Multi) Write(header []string, rows [][]string) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Write(header, rows); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
