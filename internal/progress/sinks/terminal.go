package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
)

// clearLine erases the current terminal line so the status line is rewritten
// in place.
const clearLine = "\x1b[2K"

// TerminalSink keeps a single status line updated with the team or player
// being scraped, and prints the page URLs of the listing and standings steps.
type TerminalSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalSink writes status lines to out.
func NewTerminalSink(out io.Writer) *TerminalSink {
	if out == nil {
		out = io.Discard
	}
	return &TerminalSink{out: out}
}

// Consume renders the events that matter to someone watching the run.
func (s *TerminalSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		var err error
		switch evt.Stage {
		case progress.StageRunStart:
			_, err = fmt.Fprintln(s.out, "Opening page")
		case progress.StagePageDone:
			if evt.Kind == "listing" || evt.Kind == "standings" {
				_, err = fmt.Fprintf(s.out, "%s %s\n", clearLine, evt.URL)
			}
		case progress.StageTeamDone:
			_, err = fmt.Fprintf(s.out, "%s  - %s\r", clearLine, evt.Team)
		case progress.StagePlayerDone:
			_, err = fmt.Fprintf(s.out, "%s %s\r", clearLine, evt.Player)
		case progress.StageOutputDone:
			_, err = fmt.Fprintf(s.out, "%s Done.\n", clearLine)
		}
		if err != nil {
			return fmt.Errorf("write progress line: %w", err)
		}
	}
	return nil
}

// Close terminates any pending status line.
func (s *TerminalSink) Close(context.Context) error {
	return nil
}
