package sinks

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
)

func TestTerminalSinkRendersStatusLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r", TS: now, Stage: progress.StageRunStart},
		{RunID: "r", TS: now, Stage: progress.StagePageDone, Kind: "listing", URL: "https://x/teams/"},
		{RunID: "r", TS: now, Stage: progress.StagePageDone, Kind: "player", URL: "https://x/p/1"},
		{RunID: "r", TS: now, Stage: progress.StageTeamDone, Team: "Italy"},
		{RunID: "r", TS: now, Stage: progress.StagePlayerDone, Player: "Italy - Jane Doe"},
		{RunID: "r", TS: now, Stage: progress.StageRunDone},
		{RunID: "r", TS: now, Stage: progress.StageOutputDone},
	}))
	require.NoError(t, sink.Close(context.Background()))

	want := "Opening page\n" +
		"\x1b[2K https://x/teams/\n" +
		"\x1b[2K  - Italy\r" +
		"\x1b[2K Italy - Jane Doe\r" +
		"\x1b[2K Done.\n"
	assert.Equal(t, want, buf.String())
}

func TestTerminalSinkWaitsForOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r", TS: time.Now(), Stage: progress.StageRunDone},
	}))
	assert.NotContains(t, buf.String(), "Done.")
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r", TS: now, Stage: progress.StagePageDone, Kind: "roster", URL: "u"},
		{RunID: "r", TS: now, Stage: progress.StagePageError, Kind: "player", URL: "u", Note: "timeout"},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "timeout", entries[1].ContextMap()["note"])
}
