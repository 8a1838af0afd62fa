package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{RunID: "r", TS: now, Stage: progress.StageRunStart},
		{RunID: "r", TS: now, Stage: progress.StagePageDone, Kind: "player", URL: "u", Dur: 200 * time.Millisecond},
		{RunID: "r", TS: now, Stage: progress.StagePageError, Kind: "player", URL: "u", Dur: time.Second},
		{RunID: "r", TS: now, Stage: progress.StageRunDone, Dur: 90 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(string(progress.StageRunStart))))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(string(progress.StagePageError))))
	require.Equal(t, 2, testutil.CollectAndCount(sink.pageDuration, "vbw_progress_page_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "vbw_progress_run_duration_seconds"))

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "duplicate registration must fail")
}
