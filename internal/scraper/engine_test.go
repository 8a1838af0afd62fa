package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
	"github.com/JakeFAU/vbw-stats-scraper/internal/vbw"
)

const (
	site         = "https://en.volleyballworld.com"
	competition  = site + "/volleyball/competitions/women-worldchampionship-2022"
	listingURL   = competition + "/teams/"
	standingsURL = competition + "/standings/#round-f"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	// fails makes the first n loads of a URL fail with a transient error.
	fails map[string]int
	calls []string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	t.Helper()
	load := func(name string) []byte {
		// #nosec G304 -- test reads from the parser testdata directory.
		body, err := os.ReadFile(filepath.Join("..", "vbw", "testdata", name))
		require.NoError(t, err)
		return body
	}
	team := competition + "/teams/women/"
	return &fakeFetcher{
		pages: map[string][]byte{
			listingURL:                   load("teams.html"),
			standingsURL:                 load("standings.html"),
			team + "6776/players/":       load("roster_ita.html"),
			team + "6779/players/":       load("roster_srb.html"),
			team + "6776/players/168827": load("player_168827.html"),
			team + "6776/players/100001": load("player_100001.html"),
			team + "6779/players/200001": load("player_200001.html"),
		},
		fails: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if f.fails[req.URL] > 0 {
		f.fails[req.URL]--
		return Page{}, errors.New("connection reset")
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return Page{}, fmt.Errorf("status 404: %w", ErrPermanent)
	}
	return Page{URL: req.URL, FinalURL: req.URL, StatusCode: 200, Body: body, Duration: time.Millisecond}, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeIDs struct{ err error }

func (f fakeIDs) NewID() (string, error) { return "run-1", f.err }

type recorder struct{ events []progress.Event }

func (r *recorder) Emit(evt progress.Event) { r.events = append(r.events, evt) }

func (r *recorder) stages() []progress.Stage {
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

func newTestEngine(t *testing.T, cfg Config, fetcher Fetcher, deps Dependencies) *Engine {
	t.Helper()
	if cfg.ListingURL == "" {
		cfg.ListingURL = listingURL
		cfg.StandingsURL = standingsURL
	}
	deps.Fetcher = fetcher
	deps.Parser = vbw.NewParser(vbw.DefaultSelectors())
	if deps.Clock == nil {
		deps.Clock = &fakeClock{now: time.Date(2022, 10, 15, 12, 0, 0, 0, time.UTC)}
	}
	if deps.IDs == nil {
		deps.IDs = fakeIDs{}
	}
	e, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func TestEngineRun(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	core, logs := observer.New(zap.DebugLevel)
	e := newTestEngine(t, Config{Overrides: DefaultOverrides()}, newFakeFetcher(t), Dependencies{
		Progress: rec,
		Logger:   zap.New(core),
	})

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.True(t, res.FinishedAt.After(res.StartedAt))

	// Peru has no roster page and is skipped.
	require.Len(t, res.Teams, 3)
	assert.Equal(t, 2, res.Teams[0].Rank)
	assert.Equal(t, 1, res.Teams[1].Rank)
	assert.Equal(t, 0, res.Teams[2].Rank)
	assert.Equal(t, 1, logs.FilterMessage("Skipping team").Len())

	assert.Equal(t, []string{"Italy", "Serbia", "Peru"}, res.TeamsFrame.Keys())
	assert.Equal(t, []string{ColumnTeamAbbreviation, ColumnTeamID, ColumnRank}, res.TeamsFrame.Columns())
	rank, _ := res.TeamsFrame.Get("Serbia", ColumnRank)
	assert.Equal(t, "1", rank)

	assert.Equal(t, []string{"168827", "100001", "200001"}, res.PlayersFrame.Keys())
	assert.NotContains(t, res.PlayersFrame.Columns(), vbw.ColumnURL)
	assert.Equal(t, vbw.ColumnNumber, res.PlayersFrame.Columns()[0])
	pos, _ := res.PlayersFrame.Get("168827", vbw.ColumnPosition)
	assert.Equal(t, "Opposite spiker", pos)
	abbr, _ := res.PlayersFrame.Get("168827", vbw.ColumnPositionAbbreviation)
	assert.Equal(t, "OH", abbr)
	avg, _ := res.PlayersFrame.Get("168827", "attack_points_average_per_match")
	assert.Equal(t, vbw.UndefinedValue, avg)

	assert.Equal(t, Counters{Pages: 7, Failures: 1, Players: 3}, res.Counters)

	stages := rec.stages()
	assert.Equal(t, progress.StageRunStart, stages[0])
	assert.Equal(t, progress.StageRunDone, stages[len(stages)-1])
	var labels []string
	for _, evt := range rec.events {
		if evt.Stage == progress.StagePlayerDone {
			labels = append(labels, evt.Player)
		}
		assert.Equal(t, "run-1", evt.RunID)
		assert.False(t, evt.TS.IsZero())
	}
	assert.Equal(t, []string{"Italy - Jane Doe", "Italy - Mary & Co", "Serbia - Tijana Example"}, labels)

	var buf bytes.Buffer
	require.NoError(t, res.PlayersFrame.WriteCSV(&buf))
	assert.Contains(t, buf.String(), "player_id,number,name,position_abbreviation,nationality,position")
}

func TestEngineRunMaxTeams(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(t)
	e := newTestEngine(t, Config{MaxTeams: 1}, fetcher, Dependencies{})
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Teams, 1)
	assert.Equal(t, []string{"168827", "100001"}, res.PlayersFrame.Keys())
	pos, _ := res.PlayersFrame.Get("168827", vbw.ColumnPosition)
	assert.Equal(t, "Outside spiker", pos)
	assert.NotContains(t, fetcher.calls, competition+"/teams/women/6779/players/")
}

func TestEngineRunRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(t)
	fetcher.fails[standingsURL] = 2
	e := newTestEngine(t, Config{MaxTeams: 1}, fetcher, Dependencies{Retry: NewExponentialRetryPolicy(3)})
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counters.Retries)
	assert.Equal(t, 2, res.Teams[0].Rank)
}

func TestEngineRunSkipsFailedPlayer(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(t)
	delete(fetcher.pages, competition+"/teams/women/6776/players/100001")
	rec := &recorder{}
	e := newTestEngine(t, Config{MaxTeams: 1}, fetcher, Dependencies{Progress: rec})
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"168827"}, res.PlayersFrame.Keys())
	assert.Contains(t, rec.stages(), progress.StagePageError)
}

func TestEngineRunAbortsOnListingAndStandings(t *testing.T) {
	t.Parallel()

	for _, missing := range []string{listingURL, standingsURL} {
		fetcher := newFakeFetcher(t)
		delete(fetcher.pages, missing)
		e := newTestEngine(t, Config{}, fetcher, Dependencies{Retry: NewExponentialRetryPolicy(3)})
		_, err := e.Run(context.Background())
		require.Error(t, err, missing)
		assert.True(t, errors.Is(err, ErrPermanent))
		assert.Len(t, fetcher.calls, map[string]int{listingURL: 1, standingsURL: 2}[missing])
	}
}

func TestEngineRunNoTeams(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(t)
	fetcher.pages[listingURL] = []byte("<html><body><p>maintenance</p></body></html>")
	e := newTestEngine(t, Config{}, fetcher, Dependencies{})
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoTeams)
}

func TestEngineRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(t, Config{}, newFakeFetcher(t), Dependencies{Retry: NewExponentialRetryPolicy(3)})
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRunIDFailure(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, Config{}, newFakeFetcher(t), Dependencies{IDs: fakeIDs{err: errors.New("entropy")}})
	_, err := e.Run(context.Background())
	assert.ErrorContains(t, err, "generate run id")
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(context.Context, string) error {
	p.waits++
	return nil
}

func TestEngineRunPacesEveryLoad(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(t)
	pacer := &countingPacer{}
	e := newTestEngine(t, Config{MaxTeams: 1}, fetcher, Dependencies{Pacer: pacer})
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(fetcher.calls), pacer.waits)
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	parser := vbw.NewParser(vbw.DefaultSelectors())
	deps := Dependencies{Fetcher: newFakeFetcher(t), Parser: parser, Clock: &fakeClock{}, IDs: fakeIDs{}}

	_, err := NewEngine(Config{}, deps)
	assert.Error(t, err)
	_, err = NewEngine(Config{ListingURL: listingURL, StandingsURL: standingsURL, MaxTeams: -1}, deps)
	assert.Error(t, err)
	_, err = NewEngine(Config{ListingURL: listingURL, StandingsURL: standingsURL}, Dependencies{Parser: parser})
	assert.Error(t, err)
	_, err = NewEngine(Config{ListingURL: listingURL, StandingsURL: standingsURL}, deps)
	assert.NoError(t, err)
}
