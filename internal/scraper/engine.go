package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JakeFAU/vbw-stats-scraper/internal/metrics"
	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
	"github.com/JakeFAU/vbw-stats-scraper/internal/vbw"
	"go.uber.org/zap"
)

var (
	// ErrNoTeams is returned when the listing page yields no team cards.
	ErrNoTeams = errors.New("no teams found on listing page")
	// ErrPermanent marks page load failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent page failure")
)

// Teams table layout.
const (
	TeamsIndex             = "team_name"
	ColumnTeamAbbreviation = "team_abbreviation"
	ColumnTeamID           = "team_id"
	ColumnTeamURL          = "team_url"
	ColumnRank             = "rank"
	PlayersIndex           = "player_id"
)

// Config controls what a run scrapes.
type Config struct {
	ListingURL   string
	StandingsURL string
	// MaxTeams limits the teams scraped; 0 scrapes all of them.
	MaxTeams  int
	Overrides Overrides
}

// Dependencies are the collaborators an Engine needs. Fetcher, Parser, Clock
// and IDs are required; the rest fall back to no-ops.
type Dependencies struct {
	Fetcher  Fetcher
	Parser   *vbw.Parser
	Pacer    Pacer
	Retry    RetryPolicy
	Clock    Clock
	IDs      IDGenerator
	Progress progress.Emitter
	Logger   *zap.Logger
}

// Engine runs scrapes sequentially, one page at a time.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	parser   *vbw.Parser
	pacer    Pacer
	retry    RetryPolicy
	clock    Clock
	ids      IDGenerator
	progress progress.Emitter
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewEngine validates cfg and deps and builds an Engine.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.ListingURL == "" || cfg.StandingsURL == "" {
		return nil, errors.New("listing and standings urls are required")
	}
	if cfg.MaxTeams < 0 {
		return nil, errors.New("max teams must be >= 0")
	}
	if deps.Fetcher == nil || deps.Parser == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("fetcher, parser, clock and id generator are required")
	}
	e := &Engine{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		parser:   deps.Parser,
		pacer:    deps.Pacer,
		retry:    deps.Retry,
		clock:    deps.Clock,
		ids:      deps.IDs,
		progress: deps.Progress,
		logger:   deps.Logger,
		sleep:    sleepCtx,
	}
	if e.retry == nil {
		e.retry = NewExponentialRetryPolicy(1)
	}
	if e.progress == nil {
		e.progress = progress.Nop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// run carries the state of a single Run call.
type run struct {
	id       string
	counters Counters
}

// Run scrapes the listing, the standings, then every team's roster and player
// pages. A failed player page skips that player and a failed roster page skips
// that team; listing and standings failures abort the run.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	r := &run{id: runID}
	started := e.clock.Now()
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("Starting scrape", zap.String("listing_url", e.cfg.ListingURL))
	e.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart})

	teams, err := e.scrapeTeams(ctx, r)
	if err != nil {
		return Result{}, err
	}

	playersFrame := table.NewFrame(PlayersIndex)
	for _, team := range teams {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("scrape canceled: %w", err)
		}
		teamPlayers, err := e.scrapeTeam(ctx, r, team)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("scrape canceled: %w", ctx.Err())
			}
			logger.Warn("Skipping team", zap.String("team", team.Name), zap.Error(err))
			continue
		}
		for _, p := range teamPlayers {
			playersFrame.Upsert(p.ID, p.Row)
		}
		e.emit(progress.Event{RunID: runID, Stage: progress.StageTeamDone, Team: team.Name})
	}

	if len(e.cfg.Overrides) > 0 {
		n := e.cfg.Overrides.Apply(playersFrame, logger)
		logger.Debug("Applied overrides", zap.Int("fields", n))
	}
	playersFrame.Drop(vbw.ColumnURL)
	r.counters.Players = playersFrame.Len()
	metrics.ObservePlayers(playersFrame.Len())

	finished := e.clock.Now()
	e.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone, Dur: finished.Sub(started)})
	logger.Info("Scrape finished",
		zap.Int("teams", len(teams)),
		zap.Int("players", r.counters.Players),
		zap.Int("pages", r.counters.Pages),
		zap.Int("failures", r.counters.Failures),
		zap.Duration("elapsed", finished.Sub(started)),
	)
	return Result{
		RunID:        runID,
		StartedAt:    started,
		FinishedAt:   finished,
		Teams:        teams,
		TeamsFrame:   TeamsFrame(teams),
		PlayersFrame: playersFrame,
		Counters:     r.counters,
	}, nil
}

func (e *Engine) scrapeTeams(ctx context.Context, r *run) ([]vbw.Team, error) {
	page, err := e.load(ctx, r, FetchRequest{URL: e.cfg.ListingURL, Kind: KindListing})
	if err != nil {
		return nil, fmt.Errorf("load team listing: %w", err)
	}
	teams, err := e.parser.Teams(page.Body, page.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse team listing: %w", err)
	}
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}
	if e.cfg.MaxTeams > 0 && len(teams) > e.cfg.MaxTeams {
		teams = teams[:e.cfg.MaxTeams]
	}

	page, err = e.load(ctx, r, FetchRequest{URL: e.cfg.StandingsURL, Kind: KindStandings})
	if err != nil {
		return nil, fmt.Errorf("load standings: %w", err)
	}
	ids, err := e.parser.Standings(page.Body, page.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse standings: %w", err)
	}
	vbw.ApplyRanks(teams, ids)
	return teams, nil
}

func (e *Engine) scrapeTeam(ctx context.Context, r *run, team vbw.Team) ([]vbw.Player, error) {
	page, err := e.load(ctx, r, FetchRequest{URL: vbw.RosterURL(team.URL), Kind: KindRoster})
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	refs, err := e.parser.Roster(page.Body, page.BaseURL())
	if err != nil {
		r.counters.Failures++
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	players := make([]vbw.Player, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("roster canceled: %w", err)
		}
		player, err := e.scrapePlayer(ctx, r, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("roster canceled: %w", ctx.Err())
			}
			e.logger.Warn("Skipping player",
				zap.String("run_id", r.id),
				zap.String("team", team.Name),
				zap.String("url", ref.URL),
				zap.Error(err),
			)
			continue
		}
		players = append(players, player)
		e.emit(progress.Event{
			RunID:  r.id,
			Stage:  progress.StagePlayerDone,
			Team:   team.Name,
			Player: player.Get(vbw.ColumnNationality) + " - " + player.Get(vbw.ColumnName),
			URL:    ref.URL,
		})
	}
	return players, nil
}

func (e *Engine) scrapePlayer(ctx context.Context, r *run, ref vbw.PlayerRef) (vbw.Player, error) {
	page, err := e.load(ctx, r, FetchRequest{URL: ref.URL, Kind: KindPlayer})
	if err != nil {
		return vbw.Player{}, fmt.Errorf("load player: %w", err)
	}
	player, err := e.parser.Player(page.Body, page.BaseURL(), ref)
	if err != nil {
		r.counters.Failures++
		return vbw.Player{}, fmt.Errorf("parse player: %w", err)
	}
	return player, nil
}

// load fetches one page with pacing and retries, recording metrics and
// progress for every attempt outcome.
func (e *Engine) load(ctx context.Context, r *run, req FetchRequest) (Page, error) {
	for attempt := 1; ; attempt++ {
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, req.URL); err != nil {
				return Page{}, fmt.Errorf("pace %s: %w", req.URL, err)
			}
		}
		start := time.Now()
		page, err := e.fetcher.Fetch(ctx, req)
		dur := time.Since(start)
		if page.Duration > 0 {
			dur = page.Duration
		}
		if err == nil {
			r.counters.Pages++
			metrics.ObservePage(string(req.Kind), req.URL, strconv.Itoa(page.StatusCode), len(page.Body), dur)
			e.emit(progress.Event{
				RunID: r.id, Stage: progress.StagePageDone, Kind: string(req.Kind), URL: req.URL, Dur: dur,
			})
			return page, nil
		}

		metrics.ObservePage(string(req.Kind), req.URL, "error", 0, dur)
		if !e.retry.ShouldRetry(err, attempt) || ctx.Err() != nil {
			r.counters.Failures++
			e.emit(progress.Event{
				RunID: r.id, Stage: progress.StagePageError, Kind: string(req.Kind), URL: req.URL,
				Dur: dur, Note: err.Error(),
			})
			return Page{}, fmt.Errorf("fetch %s: %w", req.URL, err)
		}
		r.counters.Retries++
		metrics.ObserveRetry(string(req.Kind))
		backoff := e.retry.Backoff(attempt)
		e.logger.Debug("Retrying page",
			zap.String("run_id", r.id),
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := e.sleep(ctx, backoff); err != nil {
			return Page{}, fmt.Errorf("retry %s: %w", req.URL, err)
		}
	}
}

func (e *Engine) emit(evt progress.Event) {
	evt.TS = e.clock.Now()
	e.progress.Emit(evt)
}

// TeamsFrame lays teams out as the teams table, indexed by team name. The
// team URL column is omitted.
func TeamsFrame(teams []vbw.Team) *table.Frame {
	frame := table.NewFrame(TeamsIndex, ColumnTeamAbbreviation, ColumnTeamID, ColumnTeamURL, ColumnRank)
	for _, t := range teams {
		frame.Upsert(t.Name, table.Row{
			{Column: ColumnTeamAbbreviation, Value: t.Abbreviation},
			{Column: ColumnTeamID, Value: t.ID},
			{Column: ColumnTeamURL, Value: t.URL},
			{Column: ColumnRank, Value: strconv.Itoa(t.Rank)},
		})
	}
	frame.Drop(ColumnTeamURL)
	return frame
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
