// Package app builds the long-lived services of a scrape run from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/vbw-stats-scraper/internal/clock/system"
	"github.com/JakeFAU/vbw-stats-scraper/internal/config"
	collyfetcher "github.com/JakeFAU/vbw-stats-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/vbw-stats-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/vbw-stats-scraper/internal/hash/sha256"
	"github.com/JakeFAU/vbw-stats-scraper/internal/id/uuid"
	"github.com/JakeFAU/vbw-stats-scraper/internal/metrics"
	"github.com/JakeFAU/vbw-stats-scraper/internal/output"
	"github.com/JakeFAU/vbw-stats-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/vbw-stats-scraper/internal/progress"
	"github.com/JakeFAU/vbw-stats-scraper/internal/progress/sinks"
	"github.com/JakeFAU/vbw-stats-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/vbw-stats-scraper/internal/scraper"
	"github.com/JakeFAU/vbw-stats-scraper/internal/storage/gcs"
	"github.com/JakeFAU/vbw-stats-scraper/internal/storage/local"
	"github.com/JakeFAU/vbw-stats-scraper/internal/storage/postgres"
	"github.com/JakeFAU/vbw-stats-scraper/internal/vbw"
)

// Options carries process-level collaborators that do not come from config.
type Options struct {
	// Stdout receives the terminal progress line. Nil disables it.
	Stdout io.Writer
	// Registerer receives the progress collectors. Nil uses the default registry.
	Registerer prometheus.Registerer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the services of one scrape run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	engine   *scraper.Engine
	writer   *output.Writer
	progress *progress.Dispatcher
	clock    scraper.Clock
	closers  []closer
}

// New initializes every service cfg enables. It fails fast, releasing what
// was already started, when any of them cannot be built.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a = &App{cfg: cfg, logger: logger, clock: system.New()}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(cfg.Metrics.Addr, logger.Named("metrics"))
		if err != nil {
			return a, err
		}
		a.onClose("metrics server", srv.Shutdown)
	}

	fetcher, err := a.newFetcher(ctx)
	if err != nil {
		return a, err
	}

	writer, err := a.newWriter(ctx)
	if err != nil {
		return a, err
	}
	a.writer = writer

	dispatcher, err := newDispatcher(logger, opts)
	if err != nil {
		return a, err
	}
	a.progress = dispatcher
	a.onClose("progress", dispatcher.Close)

	var pacer scraper.Pacer
	if cfg.Browser.HostQPS > 0 {
		pacer = ratelimit.New(ratelimit.Config{QPS: cfg.Browser.HostQPS, Burst: 1})
	}
	engine, err := scraper.NewEngine(scraper.Config{
		ListingURL:   cfg.ListingURL(),
		StandingsURL: cfg.StandingsURL(),
		MaxTeams:     cfg.Source.MaxTeams,
		Overrides:    scraper.Overrides(cfg.Overrides),
	}, scraper.Dependencies{
		Fetcher:  fetcher,
		Parser:   vbw.NewParser(cfg.Selectors),
		Pacer:    pacer,
		Retry:    scraper.NewExponentialRetryPolicy(cfg.Browser.MaxAttempts),
		Clock:    a.clock,
		IDs:      uuid.New(),
		Progress: dispatcher,
		Logger:   logger.Named("scraper"),
	})
	if err != nil {
		return a, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	logger.Info("Application services initialized",
		zap.String("engine", cfg.Browser.Engine),
		zap.String("storage", cfg.Storage.Provider),
		zap.Bool("db", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PublishEnabled()),
	)
	return a, nil
}

func (a *App) newFetcher(ctx context.Context) (scraper.Fetcher, error) {
	b := a.cfg.Browser
	switch b.Engine {
	case config.EngineStatic:
		return collyfetcher.New(collyfetcher.Config{UserAgent: b.UserAgent, Timeout: b.PageLoadTimeout}), nil
	case config.EngineHeadless:
		f, err := headless.NewChromedp(ctx, headless.Config{
			UserAgent:         b.UserAgent,
			PageLoadTimeout:   b.PageLoadTimeout,
			DisableImages:     b.DisableImages,
			DisableJavaScript: b.DisableJavaScript,
			ExecPath:          b.ExecPath,
		})
		if err != nil {
			return nil, fmt.Errorf("start headless browser: %w", err)
		}
		a.onClose("browser", func(context.Context) error {
			f.Close()
			return nil
		})
		return f, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", b.Engine)
	}
}

func (a *App) newWriter(ctx context.Context) (*output.Writer, error) {
	deps := output.Dependencies{Hasher: sha256.New(), Logger: a.logger.Named("output")}
	outCfg := output.Config{TeamsFile: a.cfg.Output.TeamsFile, PlayersFile: a.cfg.Output.PlayersFile}

	switch a.cfg.Storage.Provider {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose("gcs client", func(context.Context) error { return client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCS.Bucket, Prefix: a.cfg.Storage.GCS.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		deps.Blobs = blobs
		outCfg.PerRun = true
	default:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Output.Dir})
		if err != nil {
			return nil, fmt.Errorf("init output dir: %w", err)
		}
		deps.Blobs = blobs
	}

	if a.cfg.DB.DSN != "" {
		rows, err := postgres.NewRowStore(ctx, postgres.Config{
			DSN:          a.cfg.DB.DSN,
			TeamsTable:   a.cfg.DB.TeamsTable,
			PlayersTable: a.cfg.DB.PlayersTable,
		})
		if err != nil {
			return nil, fmt.Errorf("init row store: %w", err)
		}
		a.onClose("row store", func(context.Context) error {
			rows.Close()
			return nil
		})
		if err := rows.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Rows = rows
	}

	if a.cfg.PublishEnabled() {
		pub, err := pubsub.Connect(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicID)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.onClose("publisher", func(context.Context) error { return pub.Close() })
		deps.Publisher = pub
	}

	writer, err := output.NewWriter(outCfg, deps)
	if err != nil {
		return nil, fmt.Errorf("init writer: %w", err)
	}
	return writer, nil
}

func newDispatcher(logger *zap.Logger, opts Options) (*progress.Dispatcher, error) {
	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		// A second App in the same process keeps the first one's collectors.
		promSink = nil
	}
	list := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	if promSink != nil {
		list = append(list, promSink)
	}
	if opts.Stdout != nil {
		list = append(list, sinks.NewTerminalSink(opts.Stdout))
	}
	return progress.NewDispatcher(logger, list...), nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run scrapes once and writes the tables. OUTPUT_DONE is emitted only after
// both tables are stored.
func (a *App) Run(ctx context.Context) (output.Manifest, error) {
	res, err := a.engine.Run(ctx)
	if err != nil {
		return output.Manifest{}, fmt.Errorf("scrape: %w", err)
	}
	manifest, err := a.writer.Write(ctx, res)
	if err != nil {
		return manifest, fmt.Errorf("write output: %w", err)
	}
	a.progress.Emit(progress.Event{RunID: manifest.RunID, TS: a.clock.Now(), Stage: progress.StageOutputDone})
	a.logger.Info("Run complete",
		zap.String("run_id", manifest.RunID),
		zap.Int("teams", manifest.Teams),
		zap.Int("players", manifest.Players),
		zap.Int("failures", res.Counters.Failures),
	)
	return manifest, nil
}

// Close shuts services down in reverse start order.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("Error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
