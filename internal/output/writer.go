// Package output stores the tables of a finished run and announces them.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vbw-stats-scraper/internal/scraper"
	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
)

const csvContentType = "text/csv; charset=utf-8"

// RunCompletedEvent names the notification sent after the tables are stored.
const RunCompletedEvent = "vbw.run.completed"

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RowStore persists the rows of a run.
type RowStore interface {
	StoreRun(ctx context.Context, res scraper.Result) error
}

// Publisher pushes completion notices to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests of the written files.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Config controls where the tables are written.
type Config struct {
	TeamsFile   string
	PlayersFile string
	// PerRun places each run's files under a directory named by the run ID.
	PerRun bool
}

// Dependencies are the collaborators a Writer needs. Blobs and Hasher are
// required; Rows and Publisher are optional.
type Dependencies struct {
	Blobs     BlobStore
	Rows      RowStore
	Publisher Publisher
	Hasher    Hasher
	Logger    *zap.Logger
}

// Manifest describes the stored tables of one run. It is also the payload of
// the completion notice.
type Manifest struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TeamsURI      string    `json:"teams_uri"`
	PlayersURI    string    `json:"players_uri"`
	TeamsSHA256   string    `json:"teams_sha256"`
	PlayersSHA256 string    `json:"players_sha256"`
	Teams         int       `json:"teams"`
	Players       int       `json:"players"`
	MessageID     string    `json:"-"`
}

// Writer stores run results.
type Writer struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger
}

// NewWriter validates deps and builds a Writer.
func NewWriter(cfg Config, deps Dependencies) (*Writer, error) {
	if deps.Blobs == nil || deps.Hasher == nil {
		return nil, errors.New("blob store and hasher are required")
	}
	if cfg.TeamsFile == "" {
		cfg.TeamsFile = "teams.csv"
	}
	if cfg.PlayersFile == "" {
		cfg.PlayersFile = "players.csv"
	}
	if cfg.TeamsFile == cfg.PlayersFile {
		return nil, fmt.Errorf("teams and players files must differ, both are %q", cfg.TeamsFile)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, deps: deps, logger: logger}, nil
}

// Write stores both tables as CSV, then persists rows and publishes the
// manifest when those are configured. The manifest is returned even when a
// later step fails, so callers can report what was already written.
func (w *Writer) Write(ctx context.Context, res scraper.Result) (Manifest, error) {
	if res.TeamsFrame == nil || res.PlayersFrame == nil {
		return Manifest{}, errors.New("result has no tables")
	}
	m := Manifest{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Teams:      res.TeamsFrame.Len(),
		Players:    res.PlayersFrame.Len(),
	}

	var err error
	m.TeamsURI, m.TeamsSHA256, err = w.putFrame(ctx, w.objectPath(res.RunID, w.cfg.TeamsFile), res.TeamsFrame)
	if err != nil {
		return m, fmt.Errorf("write teams: %w", err)
	}
	m.PlayersURI, m.PlayersSHA256, err = w.putFrame(ctx, w.objectPath(res.RunID, w.cfg.PlayersFile), res.PlayersFrame)
	if err != nil {
		return m, fmt.Errorf("write players: %w", err)
	}
	w.logger.Info("Tables written",
		zap.String("run_id", res.RunID),
		zap.String("teams_uri", m.TeamsURI),
		zap.String("players_uri", m.PlayersURI),
	)

	if w.deps.Rows != nil {
		if err := w.deps.Rows.StoreRun(ctx, res); err != nil {
			return m, fmt.Errorf("store rows: %w", err)
		}
		w.logger.Debug("Rows stored", zap.String("run_id", res.RunID))
	}

	if w.deps.Publisher != nil {
		id, err := w.deps.Publisher.Publish(ctx, RunCompletedEvent, m)
		if err != nil {
			return m, fmt.Errorf("publish manifest: %w", err)
		}
		m.MessageID = id
		w.logger.Info("Run published", zap.String("run_id", res.RunID), zap.String("message_id", id))
	}
	return m, nil
}

func (w *Writer) objectPath(runID, file string) string {
	if w.cfg.PerRun && runID != "" {
		return path.Join(runID, file)
	}
	return file
}

func (w *Writer) putFrame(ctx context.Context, p string, frame *table.Frame) (string, string, error) {
	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf); err != nil {
		return "", "", fmt.Errorf("encode csv: %w", err)
	}
	sum, err := w.deps.Hasher.Hash(buf.Bytes())
	if err != nil {
		return "", "", fmt.Errorf("hash csv: %w", err)
	}
	uri, err := w.deps.Blobs.PutObject(ctx, p, csvContentType, &buf)
	if err != nil {
		return "", "", fmt.Errorf("put object: %w", err)
	}
	return uri, sum, nil
}
