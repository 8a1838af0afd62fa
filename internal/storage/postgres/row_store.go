// Package postgres persists scraped tables into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/vbw-stats-scraper/internal/scraper"
	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultTeamsTable   = "vbw_teams"
	DefaultPlayersTable = "vbw_players"
)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN             string
	TeamsTable      string
	PlayersTable    string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RowStore writes the rows of a run into the teams and players tables.
type RowStore struct {
	pool         txPool
	teamsTable   string
	playersTable string
}

// NewRowStore connects to Postgres using cfg.
func NewRowStore(ctx context.Context, cfg Config) (*RowStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRowStoreWithPool(pool, cfg.TeamsTable, cfg.PlayersTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRowStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRowStoreWithPool(pool txPool, teamsTable, playersTable string) (*RowStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if teamsTable == "" {
		teamsTable = DefaultTeamsTable
	}
	if playersTable == "" {
		playersTable = DefaultPlayersTable
	}
	for _, name := range []string{teamsTable, playersTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &RowStore{pool: pool, teamsTable: teamsTable, playersTable: playersTable}, nil
}

// Close releases the underlying pool resources.
func (s *RowStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the target tables when they do not exist.
func (s *RowStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id            TEXT        NOT NULL,
	team_name         TEXT        NOT NULL,
	team_abbreviation TEXT        NOT NULL,
	team_id           TEXT        NOT NULL,
	rank              INTEGER     NOT NULL,
	scraped_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, team_name)
)`, s.teamsTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id     TEXT        NOT NULL,
	player_id  TEXT        NOT NULL,
	attributes JSONB       NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, player_id)
)`, s.playersTable),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// StoreRun inserts every team and player row of res in one transaction.
func (s *RowStore) StoreRun(ctx context.Context, res scraper.Result) (err error) {
	if s == nil || s.pool == nil {
		return errors.New("row store is not configured")
	}
	if res.RunID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	teamsQuery := fmt.Sprintf(`
INSERT INTO %s (run_id, team_name, team_abbreviation, team_id, rank, scraped_at)
VALUES ($1,$2,$3,$4,$5,$6)`, s.teamsTable)
	for _, team := range res.Teams {
		if _, err := tx.Exec(ctx, teamsQuery,
			res.RunID, team.Name, team.Abbreviation, team.ID, team.Rank, res.FinishedAt,
		); err != nil {
			return fmt.Errorf("insert team %q: %w", team.Name, err)
		}
	}

	if res.PlayersFrame != nil {
		playersQuery := fmt.Sprintf(`
INSERT INTO %s (run_id, player_id, attributes, scraped_at)
VALUES ($1,$2,$3,$4)`, s.playersTable)
		for _, id := range res.PlayersFrame.Keys() {
			attrs, err := attributesJSON(res.PlayersFrame, id)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, playersQuery, res.RunID, id, attrs, res.FinishedAt); err != nil {
				return fmt.Errorf("insert player %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// attributesJSON encodes the populated cells of a player row.
func attributesJSON(frame *table.Frame, key string) ([]byte, error) {
	attrs := make(map[string]string, len(frame.Columns()))
	for _, column := range frame.Columns() {
		if v, ok := frame.Get(key, column); ok {
			attrs[column] = v
		}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal player %s: %w", key, err)
	}
	return data, nil
}
