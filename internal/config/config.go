// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/vbw-stats-scraper/internal/vbw"
)

// EnvPrefix is prepended to environment overrides, e.g. VBW_SOURCE_COMPETITION.
const EnvPrefix = "VBW"

// Browser engines.
const (
	EngineHeadless = "headless"
	EngineStatic   = "static"
)

// Storage providers.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source    SourceConfig                 `mapstructure:"source"`
	Browser   BrowserConfig                `mapstructure:"browser"`
	Output    OutputConfig                 `mapstructure:"output"`
	Storage   StorageConfig                `mapstructure:"storage"`
	DB        DBConfig                     `mapstructure:"db"`
	PubSub    PubSubConfig                 `mapstructure:"pubsub"`
	Metrics   MetricsConfig                `mapstructure:"metrics"`
	Logging   LoggingConfig                `mapstructure:"logging"`
	Selectors vbw.Selectors                `mapstructure:"selectors"`
	Overrides map[string]map[string]string `mapstructure:"overrides"`
}

// SourceConfig locates the competition pages.
type SourceConfig struct {
	Website       string `mapstructure:"website"`
	Competition   string `mapstructure:"competition"`
	TeamsPath     string `mapstructure:"teams_path"`
	StandingsPath string `mapstructure:"standings_path"`
	MaxTeams      int    `mapstructure:"max_teams"`
}

// BrowserConfig controls how pages are loaded.
type BrowserConfig struct {
	Engine            string        `mapstructure:"engine"`
	UserAgent         string        `mapstructure:"user_agent"`
	PageLoadTimeout   time.Duration `mapstructure:"page_load_timeout"`
	DisableImages     bool          `mapstructure:"disable_images"`
	DisableJavaScript bool          `mapstructure:"disable_javascript"`
	HostQPS           float64       `mapstructure:"host_qps"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	ExecPath          string        `mapstructure:"exec_path"`
}

// OutputConfig names the written tables.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	TeamsFile   string `mapstructure:"teams_file"`
	PlayersFile string `mapstructure:"players_file"`
}

// StorageConfig selects where tables are written.
type StorageConfig struct {
	Provider string    `mapstructure:"provider"`
	GCS      GCSConfig `mapstructure:"gcs"`
}

// GCSConfig locates the bucket used by the gcs provider.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// DBConfig controls optional row persistence. An empty DSN disables it.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	TeamsTable   string `mapstructure:"teams_table"`
	PlayersTable string `mapstructure:"players_table"`
}

// PubSubConfig holds the completion notice destination.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// New returns a Viper instance with defaults and environment bindings.
// Commands bind their flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from an optional file plus environment.
func Load(path string) (Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return Config{}, err
	}
	return Decode(v)
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals and validates v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.website", "https://en.volleyballworld.com/volleyball/competitions")
	v.SetDefault("source.competition", "women-worldchampionship-2022")
	v.SetDefault("source.teams_path", "teams/")
	v.SetDefault("source.standings_path", "standings/#round-f")
	v.SetDefault("source.max_teams", 0)
	v.SetDefault("browser.engine", EngineHeadless)
	v.SetDefault("browser.user_agent", "vbw-stats-scraper/1.0")
	v.SetDefault("browser.page_load_timeout", 10*time.Second)
	v.SetDefault("browser.disable_images", true)
	v.SetDefault("browser.disable_javascript", true)
	v.SetDefault("browser.host_qps", 0)
	v.SetDefault("browser.max_attempts", 3)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("output.dir", "./data")
	v.SetDefault("output.teams_file", "teams.csv")
	v.SetDefault("output.players_file", "players.csv")
	v.SetDefault("storage.provider", StorageLocal)
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "vbw")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.teams_table", "vbw_teams")
	v.SetDefault("db.players_table", "vbw_players")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")

	sel := vbw.DefaultSelectors()
	v.SetDefault("selectors.team_card_class", sel.TeamCardClass)
	v.SetDefault("selectors.team_abbr_class", sel.TeamAbbrClass)
	v.SetDefault("selectors.team_name_class", sel.TeamNameClass)
	v.SetDefault("selectors.standings_rows_xpath", sel.StandingsRowsXPath)
	v.SetDefault("selectors.roster_rows_xpath", sel.RosterRowsXPath)
	v.SetDefault("selectors.roster_cell_class", sel.RosterCellClass)
	v.SetDefault("selectors.player_col_class", sel.PlayerColClass)
	v.SetDefault("selectors.player_head_class", sel.PlayerHeadClass)
	v.SetDefault("selectors.player_text_class", sel.PlayerTextClass)
	v.SetDefault("selectors.player_sections", sel.PlayerSections)
	v.SetDefault("selectors.derived_markers", sel.DerivedMarkers)

	v.SetDefault("overrides", map[string]any{
		"168827": map[string]any{"position": "Opposite spiker"},
	})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.Website) == "" {
		return errors.New("source.website is required")
	}
	if u, err := url.Parse(c.Source.Website); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.website must be an absolute url, got %q", c.Source.Website)
	}
	if strings.TrimSpace(c.Source.Competition) == "" {
		return errors.New("source.competition is required")
	}
	if c.Source.MaxTeams < 0 {
		return errors.New("source.max_teams must be >= 0")
	}
	switch c.Browser.Engine {
	case EngineHeadless, EngineStatic:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineHeadless, EngineStatic, c.Browser.Engine)
	}
	if c.Browser.PageLoadTimeout <= 0 {
		return errors.New("browser.page_load_timeout must be > 0")
	}
	if c.Browser.MaxAttempts < 1 {
		return errors.New("browser.max_attempts must be >= 1")
	}
	if c.Browser.HostQPS < 0 {
		return errors.New("browser.host_qps must be >= 0")
	}
	switch c.Storage.Provider {
	case StorageLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return errors.New("output.dir is required for local storage")
		}
	case StorageGCS:
		if strings.TrimSpace(c.Storage.GCS.Bucket) == "" {
			return errors.New("storage.gcs.bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("storage.provider must be %q or %q, got %q", StorageLocal, StorageGCS, c.Storage.Provider)
	}
	if c.Output.TeamsFile == "" || c.Output.PlayersFile == "" {
		return errors.New("output.teams_file and output.players_file are required")
	}
	if c.Output.TeamsFile == c.Output.PlayersFile {
		return errors.New("output.teams_file and output.players_file must differ")
	}
	for key, name := range map[string]string{
		"db.teams_table":   c.DB.TeamsTable,
		"db.players_table": c.DB.PlayersTable,
	} {
		if !validTableName.MatchString(name) {
			return fmt.Errorf("%s must be a valid identifier, got %q", key, name)
		}
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return errors.New("pubsub.project_id and pubsub.topic_id must be set together")
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	return nil
}

// ListingURL is the competition's team listing page.
func (c Config) ListingURL() string {
	return c.pageURL(c.Source.TeamsPath)
}

// StandingsURL is the competition's final standings page.
func (c Config) StandingsURL() string {
	return c.pageURL(c.Source.StandingsPath)
}

func (c Config) pageURL(p string) string {
	return strings.TrimRight(c.Source.Website, "/") + "/" +
		strings.Trim(c.Source.Competition, "/") + "/" +
		strings.TrimLeft(p, "/")
}

// PublishEnabled reports whether completion notices are configured.
func (c Config) PublishEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicID != ""
}
