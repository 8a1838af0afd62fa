// Package cmd defines and implements the CLI commands for the vbwscraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/vbw-stats-scraper/internal/app"
	"github.com/JakeFAU/vbw-stats-scraper/internal/config"
	"github.com/JakeFAU/vbw-stats-scraper/internal/logging"
	"github.com/JakeFAU/vbw-stats-scraper/internal/output"
)

// Runner is the slice of the application the scrape command drives.
// Tests swap it for a fake through newRunner.
type Runner interface {
	Run(ctx context.Context) (output.Manifest, error)
	Close(ctx context.Context)
}

var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (Runner, error) {
	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type stateKeyType string

const stateKey stateKeyType = "state"

// state is what the root command resolves before any subcommand runs.
type state struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "vbwscraper",
		Short: "Scrapes team and player statistics from volleyballworld.com.",
		Long: `vbwscraper collects the team list, final standings, rosters and
individual player statistics of a volleyballworld.com competition and writes
them as teams.csv and players.csv.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadFile(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.Decode(v)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), stateKey, &state{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if st, ok := cmd.Context().Value(stateKey).(*state); ok {
				_ = st.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newScrapeCmd(v))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func resolveState(ctx context.Context) (*state, error) {
	st, ok := ctx.Value(stateKey).(*state)
	if !ok || st == nil {
		return nil, errors.New("configuration not loaded")
	}
	return st, nil
}

// bindFlag ties a flag to a config key so the flag wins over file and env.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger, lerr := logging.New(logging.Options{Development: true})
		if lerr != nil {
			logger = zap.NewExample()
		}
		logger.Fatal("Command execution failed", zap.Error(err))
	}
}
