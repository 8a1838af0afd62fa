package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/vbw-stats-scraper/internal/app"
)

// newScrapeCmd creates the 'scrape' subcommand, which performs one full run.
func newScrapeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the competition and write teams.csv and players.csv",
		Long: `Opens the competition's team listing and final standings, visits every
team roster and player page, and writes the two tables to the configured
storage. Rows go to Postgres and a completion notice to Pub/Sub when those
are configured.`,
		RunE: runScrapeCommand,
	}

	cmd.Flags().String("output-dir", "", "directory for teams.csv and players.csv")
	cmd.Flags().String("engine", "", "page loader: headless or static")
	cmd.Flags().Int("max-teams", 0, "stop after this many teams (0 = all)")
	cmd.Flags().String("competition", "", "competition slug, e.g. women-worldchampionship-2022")
	bindFlag(v, cmd, "output.dir", "output-dir")
	bindFlag(v, cmd, "browser.engine", "engine")
	bindFlag(v, cmd, "source.max_teams", "max-teams")
	bindFlag(v, cmd, "source.competition", "competition")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	st, err := resolveState(cmd.Context())
	if err != nil {
		return err
	}

	runner, err := newRunner(cmd.Context(), st.cfg, st.logger, app.Options{Stdout: cmd.OutOrStdout()})
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer runner.Close(context.WithoutCancel(cmd.Context()))

	manifest, err := runner.Run(cmd.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			st.logger.Warn("Scrape interrupted")
		}
		return err
	}

	st.logger.Info("Scrape command finished.",
		zap.String("teams_uri", manifest.TeamsURI),
		zap.String("players_uri", manifest.PlayersURI),
	)
	return nil
}
