// Package vbw parses the team listing, standings, roster, and player pages of
// the volleyball federation site into rows.
package vbw

import (
	"fmt"
	"strings"
)

// Selectors names every class and XPath the parsers depend on. The site's
// markup changes between competitions, so these are configuration, not code.
type Selectors struct {
	TeamCardClass      string   `mapstructure:"team_card_class"`
	TeamAbbrClass      string   `mapstructure:"team_abbr_class"`
	TeamNameClass      string   `mapstructure:"team_name_class"`
	StandingsRowsXPath string   `mapstructure:"standings_rows_xpath"`
	RosterRowsXPath    string   `mapstructure:"roster_rows_xpath"`
	RosterCellClass    string   `mapstructure:"roster_cell_class"`
	PlayerColClass     string   `mapstructure:"player_col_class"`
	PlayerHeadClass    string   `mapstructure:"player_head_class"`
	PlayerTextClass    string   `mapstructure:"player_text_class"`
	PlayerSections     []string `mapstructure:"player_sections"`
	DerivedMarkers     []string `mapstructure:"derived_markers"`
}

// DefaultSelectors matches the Women's World Championship 2022 pages.
func DefaultSelectors() Selectors {
	return Selectors{
		TeamCardClass: "d3-l-col__col-2",
		TeamAbbrClass: "vbw-mu__team__name--abbr",
		TeamNameClass: "vbw-mu__team__name",
		StandingsRowsXPath: "/html/body/div[1]/main/section[2]" +
			"/div/div/div/div/div[3]/div/div/div/div/table/tbody/tr",
		RosterRowsXPath: "//html/body/div[1]/main/section[2]/div/div/div/table/tbody/tr",
		RosterCellClass: "d3-l-col__col-2",
		PlayerColClass:  "vbw-player-%s-col",
		PlayerHeadClass: "vbw-player-%s-head",
		PlayerTextClass: "vbw-player-%s-text",
		PlayerSections:  []string{"bio", "stats"},
		DerivedMarkers:  []string{"average", "efficiency", "success", "avg"},
	}
}

// Validate reports missing selectors.
func (s Selectors) Validate() error {
	required := map[string]string{
		"team_card_class":      s.TeamCardClass,
		"team_abbr_class":      s.TeamAbbrClass,
		"team_name_class":      s.TeamNameClass,
		"standings_rows_xpath": s.StandingsRowsXPath,
		"roster_rows_xpath":    s.RosterRowsXPath,
		"roster_cell_class":    s.RosterCellClass,
		"player_col_class":     s.PlayerColClass,
		"player_head_class":    s.PlayerHeadClass,
		"player_text_class":    s.PlayerTextClass,
	}
	for key, val := range required {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("selectors.%s must be set", key)
		}
	}
	for key, val := range map[string]string{
		"player_col_class":  s.PlayerColClass,
		"player_head_class": s.PlayerHeadClass,
		"player_text_class": s.PlayerTextClass,
	} {
		if !strings.Contains(val, "%s") {
			return fmt.Errorf("selectors.%s must contain %%s for the section name", key)
		}
	}
	if len(s.PlayerSections) == 0 {
		return fmt.Errorf("selectors.player_sections must not be empty")
	}
	return nil
}

func (s Selectors) section(format, kind string) string {
	return fmt.Sprintf(format, kind)
}
