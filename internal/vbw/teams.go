package vbw

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/vbw-stats-scraper/internal/dom"
)

// ErrMalformedURL is returned when an identifier cannot be derived from a link.
var ErrMalformedURL = errors.New("malformed url")

var digitRun = regexp.MustCompile(`\d+`)

// Team is one national team from the competition listing.
type Team struct {
	Name         string
	Abbreviation string
	ID           string
	URL          string
	// Rank is the final standing, 0 when the team is absent from the standings.
	Rank int
}

// Parser turns page snapshots into teams and players.
type Parser struct {
	sel Selectors
}

// NewParser returns a Parser using sel.
func NewParser(sel Selectors) *Parser {
	return &Parser{sel: sel}
}

// Teams reads the team cards of the listing page. Cards without an
// abbreviation element or link are not team cards and are skipped.
func (p *Parser) Teams(body []byte, pageURL string) ([]Team, error) {
	doc, err := dom.Parse(body, pageURL)
	if err != nil {
		return nil, err
	}
	var teams []Team
	for _, card := range doc.ByClass(p.sel.TeamCardClass) {
		abbr, ok := card.FirstByClass(p.sel.TeamAbbrClass)
		if !ok {
			continue
		}
		href := card.Href()
		if href == "" {
			continue
		}
		id, err := TeamID(href)
		if err != nil {
			return nil, fmt.Errorf("team card %q: %w", card.Attr("alt"), err)
		}
		teams = append(teams, Team{
			Name:         cleanText(card.Attr("alt")),
			Abbreviation: cleanText(abbr.InnerHTML()),
			ID:           id,
			URL:          href,
		})
	}
	return teams, nil
}

// TeamID extracts the numeric team segment from a team page link such as
// ".../teams/women/6776/schedule/".
func TeamID(teamURL string) (string, error) {
	parts := strings.Split(teamURL, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("team id from %q: %w", teamURL, ErrMalformedURL)
	}
	id := parts[len(parts)-3]
	if id == "" {
		return "", fmt.Errorf("team id from %q: %w", teamURL, ErrMalformedURL)
	}
	return id, nil
}

// Standings returns team IDs in final standing order. Each row's team
// element embeds the team ID as its last run of digits.
func (p *Parser) Standings(body []byte, pageURL string) ([]string, error) {
	doc, err := dom.Parse(body, pageURL)
	if err != nil {
		return nil, err
	}
	rows, err := doc.ByXPath(p.sel.StandingsRowsXPath)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := row.FirstByClass(p.sel.TeamNameClass)
		if !ok {
			continue
		}
		runs := digitRun.FindAllString(name.InnerHTML(), -1)
		if len(runs) == 0 {
			continue
		}
		ids = append(ids, runs[len(runs)-1])
	}
	return ids, nil
}

// ApplyRanks sets Rank to the 1-based standing position of each team.
// Teams missing from ids get rank 0.
func ApplyRanks(teams []Team, ids []string) {
	for i := range teams {
		teams[i].Rank = 0
	}
	for pos, id := range ids {
		for i := range teams {
			if teams[i].ID == id {
				teams[i].Rank = pos + 1
			}
		}
	}
}

// RosterURL maps a team schedule link to its players page.
func RosterURL(teamURL string) string {
	return strings.ReplaceAll(teamURL, "schedule", "players")
}
