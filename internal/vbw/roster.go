package vbw

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/vbw-stats-scraper/internal/dom"
	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
)

// Column names shared by the roster and player parsers.
const (
	ColumnURL                  = "url"
	ColumnNumber               = "number"
	ColumnName                 = "name"
	ColumnPosition             = "position"
	ColumnPositionAbbreviation = "position_abbreviation"
	ColumnNationality          = "nationality"
)

// rosterColumns pairs positionally with a row's cells.
var rosterColumns = []string{ColumnNumber, ColumnName, ColumnPositionAbbreviation}

// PlayerRef is a roster row: the player page link plus the fields only the
// roster shows reliably.
type PlayerRef struct {
	URL    string
	Fields table.Row
}

// ID returns the player identifier embedded in the link.
func (r PlayerRef) ID() (string, error) {
	return PlayerID(r.URL)
}

// Roster reads a team's players page. Rows without roster cells are skipped.
func (p *Parser) Roster(body []byte, pageURL string) ([]PlayerRef, error) {
	doc, err := dom.Parse(body, pageURL)
	if err != nil {
		return nil, err
	}
	rows, err := doc.ByXPath(p.sel.RosterRowsXPath)
	if err != nil {
		return nil, err
	}
	refs := make([]PlayerRef, 0, len(rows))
	for _, row := range rows {
		cells := row.ByClass(p.sel.RosterCellClass)
		if len(cells) == 0 {
			continue
		}
		ref := PlayerRef{URL: cells[0].Href()}
		if ref.URL == "" {
			continue
		}
		for i, col := range rosterColumns {
			if i >= len(cells) {
				break
			}
			ref.Fields = ref.Fields.Set(col, cleanText(cells[i].InnerHTML()))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// PlayerID returns the last path segment of a player link.
func PlayerID(playerURL string) (string, error) {
	trimmed := strings.TrimRight(playerURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	id := trimmed[idx+1:]
	if id == "" || idx < 0 {
		return "", fmt.Errorf("player id from %q: %w", playerURL, ErrMalformedURL)
	}
	return id, nil
}
