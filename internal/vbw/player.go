package vbw

import (
	"github.com/JakeFAU/vbw-stats-scraper/internal/dom"
	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
)

// Player is one row of the players table.
type Player struct {
	ID  string
	Row table.Row
}

// Get returns a field of the player row.
func (p Player) Get(column string) string {
	v, _ := p.Row.Get(column)
	return v
}

// Player merges the roster fields of ref with the bio and stats columns of the
// player page. A column missing its heading or value element is wrapped
// markup whose data appears elsewhere, and is skipped.
func (p *Parser) Player(body []byte, pageURL string, ref PlayerRef) (Player, error) {
	id, err := ref.ID()
	if err != nil {
		return Player{}, err
	}
	doc, err := dom.Parse(body, pageURL)
	if err != nil {
		return Player{}, err
	}

	row := make(table.Row, 0, 32)
	row = row.Set(ColumnURL, ref.URL)
	for _, cell := range ref.Fields {
		row = row.Set(cell.Column, cell.Value)
	}

	namer := newFieldNamer(p.sel.DerivedMarkers)
	for _, kind := range p.sel.PlayerSections {
		headClass := p.sel.section(p.sel.PlayerHeadClass, kind)
		textClass := p.sel.section(p.sel.PlayerTextClass, kind)
		for _, col := range doc.ByClass(p.sel.section(p.sel.PlayerColClass, kind)) {
			head, ok := col.FirstByClass(headClass)
			if !ok {
				continue
			}
			text, ok := col.FirstByClass(textClass)
			if !ok {
				continue
			}
			field := NormalizeName(head.InnerHTML())
			if field == "" {
				continue
			}
			row = row.Set(namer.name(field), NormalizeValue(text.InnerHTML()))
		}
	}
	return Player{ID: id, Row: row}, nil
}
