package scraper

import (
	"net/http"
	"time"

	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
	"github.com/JakeFAU/vbw-stats-scraper/internal/vbw"
)

// PageKind names the role a page plays in a run.
type PageKind string

// Page kinds, in the order a run loads them.
const (
	KindListing   PageKind = "listing"
	KindStandings PageKind = "standings"
	KindRoster    PageKind = "roster"
	KindPlayer    PageKind = "player"
)

// FetchRequest captures everything needed to load a page.
type FetchRequest struct {
	URL  string
	Kind PageKind
}

// Page is the rendered snapshot returned by a Fetcher.
type Page struct {
	URL string
	// FinalURL is the document location after redirects; links resolve against it.
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// BaseURL returns the URL relative links should resolve against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Counters tracks page and row totals for a run.
type Counters struct {
	Pages    int `json:"pages"`
	Failures int `json:"failures"`
	Retries  int `json:"retries"`
	Players  int `json:"players"`
}

// Result is everything a finished run produced.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Teams      []vbw.Team
	// TeamsFrame is indexed by team name, PlayersFrame by player ID. Both are
	// ready to be written out.
	TeamsFrame   *table.Frame
	PlayersFrame *table.Frame
	Counters     Counters
}
