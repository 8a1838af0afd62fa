package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StagePageDone   Stage = "PAGE_DONE"
	StagePageError  Stage = "PAGE_ERROR"
	StageTeamDone   Stage = "TEAM_DONE"
	StagePlayerDone Stage = "PLAYER_DONE"
	StageRunDone    Stage = "RUN_DONE"
	// StageOutputDone follows RUN_DONE once both tables are stored.
	StageOutputDone Stage = "OUTPUT_DONE"
)

// Event captures a single step of a scrape run.
type Event struct {
	// RunID identifies the scrape run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Kind is the page kind for page events (listing, standings, roster, player).
	Kind string
	// Team is the team name the event belongs to, if any.
	Team string
	// Player is a display label such as "Italy - Jane Doe".
	Player string
	URL    string
	Dur    time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageOutputDone:
	case StagePageDone, StagePageError:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
		if e.Kind == "" {
			return fmt.Errorf("%s requires kind", e.Stage)
		}
	case StageTeamDone:
		if e.Team == "" {
			return errors.New("team done requires team")
		}
	case StagePlayerDone:
		if e.Player == "" {
			return errors.New("player done requires player")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
