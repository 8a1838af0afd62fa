package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
	closed int
	err    error
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.events = append(s.events, batch...)
	return s.err
}

func (s *recordingSink) Close(context.Context) error {
	s.closed++
	return nil
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"run start", Event{RunID: "r", TS: now, Stage: StageRunStart}, false},
		{"missing run", Event{TS: now, Stage: StageRunStart}, true},
		{"missing ts", Event{RunID: "r", Stage: StageRunStart}, true},
		{"page without url", Event{RunID: "r", TS: now, Stage: StagePageDone, Kind: "player"}, true},
		{"page without kind", Event{RunID: "r", TS: now, Stage: StagePageError, URL: "u"}, true},
		{"page", Event{RunID: "r", TS: now, Stage: StagePageDone, Kind: "player", URL: "u"}, false},
		{"team without name", Event{RunID: "r", TS: now, Stage: StageTeamDone}, true},
		{"player", Event{RunID: "r", TS: now, Stage: StagePlayerDone, Player: "Italy - Ana"}, false},
		{"unknown stage", Event{RunID: "r", TS: now, Stage: "BOGUS"}, true},
		{"output done", Event{RunID: "r", TS: now, Stage: StageOutputDone}, false},
		{"negative dur", Event{RunID: "r", TS: now, Stage: StageRunDone, Dur: -time.Second}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDispatcherFanOutAndClose(t *testing.T) {
	t.Parallel()

	a := &recordingSink{}
	b := &recordingSink{err: errors.New("boom")}
	d := NewDispatcher(nil, a, nil, b)

	d.Emit(Event{RunID: "r", TS: time.Now(), Stage: StageRunStart})
	d.Emit(Event{Stage: StageRunStart}) // invalid, dropped
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, a.closed)

	d.Emit(Event{RunID: "r", TS: time.Now(), Stage: StageRunDone})
	assert.Len(t, a.events, 1)
}

func TestNilDispatcherIsSafe(t *testing.T) {
	t.Parallel()

	var d *Dispatcher
	d.Emit(Event{RunID: "r", TS: time.Now(), Stage: StageRunStart})
	assert.NoError(t, d.Close(context.Background()))
	Nop{}.Emit(Event{})
}
