package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
)

func TestOverridesApply(t *testing.T) {
	t.Parallel()

	frame := table.NewFrame(PlayersIndex)
	frame.Upsert("168827", table.Row{{Column: "position", Value: "Outside spiker"}})

	core, logs := observer.New(zap.WarnLevel)
	o := Overrides{
		"168827": {"position": "Opposite spiker", "note": "fixed"},
		"999999": {"position": "Setter"},
	}
	assert.Equal(t, 2, o.Apply(frame, zap.New(core)))

	pos, _ := frame.Get("168827", "position")
	assert.Equal(t, "Opposite spiker", pos)
	assert.Equal(t, []string{"position", "note"}, frame.Columns())
	assert.False(t, frame.Has("999999"))
	assert.Equal(t, 1, logs.FilterMessage("Override for unknown player ignored").Len())
}
