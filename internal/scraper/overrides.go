package scraper

import (
	"sort"

	"github.com/JakeFAU/vbw-stats-scraper/internal/table"
	"go.uber.org/zap"
)

// Overrides are manual corrections keyed by player ID then column.
type Overrides map[string]map[string]string

// DefaultOverrides holds the corrections known to be needed for the
// 2022 women's championship data.
func DefaultOverrides() Overrides {
	return Overrides{
		// Position as published by the European confederation.
		"168827": {"position": "Opposite spiker"},
	}
}

// Apply writes each correction into frame. Corrections for players the run
// did not see are logged and ignored.
func (o Overrides) Apply(frame *table.Frame, logger *zap.Logger) int {
	applied := 0
	for _, id := range sortedKeys(o) {
		if !frame.Has(id) {
			logger.Warn("Override for unknown player ignored", zap.String("player_id", id))
			continue
		}
		fields := o[id]
		for _, column := range sortedKeys(fields) {
			frame.Set(id, column, fields[column])
			applied++
		}
	}
	return applied
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
