package game

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/biosim/components"
	"github.com/pthm-cable/biosim/telemetry"
)

// logYear logs the statistics and timings of the year just completed.
func (s *Simulation) logYear(stats telemetry.YearStats, perf telemetry.PerfStats) {
	slog.Info("year",
		"stats", stats,
		"perf", perf,
	)
}

// Summary returns a short human readable description of the run so far.
func (s *Simulation) Summary() string {
	var b strings.Builder
	n := s.NumAnimalsPerSpecies()
	fmt.Fprintf(&b, "Year %s: %s animals (%s herbivores, %s carnivores)\n",
		humanize.Comma(int64(s.year)),
		humanize.Comma(int64(s.NumAnimals())),
		humanize.Comma(int64(n[components.Herbivore])),
		humanize.Comma(int64(n[components.Carnivore])),
	)

	var births, deaths, kills int
	var eaten float64
	for _, h := range s.history {
		births += h.HerbBirths + h.CarnBirths
		deaths += h.HerbDeaths + h.CarnDeaths
		kills += h.Kills
		eaten += h.PreyEaten
	}
	fmt.Fprintf(&b, "Over %s simulated years: %s births, %s deaths, %s kills, %s weight units of prey eaten\n",
		humanize.Comma(int64(len(s.history))),
		humanize.Comma(int64(births)),
		humanize.Comma(int64(deaths)),
		humanize.Comma(int64(kills)),
		humanize.CommafWithDigits(eaten, 1),
	)

	perf := s.perfCollector.Stats()
	if perf.AvgYearDuration > 0 {
		fmt.Fprintf(&b, "Average year: %s (%.0f years/s)\n", perf.AvgYearDuration, perf.YearsPerSecond)
	}
	return b.String()
}
