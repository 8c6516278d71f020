package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biosim/components"
)

// YearStats holds aggregated statistics for one simulated year.
type YearStats struct {
	Year int `csv:"year" db:"year"`

	// Population counts at year end
	Herbivores int `csv:"herbivores" db:"herbivores"`
	Carnivores int `csv:"carnivores" db:"carnivores"`
	Total      int `csv:"total" db:"total"`

	// Events during the year
	HerbBirths     int     `csv:"herb_births" db:"herb_births"`
	CarnBirths     int     `csv:"carn_births" db:"carn_births"`
	HerbDeaths     int     `csv:"herb_deaths" db:"herb_deaths"`
	CarnDeaths     int     `csv:"carn_deaths" db:"carn_deaths"`
	Kills          int     `csv:"kills" db:"kills"`
	PreyEaten      float64 `csv:"prey_eaten" db:"prey_eaten"`
	HerbMigrations int     `csv:"herb_migrations" db:"herb_migrations"`
	CarnMigrations int     `csv:"carn_migrations" db:"carn_migrations"`

	// Fodder left on the island after the year
	Fodder float64 `csv:"fodder" db:"fodder"`

	// Distributions (sampled at year end)
	HerbWeightMean  float64 `csv:"herb_weight_mean" db:"herb_weight_mean"`
	HerbWeightP10   float64 `csv:"herb_weight_p10" db:"herb_weight_p10"`
	HerbWeightP50   float64 `csv:"herb_weight_p50" db:"herb_weight_p50"`
	HerbWeightP90   float64 `csv:"herb_weight_p90" db:"herb_weight_p90"`
	CarnWeightMean  float64 `csv:"carn_weight_mean" db:"carn_weight_mean"`
	CarnWeightP10   float64 `csv:"carn_weight_p10" db:"carn_weight_p10"`
	CarnWeightP50   float64 `csv:"carn_weight_p50" db:"carn_weight_p50"`
	CarnWeightP90   float64 `csv:"carn_weight_p90" db:"carn_weight_p90"`
	HerbAgeMean     float64 `csv:"herb_age_mean" db:"herb_age_mean"`
	CarnAgeMean     float64 `csv:"carn_age_mean" db:"carn_age_mean"`
	HerbFitnessMean float64 `csv:"herb_fitness_mean" db:"herb_fitness_mean"`
	CarnFitnessMean float64 `csv:"carn_fitness_mean" db:"carn_fitness_mean"`
}

// Count returns the year-end count of species s.
func (s YearStats) Count(sp components.Species) int {
	if sp == components.Carnivore {
		return s.Carnivores
	}
	return s.Herbivores
}

// Summary describes a distribution of values.
type Summary struct {
	N    int     `csv:"n" json:"n"`
	Mean float64 `csv:"mean" json:"mean"`
	Std  float64 `csv:"std" json:"std"`
	P10  float64 `csv:"p10" json:"p10"`
	P50  float64 `csv:"p50" json:"p50"`
	P90  float64 `csv:"p90" json:"p90"`
}

// Summarize computes mean, population standard deviation and empirical
// percentiles of values. values is not modified.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return Summary{
		N:    n,
		Mean: mean,
		Std:  std,
		P10:  stat.Quantile(0.10, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s YearStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("year", s.Year),
		slog.Int("herbivores", s.Herbivores),
		slog.Int("carnivores", s.Carnivores),
		slog.Int("herb_births", s.HerbBirths),
		slog.Int("carn_births", s.CarnBirths),
		slog.Int("herb_deaths", s.HerbDeaths),
		slog.Int("carn_deaths", s.CarnDeaths),
		slog.Int("kills", s.Kills),
		slog.Float64("prey_eaten", s.PreyEaten),
		slog.Int("herb_migrations", s.HerbMigrations),
		slog.Int("carn_migrations", s.CarnMigrations),
		slog.Float64("fodder", s.Fodder),
		slog.Float64("herb_weight_mean", s.HerbWeightMean),
		slog.Float64("carn_weight_mean", s.CarnWeightMean),
		slog.Float64("herb_fitness_mean", s.HerbFitnessMean),
		slog.Float64("carn_fitness_mean", s.CarnFitnessMean),
	)
}
