package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/biosim/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkHerbivoreCrash    BookmarkType = "herbivore_crash"
	BookmarkCarnivoreRecovery BookmarkType = "carnivore_recovery"
	BookmarkExtinction        BookmarkType = "extinction"
	BookmarkStableCoexistence BookmarkType = "stable_coexistence"
)

// Bookmark marks an ecologically interesting year.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Year        int          `csv:"year" json:"year"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"year", b.Year,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting years in a run.
type BookmarkDetector struct {
	cfg config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []YearStats
	historySize int
	historyIdx  int
	historyFull bool

	recentCarnMin   int // minimum carnivore count since the last recovery
	recentHerbPeak  int // peak herbivore count since the last crash
	stableYears     int // consecutive years with low population variation
	extinctReported [2]bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(cfg config.BookmarksConfig, historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		cfg:           cfg,
		history:       make([]YearStats, historySize),
		historySize:   historySize,
		recentCarnMin: -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats YearStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkHerbivoreCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkCarnivoreRecovery(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		bookmarks = append(bookmarks, bd.checkExtinction(stats)...)
	}
	bd.addToHistory(stats)
	if b := bd.checkStableCoexistence(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.recentCarnMin < 0 || stats.Carnivores < bd.recentCarnMin {
		bd.recentCarnMin = stats.Carnivores
	}
	if stats.Herbivores > bd.recentHerbPeak {
		bd.recentHerbPeak = stats.Herbivores
	}
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats YearStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n of the latest history entries, oldest first.
func (bd *BookmarkDetector) recent(n int) []YearStats {
	count := bd.historyIdx
	if bd.historyFull {
		count = bd.historySize
	}
	n = min(n, count)
	out := make([]YearStats, n)
	for i := 0; i < n; i++ {
		idx := (bd.historyIdx - n + i + bd.historySize) % bd.historySize
		out[i] = bd.history[idx]
	}
	return out
}

func (bd *BookmarkDetector) checkHerbivoreCrash(stats YearStats) *Bookmark {
	if bd.recentHerbPeak == 0 {
		return nil
	}
	c := bd.cfg.HerbivoreCrash
	drop := 1.0 - float64(stats.Herbivores)/float64(bd.recentHerbPeak)
	if drop > c.DropPercent && stats.Herbivores < bd.recentHerbPeak-c.MinDrop {
		oldPeak := bd.recentHerbPeak
		bd.recentHerbPeak = stats.Herbivores
		return &Bookmark{
			Type:        BookmarkHerbivoreCrash,
			Year:        stats.Year,
			Description: fmt.Sprintf("Herbivores crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Herbivores),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkCarnivoreRecovery(stats YearStats) *Bookmark {
	c := bd.cfg.CarnivoreRecovery
	if bd.recentCarnMin <= 0 || bd.recentCarnMin > c.MinPopulation {
		return nil
	}
	if stats.Carnivores >= bd.recentCarnMin*c.RecoveryMultiplier && stats.Carnivores >= c.MinFinal {
		oldMin := bd.recentCarnMin
		bd.recentCarnMin = stats.Carnivores
		return &Bookmark{
			Type:        BookmarkCarnivoreRecovery,
			Year:        stats.Year,
			Description: fmt.Sprintf("Carnivores recovered from %d to %d", oldMin, stats.Carnivores),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkExtinction(stats YearStats) []Bookmark {
	prev := bd.recent(1)
	if len(prev) == 0 {
		return nil
	}
	var out []Bookmark
	for i, pair := range [][2]int{
		{prev[0].Herbivores, stats.Herbivores},
		{prev[0].Carnivores, stats.Carnivores},
	} {
		if pair[1] > 0 {
			bd.extinctReported[i] = false
			continue
		}
		if pair[0] > 0 && !bd.extinctReported[i] {
			bd.extinctReported[i] = true
			name := "Herbivores"
			if i == 1 {
				name = "Carnivores"
			}
			out = append(out, Bookmark{
				Type:        BookmarkExtinction,
				Year:        stats.Year,
				Description: fmt.Sprintf("%s went extinct (last count %d)", name, pair[0]),
			})
		}
	}
	return out
}

func (bd *BookmarkDetector) checkStableCoexistence(stats YearStats) *Bookmark {
	c := bd.cfg.StableCoexistence
	if stats.Herbivores < c.MinHerbivores || stats.Carnivores < c.MinCarnivores {
		bd.stableYears = 0
		return nil
	}

	window := bd.recent(5)
	if len(window) < 5 {
		return nil
	}
	herbs := make([]float64, len(window))
	carns := make([]float64, len(window))
	for i, h := range window {
		herbs[i] = float64(h.Herbivores)
		carns[i] = float64(h.Carnivores)
	}

	if coefficientOfVariation(herbs) < c.CVThreshold && coefficientOfVariation(carns) < c.CVThreshold {
		bd.stableYears++
	} else {
		bd.stableYears = 0
	}

	if bd.stableYears == c.StableYears {
		return &Bookmark{
			Type:        BookmarkStableCoexistence,
			Year:        stats.Year,
			Description: fmt.Sprintf("Stable coexistence with %d herbivores, %d carnivores over %d years", stats.Herbivores, stats.Carnivores, c.StableYears),
		}
	}
	return nil
}

func coefficientOfVariation(x []float64) float64 {
	mean, std := stat.PopMeanStdDev(x, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}
