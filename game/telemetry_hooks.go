package game

import (
	"log/slog"

	"github.com/pthm-cable/biosim/telemetry"
)

// recordYear builds the statistics and snapshot of the year just completed
// and checks it for bookmarks.
func (s *Simulation) recordYear() (telemetry.YearStats, *telemetry.Snapshot, []telemetry.Bookmark, error) {
	snap, err := telemetry.NewSnapshot(s.year, s.seed, s.island)
	if err != nil {
		return telemetry.YearStats{}, nil, nil, err
	}

	var fodder float64
	for _, c := range s.island.Cells() {
		fodder += c.Fodder
	}
	stats := s.collector.Flush(s.year, snap.Animals, fodder)

	s.history = append(s.history, stats)
	s.snapshots = append(s.snapshots, snap)
	if keep := s.cfg.Telemetry.KeepSnapshots; keep > 0 && len(s.snapshots) > keep {
		s.snapshots = append(s.snapshots[:0], s.snapshots[len(s.snapshots)-keep:]...)
	}

	return stats, snap, s.bookmarkDetector.Check(stats), nil
}

// flushTelemetry logs the year and writes it to the configured outputs.
// Output failures are logged and do not stop the run; database failures do.
func (s *Simulation) flushTelemetry(stats telemetry.YearStats, snap *telemetry.Snapshot, bookmarks []telemetry.Bookmark) error {
	perfStats := s.perfCollector.Stats()

	if every := s.cfg.Telemetry.LogEvery; every > 0 && s.year%every == 0 {
		s.logYear(stats, perfStats)
	}

	if err := s.outputManager.WriteHistory(stats); err != nil {
		slog.Error("failed to write history", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, s.year); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	if every := s.cfg.Telemetry.SnapshotEvery; every > 0 && s.year%every == 0 {
		s.saveSnapshot(snap)
	}

	for _, bm := range bookmarks {
		bm.LogBookmark()
		if err := s.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		// Save snapshot on bookmark
		marked := *snap
		marked.Bookmark = &bm
		s.saveSnapshot(&marked)
	}

	if s.db != nil {
		return s.db.SaveHistory(s.runID, []telemetry.YearStats{stats})
	}
	return nil
}

// saveSnapshot writes snap to the snapshot directory, if one is set.
func (s *Simulation) saveSnapshot(snap *telemetry.Snapshot) {
	if s.snapshotDir == "" {
		return
	}
	path, err := telemetry.SaveSnapshot(snap, s.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "year", snap.Year)
}

// persistState stores the current state in the database, if one is attached.
func (s *Simulation) persistState() error {
	if s.db == nil {
		return nil
	}
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	return s.db.SaveState(s.runID, snap)
}
