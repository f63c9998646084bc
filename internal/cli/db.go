package cli

import (
	"fmt"

	"github.com/lazypower/palace/internal/analytics"
	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/palace"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/store"
)

// openDB opens the configured database. PALACE_DB has already been folded
// into cfg by setup.
func openDB() (*store.DB, string, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", err
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, "", err
	}
	return db, dbPath, nil
}

// track records a usage event for a CLI command. Tracking never fails the
// command.
func track(db *store.DB, typ string, data map[string]string) {
	t := analytics.NewTracker(db, analytics.WithLogger(log))
	if err := t.Track(typ, data); err != nil {
		log.Warn("track event", "type", typ, "err", err)
	}
}

// loadPalace looks a palace up in the database first, then in the palace
// directory by name.
func loadPalace(db *store.DB, name string) (*palace.Palace, error) {
	p, err := db.GetPalace(name)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	onDisk, err := palace.LoadDir(cfg.Palaces.Dir)
	if err != nil {
		return nil, err
	}
	for _, candidate := range onDisk {
		if candidate.Name == name || palace.Slug(candidate.Name) == palace.Slug(name) {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("palace %q not found (try 'palace list' or 'palace import')", name)
}

// simulationConfig converts the [simulation] config section into a
// comparator config.
func simulationConfig() (compare.Config, error) {
	s := cfg.Simulation
	out := compare.Config{
		DurationDays: s.DurationDays,
		SampleSize:   s.SampleSize,
		Iterations:   s.Iterations,
		Checkpoints:  append([]int(nil), s.Checkpoints...),
		Seed:         s.Seed,
		Workers:      s.Workers,
	}
	if len(s.Algorithms) != 2 {
		return out, fmt.Errorf("simulation.algorithms must name exactly two algorithms, got %d", len(s.Algorithms))
	}
	for i, name := range s.Algorithms {
		a, err := schedule.ParseAlgorithm(name)
		if err != nil {
			return out, fmt.Errorf("simulation.algorithms[%d]: %w", i, err)
		}
		out.Algorithms[i] = a
	}
	return out, nil
}
