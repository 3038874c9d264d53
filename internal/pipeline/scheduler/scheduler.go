// Package scheduler executes dependency levels in order, fanning units
// out inside parallel levels and propagating named-dependency failures
// to blocked levels while independent siblings proceed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// Level is one stage of the execution plan. Immutable once scheduling
// begins.
type Level struct {
	// Level is the ordering key; levels run in ascending order.
	Level int

	Units    []domain.Unit
	Parallel bool

	// DependsOn names units from earlier levels that must have
	// succeeded before any unit in this level starts, in addition to
	// each unit's own declared dependencies.
	DependsOn []string
}

// UnitRunner invokes one unit and returns its tagged outcome. The
// production implementation is pipeline/runner.Runner.
type UnitRunner interface {
	RunUnit(ctx context.Context, unit domain.Unit, opts domain.RunOptions) domain.Outcome
}

// Scheduler runs a validated execution plan.
type Scheduler struct {
	runner UnitRunner
	levels []Level
	log    *slog.Logger
}

// New validates the plan and returns a scheduler. Levels are sorted by
// level number; input order between equal numbers is preserved.
func New(runner UnitRunner, levels []Level) (*Scheduler, error) {
	if err := Validate(levels); err != nil {
		return nil, err
	}
	sorted := append([]Level(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &Scheduler{runner: runner, levels: sorted, log: slog.Default()}, nil
}

// FromUnits normalizes a flat unordered unit list into a single
// parallel level with no dependencies, for callers predating explicit
// level structures.
func FromUnits(units []domain.Unit) []Level {
	return []Level{{Level: 0, Units: units, Parallel: true}}
}

// Validate rejects plans with a unit identity in more than one level or
// dependencies naming units that never run in an earlier level.
func Validate(levels []Level) error {
	sorted := append([]Level(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	seen := make(map[string]int)
	for _, lvl := range sorted {
		for _, u := range lvl.Units {
			if prev, ok := seen[u.Name()]; ok {
				return fmt.Errorf("unit %s appears in both level %d and level %d", u.Name(), prev, lvl.Level)
			}
			seen[u.Name()] = lvl.Level
		}
	}

	for _, lvl := range sorted {
		deps := append([]string(nil), lvl.DependsOn...)
		for _, u := range lvl.Units {
			deps = append(deps, u.Dependencies()...)
		}
		for _, dep := range deps {
			depLevel, ok := seen[dep]
			if !ok {
				return fmt.Errorf("level %d depends on unknown unit %s", lvl.Level, dep)
			}
			if depLevel >= lvl.Level {
				return fmt.Errorf("level %d depends on unit %s which runs in level %d", lvl.Level, dep, depLevel)
			}
		}
	}
	return nil
}

// Run executes the plan. On a dependency failure the error names the
// failed dependency and remaining levels are aborted; results already
// produced by completed levels are preserved and returned, not rolled
// back.
func (s *Scheduler) Run(ctx context.Context, opts domain.RunOptions) (map[string]domain.Outcome, error) {
	results := make(map[string]domain.Outcome)

	for _, lvl := range s.levels {
		if err := s.checkDependencies(lvl, results); err != nil {
			return results, err
		}

		s.log.Info("starting execution level",
			"level", lvl.Level, "units", len(lvl.Units), "parallel", lvl.Parallel)

		if lvl.Parallel {
			s.runParallel(ctx, lvl, opts, results)
		} else {
			for _, u := range lvl.Units {
				results[u.Name()] = s.runner.RunUnit(ctx, u, opts)
			}
		}
	}

	return results, nil
}

// checkDependencies looks up every named dependency of the level among
// prior results. Failed dependencies block the whole level.
func (s *Scheduler) checkDependencies(lvl Level, results map[string]domain.Outcome) error {
	check := func(unit, dep string) error {
		res, ok := results[dep]
		if !ok {
			// Validated at construction; reaching here means an earlier
			// level was aborted before producing this result.
			return &domain.DependencyFailureError{Unit: unit, Dependency: dep}
		}
		if res.Status == domain.StatusFailed {
			return &domain.DependencyFailureError{Unit: unit, Dependency: dep, Cause: res.Err}
		}
		return nil
	}

	for _, u := range lvl.Units {
		for _, dep := range lvl.DependsOn {
			if err := check(u.Name(), dep); err != nil {
				return err
			}
		}
		for _, dep := range u.Dependencies() {
			if err := check(u.Name(), dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// runParallel starts every unit of the level concurrently and returns
// only once all have resolved. Units with no inter-dependency in the
// same level fail independently without blocking level-mates.
func (s *Scheduler) runParallel(ctx context.Context, lvl Level, opts domain.RunOptions, results map[string]domain.Outcome) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, u := range lvl.Units {
		wg.Add(1)
		go func(u domain.Unit) {
			defer wg.Done()
			outcome := s.runner.RunUnit(ctx, u, opts)
			mu.Lock()
			results[u.Name()] = outcome
			mu.Unlock()
		}(u)
	}
	wg.Wait()
}
