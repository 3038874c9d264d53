package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeUnit struct {
	name string
	deps []string
}

func (u *fakeUnit) Name() string              { return u.name }
func (u *fakeUnit) Dependencies() []string    { return u.deps }
func (u *fakeUnit) RelevantSources() []string { return nil }
func (u *fakeUnit) Run(ctx context.Context, opts domain.RunOptions) (map[string]any, error) {
	return nil, nil
}

// fakeRunner fails the configured units and records invocation order.
type fakeRunner struct {
	mu    sync.Mutex
	fail  map[string]bool
	order []string
}

func (r *fakeRunner) RunUnit(ctx context.Context, u domain.Unit, opts domain.RunOptions) domain.Outcome {
	r.mu.Lock()
	r.order = append(r.order, u.Name())
	r.mu.Unlock()

	if r.fail[u.Name()] {
		return domain.Failed(u.Name(), opts.Date, errors.New("unit exploded"))
	}
	return domain.Processed(u.Name(), opts.Date, nil)
}

func (r *fakeRunner) ran(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.order {
		if n == name {
			return true
		}
	}
	return false
}

// =============================================================================
// Tests
// =============================================================================

func TestDependencyFailurePropagates(t *testing.T) {
	a := &fakeUnit{name: "A"}
	b := &fakeUnit{name: "B", deps: []string{"A"}}
	runner := &fakeRunner{fail: map[string]bool{"A": true}}

	s, err := New(runner, []Level{
		{Level: 0, Units: []domain.Unit{a}},
		{Level: 1, Units: []domain.Unit{b}},
	})
	require.NoError(t, err)

	results, err := s.Run(context.Background(), domain.RunOptions{Date: "2024-01-01"})

	var depErr *domain.DependencyFailureError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "A", depErr.Dependency)
	assert.Equal(t, "B", depErr.Unit)

	assert.False(t, runner.ran("B"), "blocked unit must never run")
	// Results from the completed level are preserved, not rolled back.
	assert.Equal(t, domain.StatusFailed, results["A"].Status)
}

func TestIndependentSiblingFailureDoesNotBlock(t *testing.T) {
	a := &fakeUnit{name: "A"}
	c := &fakeUnit{name: "C"}
	d := &fakeUnit{name: "D", deps: []string{"A"}}
	runner := &fakeRunner{fail: map[string]bool{"C": true}}

	s, err := New(runner, []Level{
		{Level: 0, Units: []domain.Unit{a, c}, Parallel: true},
		{Level: 1, Units: []domain.Unit{d}},
	})
	require.NoError(t, err)

	results, err := s.Run(context.Background(), domain.RunOptions{Date: "2024-01-01"})
	require.NoError(t, err, "C's failure must not block D, which depends only on A")

	assert.True(t, runner.ran("D"))
	assert.Equal(t, domain.StatusFailed, results["C"].Status)
	assert.Equal(t, domain.StatusProcessed, results["D"].Status)
}

func TestSequentialLevelRunsInOrder(t *testing.T) {
	units := []domain.Unit{
		&fakeUnit{name: "first"},
		&fakeUnit{name: "second"},
		&fakeUnit{name: "third"},
	}
	runner := &fakeRunner{}

	s, err := New(runner, []Level{{Level: 0, Units: units, Parallel: false}})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), domain.RunOptions{Date: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, runner.order)
}

func TestLevelDependsOnBlocksWholeLevel(t *testing.T) {
	a := &fakeUnit{name: "A"}
	b := &fakeUnit{name: "B"}
	c := &fakeUnit{name: "C"}
	runner := &fakeRunner{fail: map[string]bool{"A": true}}

	s, err := New(runner, []Level{
		{Level: 0, Units: []domain.Unit{a}},
		{Level: 1, Units: []domain.Unit{b, c}, Parallel: true, DependsOn: []string{"A"}},
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), domain.RunOptions{Date: "2024-01-01"})
	var depErr *domain.DependencyFailureError
	require.ErrorAs(t, err, &depErr)
	assert.False(t, runner.ran("B"))
	assert.False(t, runner.ran("C"))
}

func TestValidateRejectsDuplicateUnit(t *testing.T) {
	a := &fakeUnit{name: "A"}
	_, err := New(&fakeRunner{}, []Level{
		{Level: 0, Units: []domain.Unit{a}},
		{Level: 1, Units: []domain.Unit{a}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appears in both")
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	b := &fakeUnit{name: "B", deps: []string{"ghost"}}
	_, err := New(&fakeRunner{}, []Level{{Level: 0, Units: []domain.Unit{b}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestValidateRejectsSameLevelDependency(t *testing.T) {
	a := &fakeUnit{name: "A"}
	b := &fakeUnit{name: "B", deps: []string{"A"}}
	_, err := New(&fakeRunner{}, []Level{{Level: 0, Units: []domain.Unit{a, b}}})
	require.Error(t, err)
}

func TestFromUnitsNormalization(t *testing.T) {
	units := []domain.Unit{&fakeUnit{name: "A"}, &fakeUnit{name: "B"}}
	levels := FromUnits(units)

	require.Len(t, levels, 1)
	assert.True(t, levels[0].Parallel)
	assert.Empty(t, levels[0].DependsOn)

	runner := &fakeRunner{}
	s, err := New(runner, levels)
	require.NoError(t, err)
	results, err := s.Run(context.Background(), domain.RunOptions{Date: "2024-01-01"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
