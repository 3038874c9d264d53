// Package fallback resolves logical datasets against an ordered list of
// physical sources, degrading quality and emitting audit events as the
// chain is walked.
package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/metrics"
	"github.com/dnguyenv/conductor/internal/pipeline/quality"
)

// Rows is the extracted payload handed back to the unit.
type Rows []map[string]any

// Extractor pulls one physical source's data for a date. Empty rows
// mean "this source has nothing"; the resolver moves on to the next.
type Extractor func(ctx context.Context, date domain.Date) (Rows, error)

// Resolution is the outcome of walking one chain.
type Resolution struct {
	Dataset   string
	Rows      Rows
	Source    string
	IsPrimary bool
	Grade     quality.Grade

	// ShouldSkip is set under PolicySkip: the entity is unprocessable
	// but siblings continue.
	ShouldSkip bool

	// Placeholder is set under PolicyPlaceholder: Rows holds one
	// synthesized unusable-tier row.
	Placeholder bool
}

// Resolver holds the static chain configuration and the registered
// extractors. Read-only after construction.
type Resolver struct {
	chains     map[string]domain.FallbackChain
	extractors map[string]Extractor // "dataset/source" -> extractor
	emitter    Emitter
	log        *slog.Logger
}

// NewResolver indexes the chains. A nil emitter falls back to the log.
func NewResolver(chains []domain.FallbackChain, emitter Emitter) *Resolver {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	idx := make(map[string]domain.FallbackChain, len(chains))
	for _, c := range chains {
		idx[c.Dataset] = c
	}
	return &Resolver{
		chains:     idx,
		extractors: make(map[string]Extractor),
		emitter:    emitter,
		log:        slog.Default(),
	}
}

// Register installs the extractor for one (dataset, source) pair.
func (r *Resolver) Register(dataset, source string, ex Extractor) {
	r.extractors[dataset+"/"+source] = ex
}

// Resolve walks the dataset's chain in priority order and returns the
// first non-empty result, or applies the terminal policy on exhaustion.
// unit is recorded on audit events only.
func (r *Resolver) Resolve(ctx context.Context, dataset, unit string, date domain.Date) (*Resolution, error) {
	chain, ok := r.chains[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoFallbackChain, dataset)
	}

	attempted := make([]string, 0, len(chain.Sources))
	for i, source := range chain.Sources {
		attempted = append(attempted, source.Name)

		ex, ok := r.extractors[dataset+"/"+source.Name]
		if !ok {
			r.log.Warn("no extractor registered", "dataset", dataset, "source", source.Name)
			continue
		}

		rows, err := ex(ctx, date)
		if err != nil {
			r.log.Warn("source extraction failed",
				"dataset", dataset, "source", source.Name, "date", date, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		res := &Resolution{
			Dataset:   dataset,
			Rows:      rows,
			Source:    source.Name,
			IsPrimary: i == 0,
			Grade: quality.Grade{
				Source: source.Name,
				Score:  source.Score,
			},
		}
		if !res.IsPrimary {
			res.Grade.Issues = append(res.Grade.Issues, domain.IssueBackupSourceUsed)
			if source.Derived {
				res.Grade.Issues = append(res.Grade.Issues, domain.IssueReconstructed)
			}
			metrics.FallbackUsage.WithLabelValues(dataset, source.Name).Inc()

			ev := newEvent(EventFallbackUsed, dataset)
			ev.Unit = unit
			ev.Date = date
			ev.Source = source.Name
			ev.Attempted = attempted
			if err := r.emitter.Emit(ctx, ev); err != nil {
				r.log.Warn("failed to emit fallback event", "dataset", dataset, "error", err)
			}
		}
		return res, nil
	}

	return r.exhausted(ctx, chain, unit, date, attempted)
}

// exhausted applies the chain's terminal policy and emits the
// missing-source event with its downstream-impact tag.
func (r *Resolver) exhausted(ctx context.Context, chain domain.FallbackChain, unit string, date domain.Date, attempted []string) (*Resolution, error) {
	metrics.FallbackExhausted.WithLabelValues(chain.Dataset, string(chain.OnExhausted)).Inc()

	ev := newEvent(EventSourceMissing, chain.Dataset)
	ev.Unit = unit
	ev.Date = date
	ev.Attempted = attempted
	ev.Policy = chain.OnExhausted
	ev.Impact = chain.OnExhausted.ImpactTag()
	if err := r.emitter.Emit(ctx, ev); err != nil {
		r.log.Warn("failed to emit missing-source event", "dataset", chain.Dataset, "error", err)
	}

	switch chain.OnExhausted {
	case domain.PolicySkip:
		return &Resolution{
			Dataset:    chain.Dataset,
			ShouldSkip: true,
			Grade:      quality.Grade{Score: 0, Issues: []string{domain.IssueSourceMissing}},
		}, nil

	case domain.PolicyPlaceholder:
		return &Resolution{
			Dataset:     chain.Dataset,
			Rows:        Rows{quality.PlaceholderColumns(chain.Dataset)},
			Placeholder: true,
			Grade:       quality.Grade{Score: 0, Issues: []string{domain.IssuePlaceholder, domain.IssueSourceMissing}},
		}, nil

	case domain.PolicyContinueWithout:
		penalty := chain.Penalty
		if penalty <= 0 {
			penalty = 0.3
		}
		return &Resolution{
			Dataset: chain.Dataset,
			Grade: quality.Grade{
				Score:  1 - penalty,
				Issues: []string{domain.IssueDegradedInput, domain.IssueSourceMissing},
			},
		}, nil

	default: // PolicyFail and unconfigured chains abort the unit.
		return nil, &domain.FallbackExhaustedError{Dataset: chain.Dataset, Attempted: attempted}
	}
}
