package traininglog

import (
	"context"
	"fmt"

	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Resolver decides which entry of a (user, exercise) pair holds the PR flag.
// It must run inside the same atomic scope as the write that triggered it,
// after the pair was locked.
type Resolver struct {
	metrics *metrics.Manager
}

func NewResolver(metricsManager *metrics.Manager) *Resolver {
	return &Resolver{
		metrics: metricsManager,
	}
}

// Resolve places the flag after e was inserted. A new entry only takes the
// flag with a strictly heavier weight; on a tie the incumbent keeps it.
func (r *Resolver) Resolve(ctx context.Context, tx Tx, e *Entry) (bool, error) {
	return r.resolve(ctx, tx, e, "resolver.traininglog.resolve", func(e, prevBest *Entry) bool {
		return e.Weight > prevBest.Weight
	})
}

// ResolveEdited places the flag after e's weight was edited. The edited entry
// is ranked against every other entry of the pair with the full invariant
// ordering, so a former holder can lose the flag to any third entry.
func (r *Resolver) ResolveEdited(ctx context.Context, tx Tx, e *Entry) (bool, error) {
	return r.resolve(ctx, tx, e, "resolver.traininglog.resolve-edited", func(e, prevBest *Entry) bool {
		return e.Outranks(prevBest)
	})
}

func (r *Resolver) resolve(
	ctx context.Context,
	tx Tx,
	e *Entry,
	spanName string,
	wins func(e, prevBest *Entry) bool,
) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, spanName)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", e.ID))

	prevBest, err := tx.FindMaxWeightExcluding(ctx, e.UserID, e.ExerciseID, e.ID)
	if err != nil {
		return false, fmt.Errorf("find max weight: %w", err)
	}

	holder := e
	if prevBest != nil && !wins(e, prevBest) {
		holder = prevBest
	}

	if err := r.settle(ctx, tx, e.Pair(), holder); err != nil {
		return false, err
	}

	e.IsPR = holder.ID == e.ID
	span.SetAttributes(attribute.Bool("entry.is_pr", e.IsPR))
	return e.IsPR, nil
}

// Repair re-runs full resolution over all entries of a pair and returns the
// resulting holder, or nil when the pair has no entries left.
func (r *Resolver) Repair(ctx context.Context, tx Tx, pair Pair) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "resolver.traininglog.repair")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("pair", pair.String()))

	best, err := tx.FindMaxWeightExcluding(ctx, pair.UserID, pair.ExerciseID, "")
	if err != nil {
		return nil, fmt.Errorf("find max weight: %w", err)
	}
	if best == nil {
		return nil, nil
	}

	if err := r.settle(ctx, tx, pair, best); err != nil {
		return nil, err
	}
	return best, nil
}

// settle demotes every flagged entry of the pair except holder, then flags
// holder. Demotion goes first so a store-level uniqueness guard never sees
// two holders.
func (r *Resolver) settle(ctx context.Context, tx Tx, pair Pair, holder *Entry) error {
	flagged, err := tx.List(ctx, ListParams{
		UserID:     pair.UserID,
		ExerciseID: pair.ExerciseID,
		PROnly:     true,
	})
	if err != nil {
		return fmt.Errorf("list pr holders: %w", err)
	}

	if len(flagged) > 1 {
		violation := &InvariantViolationError{Pair: pair, Holders: len(flagged)}
		log.Errorf("%s, repairing, keeping [%s]", violation, holder.ID)
		r.metrics.CounterInvariantRepairs.Inc()
	}

	holderFlagged := false
	for _, f := range flagged {
		if f.ID == holder.ID {
			holderFlagged = true
			continue
		}
		if err := tx.SetPR(ctx, f.ID, false); err != nil {
			return fmt.Errorf("demote [%s]: %w", f.ID, err)
		}
		log.Tracef("pr flag removed from [%s] for [%s]", f.ID, pair)
	}

	if !holderFlagged {
		if err := tx.SetPR(ctx, holder.ID, true); err != nil {
			return fmt.Errorf("promote [%s]: %w", holder.ID, err)
		}
		log.Tracef("pr flag set on [%s] for [%s]", holder.ID, pair)
	}
	holder.IsPR = true

	return nil
}
