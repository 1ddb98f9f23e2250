package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/duesbook/duesbook/internal/store"
)

// DefaultWorkers is the parallelism of a batch run.
const DefaultWorkers = 4

// Results maps member ID to the outcome of that member's pass.
type Results map[int64]Outcome

// Err aggregates the abort reasons of a batch, or nil if every pass
// committed or skipped.
func (r Results) Err() error {
	var merr *multierror.Error
	for _, out := range r {
		if out.Status == StatusAborted {
			merr = multierror.Append(merr, fmt.Errorf("member %d: %w", out.MemberID, out.Err))
		}
	}
	return merr.ErrorOrNil()
}

// Runner executes reconciliation passes for many members in parallel.
// Members partition cleanly (a pass only writes its own member's row),
// so passes run concurrently up to the worker limit.
type Runner struct {
	store   store.Store
	rec     *Reconciler
	log     *logrus.Logger
	workers int
}

// NewRunner creates a Runner. workers <= 0 selects DefaultWorkers.
func NewRunner(st store.Store, rec *Reconciler, log *logrus.Logger, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{store: st, rec: rec, log: log, workers: workers}
}

// Run reconciles every member through asOf. Cancelling ctx stops
// scheduling further member passes; a pass already underway always runs
// to completion so no commit is interrupted.
func (r *Runner) Run(ctx context.Context, asOf time.Time) (Results, error) {
	members, err := r.store.Members(ctx, store.MemberFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	results := make(Results, len(members))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for _, member := range members {
		member := member
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			// The pass must not be torn down mid-commit.
			out := r.rec.ReconcileMember(context.WithoutCancel(ctx), member.ID, asOf)

			entry := r.log.WithFields(logrus.Fields{
				"member":  out.MemberID,
				"outcome": out.Status,
			})
			switch out.Status {
			case StatusCommitted:
				entry.WithField("delta", out.Delta.String()).Info("reconciled member")
			case StatusAborted:
				entry.WithError(out.Err).Warn("reconciliation aborted")
			default:
				entry.Debug("nothing to reconcile")
			}

			mu.Lock()
			results[out.MemberID] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}
