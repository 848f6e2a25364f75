package pricing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/types"
	"farmacia/pkg/logger"
)

// DefaultBulkWorkers is the worker pool size when none is configured.
const DefaultBulkWorkers = 4

var tracer = otel.Tracer("farmacia/pricing")

// BulkFailure describes one entity that could not be re-priced.
type BulkFailure struct {
	Ref       EntityRef `json:"ref"`
	ErrorKind string    `json:"errorKind"`
	Message   string    `json:"message"`
}

// BulkResult partitions the input refs. Both lists keep input order.
type BulkResult struct {
	Succeeded []EntityRef   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
	Changes   []PriceChange `json:"changes"`
}

// Total returns the number of processed refs.
func (r BulkResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// BulkApplier applies one explicit markup to many entities. Each entity is
// committed on its own; a failure never rolls back other entities.
type BulkApplier struct {
	repricer *repricer
	workers  int
	observer BulkObserver
}

// Apply re-prices every ref with markup. Per-item failures are reported in
// the result. When ctx is cancelled, refs not yet started are reported as
// CANCELLED and ctx.Err() is returned alongside the partial result.
func (a *BulkApplier) Apply(ctx context.Context, refs []EntityRef, markup types.Markup, reason *string) (BulkResult, error) {
	ctx, span := tracer.Start(ctx, "pricing.BulkApply")
	defer span.End()
	span.SetAttributes(
		attribute.Int("bulk.items", len(refs)),
		attribute.String("bulk.markup", markup.String()),
	)

	log := logger.FromContext(ctx).WithComponent("bulk_markup")
	started := time.Now()

	type job struct {
		idx int
		ref EntityRef
	}
	type outcome struct {
		idx    int
		change PriceChange
		err    error
	}

	workers := a.workers
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}
	if workers > len(refs) {
		workers = len(refs)
	}

	jobs := make(chan job)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes <- outcome{idx: j.idx, err: apperror.NewCancelled(err)}
					continue
				}
				change, err := a.repricer.apply(ctx, j.ref, mutation{explicit: &markup, reason: reason})
				outcomes <- outcome{idx: j.idx, change: change, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, ref := range refs {
			jobs <- job{idx: i, ref: ref}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// single collector; slots are indexed so input order survives
	collected := make([]outcome, len(refs))
	for o := range outcomes {
		collected[o.idx] = o
		kind := ""
		if o.err != nil {
			kind = ViolationKind(o.err)
		}
		if a.observer != nil {
			a.observer.ObserveItem(kind)
		}
	}

	var result BulkResult
	for i, o := range collected {
		if o.err != nil {
			result.Failed = append(result.Failed, BulkFailure{
				Ref:       refs[i],
				ErrorKind: ViolationKind(o.err),
				Message:   o.err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, refs[i])
		result.Changes = append(result.Changes, o.change)
	}

	elapsed := time.Since(started)
	if a.observer != nil {
		a.observer.ObserveRun(len(result.Succeeded), len(result.Failed), elapsed)
	}
	span.SetAttributes(
		attribute.Int("bulk.succeeded", len(result.Succeeded)),
		attribute.Int("bulk.failed", len(result.Failed)),
	)

	log.Infow("bulk markup applied",
		"markup", markup.String(),
		"items", len(refs),
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"elapsed", elapsed,
	)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return result, err
	}
	return result, nil
}
