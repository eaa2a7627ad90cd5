package symwalk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jward/symwalk/internal/report"
	"github.com/jward/symwalk/internal/workspace"
)

// workItem holds everything a document worker needs. buf was reserved
// before dispatch, which fixes its position in the merged run.
type workItem struct {
	doc *workspace.Document
	buf *report.Document
}

// analyzeParallel analyses documents with a bounded worker pool:
//
//	Phase A (serial):   Reserve one buffer per document in solution order.
//	Phase B (parallel): Each worker fills its own buffer.
//	Phase C (serial):   The aggregator merges buffers by reservation order.
//
// The first fatal error cancels the remaining workers.
func (e *Engine) analyzeParallel(ctx context.Context, sol *workspace.Solution, a analysis, agg *report.Aggregator) error {
	// ---- Phase A ----
	var items []workItem
	for _, p := range sol.Projects {
		for _, doc := range p.Documents {
			items = append(items, workItem{doc: doc, buf: agg.Reserve(p.Name, doc.Path)})
		}
	}
	if len(items) == 0 {
		return nil
	}

	// ---- Phase B ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(a.workers, len(items)))
	for _, item := range items {
		g.Go(func() error {
			err := e.analyzeDocument(gctx, a, item.doc, item.buf)
			agg.AddDocument(item.buf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// A parent cancellation no worker observed.
	return ctx.Err()
}
