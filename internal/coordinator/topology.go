package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/mwhitfield/loom/internal/registry"
	"github.com/mwhitfield/loom/pkg/models"
)

// invoke runs one worker with timing and stats recording. A nil result with
// a nil error is normalized into an error so callers only branch once.
func (c *Coordinator) invoke(ctx context.Context, w registry.Worker, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
	start := time.Now()
	res, err := w.Process(ctx, request, reqCtx)
	elapsed := time.Since(start)

	if err == nil && res == nil {
		err = fmt.Errorf("worker %s returned no result", w.Name())
	}
	if err != nil {
		c.registry.RecordResult(w.Name(), elapsed, 0, true)
		c.logger.Log("worker %s failed after %s: %v", w.Name(), elapsed, err)
		return nil, err
	}

	res.Elapsed = elapsed
	c.registry.RecordResult(w.Name(), elapsed, res.Confidence, false)
	return res, nil
}

// run dispatches the selection to the topology-specific runner. The returned
// map holds the results of every worker that succeeded; individual worker
// failures are tolerated as long as at least one worker answers.
func (c *Coordinator) run(ctx context.Context, sel Selection, request string, reqCtx map[string]any) map[string]*models.WorkerResult {
	switch sel.Topology {
	case models.TopologyParallel:
		return c.runParallel(ctx, sel.Workers, request, reqCtx)
	case models.TopologyHierarchical:
		return c.runHierarchical(ctx, sel, request, reqCtx)
	case models.TopologyCollaborative:
		return c.runCollaborative(ctx, sel.Workers, request, reqCtx)
	default:
		return c.runSequential(ctx, sel.Workers, request, reqCtx)
	}
}

// runSequential invokes workers one at a time, feeding each worker the
// accumulated suggestions of the workers before it.
func (c *Coordinator) runSequential(ctx context.Context, workers []registry.Worker, request string, reqCtx map[string]any) map[string]*models.WorkerResult {
	results := make(map[string]*models.WorkerResult, len(workers))
	var prior []string

	for _, w := range workers {
		enriched := cloneContext(reqCtx)
		if len(prior) > 0 {
			enriched["prior_suggestions"] = append([]string(nil), prior...)
		}

		res, err := c.invoke(ctx, w, request, enriched)
		if err != nil {
			continue
		}
		results[w.Name()] = res
		prior = append(prior, res.Suggestions...)
	}
	return results
}

// runParallel fans out to every worker at once and settles for whatever
// subset succeeds.
func (c *Coordinator) runParallel(ctx context.Context, workers []registry.Worker, request string, reqCtx map[string]any) map[string]*models.WorkerResult {
	results := make(map[string]*models.WorkerResult, len(workers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			res, err := c.invoke(gctx, w, request, reqCtx)
			if err != nil {
				// Per-worker failures do not abort the group.
				return nil
			}
			mu.Lock()
			results[w.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// runHierarchical asks the lead worker first, then fans the rest out in
// parallel with the lead's guidance in their context. If the lead fails the
// whole group degrades to a flat parallel run.
func (c *Coordinator) runHierarchical(ctx context.Context, sel Selection, request string, reqCtx map[string]any) map[string]*models.WorkerResult {
	lead := sel.Workers[0]
	for _, w := range sel.Workers {
		if w.Name() == c.cfg.DefaultWorker {
			lead = w
			break
		}
	}

	leadRes, err := c.invoke(ctx, lead, request, reqCtx)
	if err != nil {
		c.logger.Log("hierarchical lead %s failed, degrading to parallel", lead.Name())
		return c.runParallel(ctx, sel.Workers, request, reqCtx)
	}

	var rest []registry.Worker
	for _, w := range sel.Workers {
		if w.Name() != lead.Name() {
			rest = append(rest, w)
		}
	}

	enriched := cloneContext(reqCtx)
	enriched["lead_worker"] = lead.Name()
	enriched["lead_guidance"] = leadRes.Content
	if len(leadRes.Suggestions) > 0 {
		enriched["lead_suggestions"] = append([]string(nil), leadRes.Suggestions...)
	}

	results := c.runParallel(ctx, rest, request, enriched)
	results[lead.Name()] = leadRes
	return results
}

// runCollaborative runs two rounds: a parallel first pass, then a refinement
// pass where each worker sees a digest of everyone else's first answer. A
// worker that fails its refinement keeps its round-one result.
func (c *Coordinator) runCollaborative(ctx context.Context, workers []registry.Worker, request string, reqCtx map[string]any) map[string]*models.WorkerResult {
	first := c.runParallel(ctx, workers, request, reqCtx)
	if len(first) < 2 {
		// Nothing to cross-pollinate.
		return first
	}

	results := make(map[string]*models.WorkerResult, len(first))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		own, ok := first[w.Name()]
		if !ok {
			continue
		}
		g.Go(func() error {
			peers := make(map[string]string, len(first)-1)
			for name, res := range first {
				if name != w.Name() {
					peers[name] = digest(res.Content)
				}
			}
			enriched := cloneContext(reqCtx)
			enriched["peer_digests"] = peers
			enriched["refinement_round"] = true

			refined, err := c.invoke(gctx, w, request, enriched)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[w.Name()] = own
			} else {
				results[w.Name()] = refined
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// digestLen bounds how much of a peer's answer is shared in round two.
const digestLen = 280

func digest(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= digestLen {
		return content
	}
	cut := digestLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func cloneContext(reqCtx map[string]any) map[string]any {
	out := make(map[string]any, len(reqCtx)+2)
	for k, v := range reqCtx {
		out[k] = v
	}
	return out
}
