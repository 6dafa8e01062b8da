package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"drumcoder/internal/diag"
	"drumcoder/internal/grammar"
	"drumcoder/pkg/contract"
)

// WakeResult 汇总各洞类型批次的结果（按洞类型升序）。
type WakeResult struct {
	Batches []Result
}

// Completions 合并全部批次的补全。
func (w WakeResult) Completions() map[string][]Completion {
	out := make(map[string][]Completion)
	for _, b := range w.Batches {
		for sig, cs := range b.Completions {
			out[sig] = cs
		}
	}
	return out
}

// Solved 返回至少有一个补全的任务数。
func (w WakeResult) Solved() int {
	n := 0
	for _, b := range w.Batches {
		for _, cs := range b.Completions {
			if len(cs) > 0 {
				n++
			}
		}
	}
	return n
}

// Wake 按洞类型分组任务，每组一个批次，以至多 concurrency 个 worker 并发执行。
// 各批次拥有独立的时钟与预算；语法只读共享。
// 仅在批次前置条件失败时返回错误（首错取消其余批次）。
func Wake(ctx context.Context, g *grammar.Grammar, tasks []Task, set Settings, concurrency int, logger *diag.Logger) (WakeResult, error) {
	groups := make(map[contract.Kind][]Task)
	for _, t := range tasks {
		k := t.HoleType()
		groups[k] = append(groups[k], t)
	}
	kinds := make([]contract.Kind, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	out := WakeResult{Batches: make([]Result, len(kinds))}
	if len(kinds) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		idx  int
		kind contract.Kind
	}
	nWorkers := concurrency
	if nWorkers < 1 {
		nWorkers = 1
	}
	if nWorkers > len(kinds) {
		nWorkers = len(kinds)
	}
	inCh := make(chan job, nWorkers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	worker := func() {
		defer wg.Done()
		for j := range inCh {
			t0 := time.Now()
			batch := groups[j.kind]
			res, err := GenerateTracks(ctx, g, batch, set, logger)
			if err != nil {
				code := diag.Classify(err)
				logger.ErrorWith("search", string(code), err.Error(), &t0, "", j.kind.String())
				diag.IncError("search", string(code))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				continue
			}
			out.Batches[j.idx] = res
			diag.GetTerminal().BatchFinish(j.kind.String(), string(res.Stop), len(batch), res.Valid, res.Elapsed)
		}
	}
	wg.Add(nWorkers)
	for i := 0; i < nWorkers; i++ {
		go worker()
	}
	go func() {
		defer close(inCh)
		for i, k := range kinds {
			select {
			case <-ctx.Done():
				return
			case inCh <- job{idx: i, kind: k}:
			}
		}
	}()
	wg.Wait()
	if firstErr != nil {
		return WakeResult{}, firstErr
	}
	// 外部取消且未下发的批次：补齐为 cancelled 空结果
	for i, k := range kinds {
		if out.Batches[i].Completions == nil {
			out.Batches[i] = cancelledResult(k, groups[k])
		}
	}
	return out, nil
}

func cancelledResult(kind contract.Kind, tasks []Task) Result {
	r := Result{HoleType: kind, Stop: StopCancelled, Completions: make(map[string][]Completion, len(tasks))}
	for _, t := range tasks {
		r.Completions[t.Signature()] = []Completion{}
	}
	return r
}
