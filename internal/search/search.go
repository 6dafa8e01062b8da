// Package search 实现 MDL 有界的枚举式补全搜索。
//
// 一个批次内的任务共享洞类型：候选按代价升序枚举一次，
// 每个候选代入批内全部任务的遮蔽编码，与真值逐字比较。
// 超时与取消均为优雅降级：返回已累积的部分结果，不视为错误。
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"drumcoder/internal/diag"
	"drumcoder/internal/grammar"
	"drumcoder/pkg/contract"
)

// Task 为搜索所需的最小任务视图。
type Task interface {
	Signature() string
	HoleType() contract.Kind
	MaskedEncoding() string
	Encoding() string
}

// Settings 控制单个批次的枚举边界。
type Settings struct {
	LowerBound      float64
	UpperBound      float64
	BudgetIncrement float64
	// Timeout 为批次墙钟上限；0 表示立即停止，负值关闭超时。
	Timeout  time.Duration
	MaxDepth int
	// Now 为时钟注入点（测试用）；nil 使用 time.Now。
	Now func() time.Time
}

// DefaultSettings 返回默认边界：[0,100]，步长 1，超时 2s。
func DefaultSettings() Settings {
	return Settings{LowerBound: 0, UpperBound: 100, BudgetIncrement: 1, Timeout: 2 * time.Second}
}

func (s Settings) now() func() time.Time {
	if s.Now != nil {
		return s.Now
	}
	return time.Now
}

// StopReason 说明枚举为何结束。
type StopReason string

const (
	StopExhausted    StopReason = "exhausted"
	StopNoCandidates StopReason = "no_candidates"
	StopTimeout      StopReason = "timeout"
	StopBudget       StopReason = "budget"
	StopCancelled    StopReason = "cancelled"
)

// Completion: 一个命中的补全。Priority 越小越优先。
type Completion struct {
	Priority float64 `json:"priority"`
	Track    string  `json:"track"`
}

// Result: 单批次结果。Completions 以任务签名为键，批内每个任务都有条目（可能为空）。
type Result struct {
	HoleType    contract.Kind
	Completions map[string][]Completion
	Stop        StopReason
	Programs    int
	Valid       int
	Elapsed     time.Duration
}

// Score 以逐字相等判定补全；未命中返回 (false, -Inf)。
func Score(generated string, t Task) (bool, float64) {
	if generated == t.Encoding() {
		return true, 0
	}
	return false, math.Inf(-1)
}

// GenerateTracks 对同一洞类型的一批任务执行一次枚举。
// 空批、nil 语法或洞类型不一致返回 ErrPrecondition；其余情况均返回（可能为部分的）结果。
func GenerateTracks(ctx context.Context, g *grammar.Grammar, tasks []Task, set Settings, logger *diag.Logger) (Result, error) {
	if g == nil {
		return Result{}, fmt.Errorf("%w: nil grammar", contract.ErrPrecondition)
	}
	if len(tasks) == 0 {
		return Result{}, fmt.Errorf("%w: empty task batch", contract.ErrPrecondition)
	}
	kind := tasks[0].HoleType()
	for i, t := range tasks[1:] {
		if t.HoleType() != kind {
			return Result{}, fmt.Errorf("%w: task %d has hole type %s, batch expects %s", contract.ErrPrecondition, i+1, t.HoleType(), kind)
		}
	}

	now := set.now()
	start := now()
	res := Result{HoleType: kind, Completions: make(map[string][]Completion, len(tasks))}

	// 同签名任务只评估一次
	type prepared struct {
		task   Task
		sig    string
		masked string
	}
	batch := make([]prepared, 0, len(tasks))
	for _, t := range tasks {
		sig := t.Signature()
		if _, dup := res.Completions[sig]; dup {
			continue
		}
		res.Completions[sig] = []Completion{}
		batch = append(batch, prepared{task: t, sig: sig, masked: t.MaskedEncoding()})
	}

	timer := logger.StartWithKV("search", "batch", "", kind.String(), map[string]string{
		"tasks": fmt.Sprintf("%d", len(batch)),
	})
	en := NewEnumerator(g, kind, set)
	hole := string(contract.HoleCode)
	for {
		if en.Stop() == StopNoCandidates {
			res.Stop = StopNoCandidates
			break
		}
		if ctx.Err() != nil {
			res.Stop = StopCancelled
			break
		}
		if set.Timeout >= 0 && now().Sub(start) >= set.Timeout {
			res.Stop = StopTimeout
			break
		}
		c, ok := en.Next()
		if !ok {
			res.Stop = en.Stop()
			break
		}
		res.Programs++
		prior := -c.Cost
		code := string(c.Prim.Code)
		for _, p := range batch {
			generated := strings.ReplaceAll(p.masked, hole, code)
			hit, likelihood := Score(generated, p.task)
			if !hit {
				continue
			}
			res.Valid++
			res.Completions[p.sig] = append(res.Completions[p.sig], Completion{
				Priority: -(likelihood + prior),
				Track:    generated,
			})
		}
		diag.GetTerminal().SearchProgress(kind.String(), res.Programs, res.Valid)
	}
	for sig := range res.Completions {
		cs := res.Completions[sig]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Priority < cs[j].Priority })
	}
	res.Elapsed = now().Sub(start)

	timer.FinishKV("batch", int64(res.Valid), map[string]string{
		"stop":     string(res.Stop),
		"programs": fmt.Sprintf("%d", res.Programs),
	})
	diag.IncOp("search", string(res.Stop), "success")
	diag.ObserveDuration("search", "batch", res.Elapsed.Milliseconds())
	return res, nil
}
