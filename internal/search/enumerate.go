package search

import (
	"drumcoder/internal/grammar"
	"drumcoder/pkg/contract"
)

// Enumerator 按 MDL 升序逐个产出候选，并维护预算。
// 预算初值为 lower+increment，每产出一个候选后增加 increment；
// 在产出下一个候选前若预算已超过 upper 则停止（首个候选总会产出）。
// 调用方可在任意时刻停止迭代，已产出部分即为有效部分结果。
type Enumerator struct {
	cands     []grammar.Candidate
	pos       int
	budget    float64
	increment float64
	upper     float64
	stop      StopReason
	// refill 按新上界重取候选；nil 时 Resume 只放宽预算。
	refill func(upper float64) []grammar.Candidate
}

func newEnumerator(cands []grammar.Candidate, lower, upper, increment float64) *Enumerator {
	e := &Enumerator{
		cands:     cands,
		budget:    lower + increment,
		increment: increment,
		upper:     upper,
	}
	if len(cands) == 0 {
		e.stop = StopNoCandidates
	}
	return e
}

// Next 返回下一个候选；ok=false 表示迭代结束，原因见 Stop。
func (e *Enumerator) Next() (grammar.Candidate, bool) {
	if e.stop != "" {
		return grammar.Candidate{}, false
	}
	if e.pos >= len(e.cands) {
		e.stop = StopExhausted
		return grammar.Candidate{}, false
	}
	if e.pos > 0 && e.budget > e.upper {
		e.stop = StopBudget
		return grammar.Candidate{}, false
	}
	c := e.cands[e.pos]
	e.pos++
	e.budget += e.increment
	return c, true
}

// Stop 返回终止原因；迭代未结束时为空。
func (e *Enumerator) Stop() StopReason { return e.stop }

// Budget 返回当前预算。
func (e *Enumerator) Budget() float64 { return e.budget }

// Resume 放宽上界后继续枚举：已产出的候选不会重复，预算从当前值接着累加。
// 候选按代价升序，新上界只会在尾部追加代价更高的候选，已消费前缀不变。
func (e *Enumerator) Resume(upper float64) {
	if upper > e.upper && e.refill != nil {
		e.cands = e.refill(upper)
		if e.pos > len(e.cands) {
			e.pos = len(e.cands)
		}
	}
	e.upper = upper
	e.stop = ""
	if len(e.cands) == 0 {
		e.stop = StopNoCandidates
	}
}

// Remaining 返回尚未产出的候选数。
func (e *Enumerator) Remaining() int { return len(e.cands) - e.pos }

// NewEnumerator 以语法中 kind 类型的候选构造枚举器。
// 预算耗尽后以更大的上界调用 Resume 续跑，不要改写 LowerBound 重新构造。
func NewEnumerator(g *grammar.Grammar, kind contract.Kind, set Settings) *Enumerator {
	fill := func(upper float64) []grammar.Candidate {
		return g.FillHoles(kind, set.MaxDepth, set.LowerBound, upper)
	}
	e := newEnumerator(fill(set.UpperBound), set.LowerBound, set.UpperBound, set.BudgetIncrement)
	e.refill = fill
	return e
}
