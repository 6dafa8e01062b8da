// Package grammar 为原语赋予对数概率，并按声明类型归一化候选集合。
//
// 语法构造后只读，可被任意数量的并发搜索批次共享。
package grammar

import (
	"fmt"
	"math"
	"sort"

	"drumcoder/pkg/contract"
)

// Production: 一条产生式（对数概率 + 原语）。
type Production struct {
	LogProb float64
	Prim    contract.Primitive
}

// Candidate: 按 MDL（-logProb）标注代价的候选原语。
type Candidate struct {
	Cost float64
	Prim contract.Primitive
}

// Grammar: 产生式列表与原语到对数概率的索引。
type Grammar struct {
	prods  []Production
	logp   map[contract.Primitive]float64
	byKind map[contract.Kind][]Production
}

// New 构造语法。占位符、重复原语、NaN/+Inf 概率，或某类型概率质量为零，返回 ErrConfiguration。
func New(prods []Production) (*Grammar, error) {
	g := &Grammar{
		prods:  make([]Production, 0, len(prods)),
		logp:   make(map[contract.Primitive]float64, len(prods)),
		byKind: make(map[contract.Kind][]Production, 2),
	}
	for _, p := range prods {
		if p.Prim.IsPlaceholder() {
			return nil, fmt.Errorf("%w: placeholder %q cannot be a production", contract.ErrConfiguration, p.Prim.Code)
		}
		if math.IsNaN(p.LogProb) || math.IsInf(p.LogProb, 1) {
			return nil, fmt.Errorf("%w: invalid log probability %v for %q", contract.ErrConfiguration, p.LogProb, p.Prim.Code)
		}
		if _, dup := g.logp[p.Prim]; dup {
			return nil, fmt.Errorf("%w: duplicate production %q", contract.ErrConfiguration, p.Prim.Code)
		}
		g.prods = append(g.prods, p)
		g.logp[p.Prim] = p.LogProb
		k := p.Prim.Kind()
		g.byKind[k] = append(g.byKind[k], p)
	}
	// 某类型全部为 -Inf 时归一化会得到 NaN
	for _, p := range g.prods {
		k := p.Prim.Kind()
		src := g.byKind[k]
		lps := make([]float64, len(src))
		for i, q := range src {
			lps[i] = q.LogProb
		}
		if math.IsInf(LSE(lps), -1) {
			return nil, fmt.Errorf("%w: kind %v has zero probability mass", contract.ErrConfiguration, k)
		}
	}
	return g, nil
}

// Uniform 以对数概率 0 构造语法（各类型归一化后为均匀分布）。
func Uniform(prims []contract.Primitive) (*Grammar, error) {
	prods := make([]Production, len(prims))
	for i, p := range prims {
		prods[i] = Production{LogProb: 0, Prim: p}
	}
	return New(prods)
}

// Productions 返回产生式副本（保持构造顺序）。
func (g *Grammar) Productions() []Production {
	out := make([]Production, len(g.prods))
	copy(out, g.prods)
	return out
}

// LogProb 返回原语的未归一化对数概率。
func (g *Grammar) LogProb(p contract.Primitive) (float64, bool) {
	lp, ok := g.logp[p]
	return lp, ok
}

// Candidates 返回声明类型为 kind 的产生式，对数概率经 LSE 归一化（概率和为 1）。
// 无候选时返回 nil。
func (g *Grammar) Candidates(kind contract.Kind) []Production {
	src := g.byKind[kind]
	if len(src) == 0 {
		return nil
	}
	lps := make([]float64, len(src))
	for i, p := range src {
		lps[i] = p.LogProb
	}
	z := LSE(lps)
	out := make([]Production, len(src))
	for i, p := range src {
		out[i] = Production{LogProb: p.LogProb - z, Prim: p.Prim}
	}
	return out
}

// FillHoles 枚举可填入 kind 类型洞的候选，满足 lower <= mdl <= upper，
// 按 MDL 升序、编码升序排列。maxDepth == 1 或 upper < 0 视为预算耗尽，返回 nil。
func (g *Grammar) FillHoles(kind contract.Kind, maxDepth int, lower, upper float64) []Candidate {
	if maxDepth == 1 || upper < 0 {
		return nil
	}
	var out []Candidate
	for _, p := range g.Candidates(kind) {
		mdl := -p.LogProb
		if mdl < lower || mdl > upper {
			continue
		}
		out = append(out, Candidate{Cost: mdl, Prim: p.Prim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].Prim.Code < out[j].Prim.Code
	})
	return out
}

// LSE 计算 log Σ exp(x)。空输入为调用方错误（panic），单元素原样返回。
func LSE(xs []float64) float64 {
	if len(xs) == 0 {
		panic("grammar: LSE of empty sequence")
	}
	if len(xs) == 1 {
		return xs[0]
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	if math.IsInf(m, -1) {
		return m
	}
	var s float64
	for _, x := range xs {
		s += math.Exp(x - m)
	}
	return m + math.Log(s)
}
