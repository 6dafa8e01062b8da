package grammar

import (
	"fmt"
	"sort"
	"strings"

	"drumcoder/pkg/contract"
)

// LikelihoodSummary 统计原语使用次数与候选集合归一化次数，供后续重估使用。
// 非并发安全。
type LikelihoodSummary struct {
	Constant float64

	uses        map[contract.Primitive]int
	normalizers map[string]*normalizer
}

type normalizer struct {
	prims []contract.Primitive
	count int
}

// NewLikelihoodSummary 返回空统计。
func NewLikelihoodSummary() *LikelihoodSummary {
	return &LikelihoodSummary{
		uses:        make(map[contract.Primitive]int),
		normalizers: make(map[string]*normalizer),
	}
}

// Record 记录一次使用：actual 为实际原语，possibles 为该位置所有可选原语。
// 候选集合按编码排序后作为键，顺序无关。
func (s *LikelihoodSummary) Record(actual contract.Primitive, possibles []contract.Primitive) {
	s.uses[actual]++
	ps := make([]contract.Primitive, len(possibles))
	copy(ps, possibles)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Code < ps[j].Code })
	var kb strings.Builder
	for _, p := range ps {
		kb.WriteRune(p.Code)
	}
	key := kb.String()
	n, ok := s.normalizers[key]
	if !ok {
		n = &normalizer{prims: ps}
		s.normalizers[key] = n
	}
	n.count++
}

// Uses 返回 p 的使用次数。
func (s *LikelihoodSummary) Uses(p contract.Primitive) int { return s.uses[p] }

// LogLikelihood 计算 constant + Σ count·logP(p) − Σ count·LSE(logP(possibles))。
// 统计中出现语法未知的原语时返回 ErrInvalidInput。
func (s *LikelihoodSummary) LogLikelihood(g *Grammar) (float64, error) {
	ll := s.Constant
	for p, c := range s.uses {
		lp, ok := g.LogProb(p)
		if !ok {
			return 0, fmt.Errorf("%w: primitive %q not in grammar", contract.ErrInvalidInput, p.Code)
		}
		ll += float64(c) * lp
	}
	for key, n := range s.normalizers {
		if len(n.prims) == 0 {
			return 0, fmt.Errorf("%w: empty candidate set", contract.ErrInvalidInput)
		}
		lps := make([]float64, len(n.prims))
		for i, p := range n.prims {
			lp, ok := g.LogProb(p)
			if !ok {
				return 0, fmt.Errorf("%w: candidate %q of set %q not in grammar", contract.ErrInvalidInput, p.Code, key)
			}
			lps[i] = lp
		}
		ll -= float64(n.count) * LSE(lps)
	}
	return ll, nil
}

// Summarize 将轨道的每个原语按其声明类型的候选集合记入统计。
func (g *Grammar) Summarize(track contract.FlatTrack) (*LikelihoodSummary, error) {
	s := NewLikelihoodSummary()
	sets := make(map[contract.Kind][]contract.Primitive, 2)
	for k, prods := range g.byKind {
		ps := make([]contract.Primitive, len(prods))
		for i, p := range prods {
			ps[i] = p.Prim
		}
		sets[k] = ps
	}
	for i, p := range track {
		if _, ok := g.logp[p]; !ok {
			return nil, fmt.Errorf("%w: primitive %q at %d not in grammar", contract.ErrInvalidInput, p.Code, i)
		}
		s.Record(p, sets[p.Kind()])
	}
	return s, nil
}
