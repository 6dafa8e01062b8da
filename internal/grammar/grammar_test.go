package grammar

import (
	"errors"
	"math"
	"testing"

	"drumcoder/pkg/catalog"
	"drumcoder/pkg/contract"
)

func uniformDefault(t *testing.T) *Grammar {
	t.Helper()
	g, err := Uniform(catalog.Default().Primitives())
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	return g
}

// UT-GRM-01: 按类型归一化后概率和为 1
func TestCandidatesNormalized(t *testing.T) {
	g := uniformDefault(t)
	for _, k := range []contract.Kind{contract.KindSound, contract.KindLength} {
		cs := g.Candidates(k)
		if len(cs) == 0 {
			t.Fatalf("%v: no candidates", k)
		}
		var sum float64
		for _, c := range cs {
			if c.Prim.Kind() != k {
				t.Fatalf("%v: foreign candidate %v", k, c.Prim)
			}
			sum += math.Exp(c.LogProb)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%v: probabilities sum to %v", k, sum)
		}
	}
	if g.Candidates(contract.KindNone) != nil {
		t.Fatalf("placeholder kind should have no candidates")
	}
}

// UT-GRM-02: FillHoles 边界
func TestFillHoles(t *testing.T) {
	g := uniformDefault(t)
	nLen := len(catalog.Default().Lengths())
	mdl := math.Log(float64(nLen))

	got := g.FillHoles(contract.KindLength, 0, 0, 100)
	if len(got) != nLen {
		t.Fatalf("want %d candidates, got %d", nLen, len(got))
	}
	for i, c := range got {
		if math.Abs(c.Cost-mdl) > 1e-9 {
			t.Fatalf("cost %v, want %v", c.Cost, mdl)
		}
		if i > 0 && got[i-1].Prim.Code > c.Prim.Code {
			t.Fatalf("ties must be ordered by code")
		}
	}
	cases := []struct {
		name         string
		depth        int
		lower, upper float64
	}{
		{"negative-upper", 0, 0, -1},
		{"depth-one", 1, 0, 100},
		{"below-cost", 0, 0, mdl - 0.1},
		{"above-lower", 0, mdl + 0.1, 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := g.FillHoles(contract.KindLength, c.depth, c.lower, c.upper); len(got) != 0 {
				t.Fatalf("want no candidates, got %d", len(got))
			}
		})
	}
}

func TestFillHolesOrderedByCost(t *testing.T) {
	cat := catalog.Default()
	b, _ := cat.ByCode('B')
	s, _ := cat.ByCode('S')
	h, _ := cat.ByCode('h')
	g, err := New([]Production{{LogProb: -3, Prim: b}, {LogProb: 0, Prim: s}, {LogProb: -1, Prim: h}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := g.FillHoles(contract.KindSound, 0, 0, 100)
	if len(got) != 3 || got[0].Prim != s || got[1].Prim != h || got[2].Prim != b {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestNewRejects(t *testing.T) {
	cat := catalog.Default()
	b, _ := cat.ByCode('B')
	if _, err := New([]Production{{Prim: b}, {Prim: b}}); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := New([]Production{{Prim: contract.Hole()}}); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("placeholder: %v", err)
	}
	if _, err := New([]Production{{LogProb: math.NaN(), Prim: b}}); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("nan: %v", err)
	}
	sn, _ := cat.ByCode('S')
	ninf := math.Inf(-1)
	if _, err := New([]Production{{LogProb: ninf, Prim: b}, {LogProb: ninf, Prim: sn}}); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("zero mass: %v", err)
	}
	// 单个 -Inf 只是该原语不可达，类型仍有质量
	g, err := New([]Production{{LogProb: ninf, Prim: b}, {LogProb: 0, Prim: sn}})
	if err != nil {
		t.Fatalf("partial -Inf: %v", err)
	}
	for _, p := range g.Candidates(b.Kind()) {
		if math.IsNaN(p.LogProb) {
			t.Fatalf("candidate %q normalized to NaN", p.Prim.Code)
		}
	}
}

// UT-GRM-03: LSE
func TestLSE(t *testing.T) {
	if LSE([]float64{-2.5}) != -2.5 {
		t.Fatalf("single element must be returned unchanged")
	}
	got := LSE([]float64{0, 0})
	if math.Abs(got-math.Log(2)) > 1e-12 {
		t.Fatalf("lse(0,0)=%v", got)
	}
	got = LSE([]float64{1000, 1000})
	if math.IsInf(got, 0) || math.Abs(got-(1000+math.Log(2))) > 1e-9 {
		t.Fatalf("lse overflow: %v", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("empty input should panic")
		}
	}()
	LSE(nil)
}

// UT-GRM-04: 似然统计
func TestLikelihoodSummary(t *testing.T) {
	cat := catalog.Default()
	b, _ := cat.ByCode('B')
	s, _ := cat.ByCode('S')
	g, err := New([]Production{{LogProb: math.Log(0.25), Prim: b}, {LogProb: math.Log(0.75), Prim: s}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sum := NewLikelihoodSummary()
	sum.Record(b, []contract.Primitive{b, s})
	sum.Record(s, []contract.Primitive{s, b})
	ll, err := sum.LogLikelihood(g)
	if err != nil {
		t.Fatalf("ll: %v", err)
	}
	want := math.Log(0.25) + math.Log(0.75)
	if math.Abs(ll-want) > 1e-12 {
		t.Fatalf("ll=%v want %v", ll, want)
	}
	if sum.Uses(b) != 1 {
		t.Fatalf("uses: %d", sum.Uses(b))
	}

	sum.Record(cat.Rest(), []contract.Primitive{cat.Rest()})
	if _, err := sum.LogLikelihood(g); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("unknown primitive should fail, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	g := uniformDefault(t)
	cat := catalog.Default()
	b, _ := cat.ByCode('B')
	l, _ := cat.ByCode('2')
	sum, err := g.Summarize(contract.FlatTrack{b, l, b, l})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	ll, err := sum.LogLikelihood(g)
	if err != nil {
		t.Fatalf("ll: %v", err)
	}
	nS := float64(len(cat.Sounds()) + 1)
	nL := float64(len(cat.Lengths()))
	want := -2*math.Log(nS) - 2*math.Log(nL)
	if math.Abs(ll-want) > 1e-9 {
		t.Fatalf("ll=%v want %v", ll, want)
	}
	if _, err := g.Summarize(contract.FlatTrack{contract.Hole()}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("hole should fail, got %v", err)
	}
}
