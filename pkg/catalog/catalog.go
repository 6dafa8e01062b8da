// Package catalog 提供不可变的原语目录：按编码/乐器号/时值查找。
// 目录构造一次并按引用传入编解码器与文法，不存在进程级单例。
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"drumcoder/pkg/contract"
)

// Catalog: 只读原语目录，构造后可被任意并发调用方共享。
type Catalog struct {
	byCode       map[rune]contract.Primitive
	byInstrument map[int]contract.Primitive
	byLength     map[lengthKey]contract.Primitive
	sounds       []contract.Primitive
	lengths      []contract.Primitive
	rest         contract.Primitive
	// 乐器号无法识别时的诊断回调（可为 nil）。
	onUnknown func(id int)
}

type lengthKey struct {
	value  int
	dotted bool
}

// Option 调整目录构造。
type Option func(*Catalog)

// WithUnknownInstrumentHook 设置未知乐器号的诊断回调。
func WithUnknownInstrumentHook(fn func(id int)) Option {
	return func(c *Catalog) { c.onUnknown = fn }
}

// New 构造目录。Hole/Occlusion 未显式给出时自动注册（保留码参与唯一性校验）。
// 任意两个原语编码相同、缺少 Rest、或时值分母非法时返回 ErrConfiguration。
func New(prims []contract.Primitive, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		byCode:       make(map[rune]contract.Primitive, len(prims)+2),
		byInstrument: make(map[int]contract.Primitive),
		byLength:     make(map[lengthKey]contract.Primitive),
	}
	for _, o := range opts {
		o(c)
	}
	all := make([]contract.Primitive, 0, len(prims)+2)
	all = append(all, prims...)
	hasHole, hasOcc, hasRest := false, false, false
	for _, p := range prims {
		switch p.Variant {
		case contract.VariantHole:
			hasHole = true
		case contract.VariantOcclusion:
			hasOcc = true
		case contract.VariantRest:
			hasRest = true
		}
	}
	if !hasHole {
		all = append(all, contract.Hole())
	}
	if !hasOcc {
		all = append(all, contract.Occlusion())
	}
	if !hasRest {
		return nil, fmt.Errorf("%w: catalog has no rest primitive", contract.ErrConfiguration)
	}

	var dups []string
	for _, p := range all {
		if p.Code == 0 {
			return nil, fmt.Errorf("%w: primitive %q has empty code", contract.ErrConfiguration, p.Name)
		}
		if prev, ok := c.byCode[p.Code]; ok {
			dups = append(dups, fmt.Sprintf("%q (%s, %s)", p.Code, prev.Name, p.Name))
			continue
		}
		if p.Cost < 0 {
			return nil, fmt.Errorf("%w: primitive %q has negative cost", contract.ErrConfiguration, p.Name)
		}
		c.byCode[p.Code] = p
		switch p.Variant {
		case contract.VariantSound:
			c.sounds = append(c.sounds, p)
			if _, ok := c.byInstrument[p.Instrument]; !ok {
				c.byInstrument[p.Instrument] = p
			}
		case contract.VariantRest:
			c.rest = p
		case contract.VariantLength:
			if !validDenominator(p.Value) {
				return nil, fmt.Errorf("%w: note length %q has denominator %d", contract.ErrConfiguration, p.Code, p.Value)
			}
			c.lengths = append(c.lengths, p)
			c.byLength[lengthKey{p.Value, p.Dotted}] = p
		case contract.VariantHole, contract.VariantOcclusion:
		default:
			return nil, fmt.Errorf("%w: primitive %q has unknown variant", contract.ErrConfiguration, p.Name)
		}
	}
	if len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate drum-lang codes: %s", contract.ErrConfiguration, strings.Join(dups, ", "))
	}
	return c, nil
}

func validDenominator(v int) bool {
	return v >= 1 && v <= 64 && v&(v-1) == 0
}

// ByCode 按单字符编码查找。
func (c *Catalog) ByCode(code rune) (contract.Primitive, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// ByInstrument 按外部乐器号查找；未识别时回退 Rest 并触发诊断回调，从不失败。
func (c *Catalog) ByInstrument(id int) contract.Primitive {
	if p, ok := c.byInstrument[id]; ok {
		return p
	}
	if c.onUnknown != nil {
		c.onUnknown(id)
	}
	return c.rest
}

// ByLength 按分母与附点查找时值。
func (c *Catalog) ByLength(value int, dotted bool) (contract.Primitive, bool) {
	p, ok := c.byLength[lengthKey{value, dotted}]
	return p, ok
}

// Rest 返回目录中的静音原语。
func (c *Catalog) Rest() contract.Primitive { return c.rest }

// Sounds 返回音色（不含 Rest），按注册顺序。
func (c *Catalog) Sounds() []contract.Primitive { return clonePrims(c.sounds) }

// Lengths 返回时值，按注册顺序。
func (c *Catalog) Lengths() []contract.Primitive { return clonePrims(c.lengths) }

// Primitives 返回文法宇宙：音色 + Rest + 时值（从不含占位符）。
func (c *Catalog) Primitives() []contract.Primitive {
	out := make([]contract.Primitive, 0, len(c.sounds)+1+len(c.lengths))
	out = append(out, c.sounds...)
	out = append(out, c.rest)
	out = append(out, c.lengths...)
	return out
}

// Codes 返回全部编码（含占位符），按码点升序。
func (c *Catalog) Codes() []rune {
	out := make([]rune, 0, len(c.byCode))
	for r := range c.byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clonePrims(in []contract.Primitive) []contract.Primitive {
	out := make([]contract.Primitive, len(in))
	copy(out, in)
	return out
}
