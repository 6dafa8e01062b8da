// Package drumlang 实现 drum-lang 文本编码与类型化轨道之间的双向映射。
//
// 文法：轨道为若干拍的拼接；每拍 = 零或多个音色码 + 恰好一个时值码。
//   - 严格模式（DecodePlayable）：不接受占位符；产出按拍分组的 PlayableTrack。
//   - 宽松模式（DecodePrimitives）：额外接受 Hole/Occlusion；产出 FlatTrack，不做分组与击打数校验。
//
// 空白字符在两种模式下均被忽略。
package drumlang

import (
	"errors"
	"strings"
	"unicode"

	"drumcoder/pkg/catalog"
	"drumcoder/pkg/contract"
)

// Codec 绑定一个只读目录；可并发使用。
type Codec struct {
	cat *catalog.Catalog
}

// New 创建编解码器。
func New(cat *catalog.Catalog) *Codec {
	return &Codec{cat: cat}
}

// Catalog 返回绑定的目录。
func (c *Codec) Catalog() *catalog.Catalog { return c.cat }

type token struct {
	pos  int
	prim contract.Primitive
}

// tokenize 逐 rune 查表；未知字符返回 PatternError。
func (c *Codec) tokenize(s string) ([]token, error) {
	toks := make([]token, 0, len(s))
	pos := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			pos++
			continue
		}
		p, ok := c.cat.ByCode(r)
		if !ok {
			return nil, contract.Patternf(pos, "unrecognized character %q", r)
		}
		toks = append(toks, token{pos: pos, prim: p})
		pos++
	}
	return toks, nil
}

// DecodePlayable 严格解析。
// 在每个位置贪婪消费连续音色码作为同时击打组（遇到首个非音色码停止），
// 随后要求恰好一个时值码闭合该拍。
func (c *Codec) DecodePlayable(s string) (contract.PlayableTrack, error) {
	out := contract.PlayableTrack{BPM: contract.DefaultBPM}
	toks, err := c.tokenize(s)
	if err != nil {
		return out, err
	}
	i := 0
	for i < len(toks) {
		start := toks[i].pos
		var hits []contract.Primitive
		for i < len(toks) {
			p := toks[i].prim
			if p.IsPlaceholder() {
				return out, contract.Patternf(toks[i].pos, "placeholder %q not allowed in strict mode", p.Code)
			}
			if p.Kind() != contract.KindSound {
				break
			}
			hits = append(hits, p)
			i++
		}
		if i >= len(toks) {
			return out, contract.Patternf(start, "pattern ends inside hit group without a length code")
		}
		length := toks[i].prim
		if len(hits) == 0 {
			return out, contract.Patternf(toks[i].pos, "missing sound before length %q", length.Code)
		}
		beat, err := contract.NewBeat(hits, length)
		if err != nil {
			return out, &contract.PatternError{Pos: start, Cause: err}
		}
		out.Beats = append(out.Beats, beat)
		i++
	}
	return out, nil
}

// DecodePrimitives 宽松解析为原语序列；仅在未知字符时失败。
func (c *Codec) DecodePrimitives(s string) (contract.FlatTrack, error) {
	toks, err := c.tokenize(s)
	if err != nil {
		return nil, err
	}
	out := make(contract.FlatTrack, len(toks))
	for i, t := range toks {
		out[i] = t.prim
	}
	return out, nil
}

// Group 将 FlatTrack 分组为 PlayableTrack（经由严格模式，规则一致）。
func (c *Codec) Group(t contract.FlatTrack, bpm int) (contract.PlayableTrack, error) {
	pt, err := c.DecodePlayable(EncodeFlat(t))
	if err != nil {
		return pt, err
	}
	if bpm > 0 {
		pt.BPM = bpm
	}
	return pt, nil
}

// Encode 逐拍拼接：击打码（保持存储顺序）+ 时值码。
func Encode(t contract.PlayableTrack) string {
	var b strings.Builder
	for _, beat := range t.Beats {
		for _, h := range beat.Hits {
			b.WriteRune(h.Code)
		}
		b.WriteRune(beat.Length.Code)
	}
	return b.String()
}

// EncodeFlat 按顺序拼接原语编码。
func EncodeFlat(t contract.FlatTrack) string {
	var b strings.Builder
	b.Grow(len(t))
	for _, p := range t {
		b.WriteRune(p.Code)
	}
	return b.String()
}

// IsMalformed 报告 err 是否为解析失败。
func IsMalformed(err error) bool { return errors.Is(err, contract.ErrMalformedPattern) }
