package contract

import "fmt"

// Kind: 原语的声明类型；洞的填充候选只按 Kind 名义匹配。
type Kind int

const (
	// KindNone: 占位符（Hole/Occlusion）无声明类型。
	KindNone Kind = iota
	KindSound
	KindLength
)

func (k Kind) String() string {
	switch k {
	case KindSound:
		return "sound"
	case KindLength:
		return "length"
	default:
		return "none"
	}
}

// Variant: 原语的封闭变体判别符。编解码与候选过滤均按此穷举分派。
type Variant int

const (
	VariantSound Variant = iota + 1
	VariantRest
	VariantLength
	VariantHole
	VariantOcclusion
)

func (v Variant) String() string {
	switch v {
	case VariantSound:
		return "sound"
	case VariantRest:
		return "rest"
	case VariantLength:
		return "length"
	case VariantHole:
		return "hole"
	case VariantOcclusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

// 保留码：占位符只出现在遮蔽视图中。
const (
	HoleCode      rune = '?'
	OcclusionCode rune = '.'
	RestCode      rune = 'R'
)

// DefaultCost: 原语默认的 MDL 单位代价。
const DefaultCost = 1.0

// MaxHits: 单拍同时击打上限。
const MaxHits = 4

// Primitive: 带类型、单字符编码的音乐符号。
// 值类型且可比较，可直接作为 map 键。
// 字段按变体取用：
//   - Sound/Rest: Instrument（Rest 为 -1）、Name；
//   - Length: Value（1..64 的 2 的幂分母）、Dotted。
type Primitive struct {
	Variant    Variant
	Code       rune
	Name       string
	Cost       float64
	Instrument int
	Value      int
	Dotted     bool
}

// Kind 返回声明类型。Rest 属于 SOUND。
func (p Primitive) Kind() Kind {
	switch p.Variant {
	case VariantSound, VariantRest:
		return KindSound
	case VariantLength:
		return KindLength
	default:
		return KindNone
	}
}

// IsPlaceholder 报告是否为 Hole/Occlusion。
func (p Primitive) IsPlaceholder() bool {
	return p.Variant == VariantHole || p.Variant == VariantOcclusion
}

func (p Primitive) String() string {
	return fmt.Sprintf("%s(%s, %q)", p.Variant, p.Name, p.Code)
}

// Sound 构造打击乐音色。
func Sound(instrument int, name string, code rune) Primitive {
	return Primitive{Variant: VariantSound, Code: code, Name: name, Cost: DefaultCost, Instrument: instrument}
}

// Rest 返回静音哨兵。
func Rest() Primitive {
	return Primitive{Variant: VariantRest, Code: RestCode, Name: "Rest", Cost: DefaultCost, Instrument: -1}
}

// NoteLength 构造时值类别；名称形如 "1/16 dotted"。
func NoteLength(value int, dotted bool, code rune) Primitive {
	name := "1"
	if value != 1 {
		name = fmt.Sprintf("1/%d", value)
	}
	if dotted {
		name += " dotted"
	}
	return Primitive{Variant: VariantLength, Code: code, Name: name, Cost: DefaultCost, Value: value, Dotted: dotted}
}

// Hole 返回序列填空占位符。
func Hole() Primitive {
	return Primitive{Variant: VariantHole, Code: HoleCode, Name: "Hole"}
}

// Occlusion 返回遮蔽预测占位符。
func Occlusion() Primitive {
	return Primitive{Variant: VariantOcclusion, Code: OcclusionCode, Name: "Occlusion"}
}

// Fraction 返回时值占全音符的比例（附点为 1.5 倍）；非时值原语为 0。
func (p Primitive) Fraction() float64 {
	if p.Variant != VariantLength || p.Value <= 0 {
		return 0
	}
	f := 1 / float64(p.Value)
	if p.Dotted {
		f += f / 2
	}
	return f
}

// Seconds 按 BPM（四分音符为一拍）换算时值秒数。
func (p Primitive) Seconds(bpm int) float64 {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return p.Fraction() * 4 * 60 / float64(bpm)
}

// Beat: 一个节奏槽位，同时击打的 Hits 加恰好一个时值。
// 约束：1..MaxHits 个 Hit；多于一个 Hit 时不得混入 Rest。
type Beat struct {
	Hits   []Primitive
	Length Primitive
}

// NewBeat 校验并构造 Beat（拷贝 hits）。违例返回 ErrInvalidInput。
func NewBeat(hits []Primitive, length Primitive) (Beat, error) {
	if len(hits) == 0 {
		return Beat{}, fmt.Errorf("%w: beat has no hits", ErrInvalidInput)
	}
	if len(hits) > MaxHits {
		return Beat{}, fmt.Errorf("%w: beat has %d hits (max %d)", ErrInvalidInput, len(hits), MaxHits)
	}
	if length.Variant != VariantLength {
		return Beat{}, fmt.Errorf("%w: beat length %q is not a note length", ErrInvalidInput, length.Code)
	}
	rests := 0
	for _, h := range hits {
		switch h.Variant {
		case VariantRest:
			rests++
		case VariantSound:
		default:
			return Beat{}, fmt.Errorf("%w: beat hit %q is not a sound", ErrInvalidInput, h.Code)
		}
	}
	if rests > 0 && rests < len(hits) {
		return Beat{}, fmt.Errorf("%w: beat mixes rest with sounds", ErrInvalidInput)
	}
	cp := make([]Primitive, len(hits))
	copy(cp, hits)
	return Beat{Hits: cp, Length: length}, nil
}

// Cost 返回击打代价之和。
func (b Beat) Cost() float64 {
	var c float64
	for _, h := range b.Hits {
		c += h.Cost
	}
	return c
}

// IsRest 报告该拍是否为静音。
func (b Beat) IsRest() bool {
	return len(b.Hits) > 0 && b.Hits[0].Variant == VariantRest
}

// FlatTrack: 原语线性视图（击打组与时值交替），用于切片与挖洞。
type FlatTrack []Primitive

// Clone 返回独立副本。
func (t FlatTrack) Clone() FlatTrack {
	if t == nil {
		return nil
	}
	out := make(FlatTrack, len(t))
	copy(out, t)
	return out
}

// HasPlaceholder 报告是否含 Hole/Occlusion。
func (t FlatTrack) HasPlaceholder() bool {
	for _, p := range t {
		if p.IsPlaceholder() {
			return true
		}
	}
	return false
}

// DefaultBPM: 未知速度时的默认值。
const DefaultBPM = 120

// PlayableTrack: 按拍分组的视图，用于精确重建与回放。
type PlayableTrack struct {
	Beats []Beat
	BPM   int
}

// Len 返回拍数。
func (t PlayableTrack) Len() int { return len(t.Beats) }

// Slice 返回 [start,end) 拍的子轨（共享底层 Beat，Beat 视为只读）。
func (t PlayableTrack) Slice(start, end int) PlayableTrack {
	if start < 0 {
		start = 0
	}
	if end > len(t.Beats) {
		end = len(t.Beats)
	}
	if start > end {
		start = end
	}
	return PlayableTrack{Beats: t.Beats[start:end], BPM: t.BPM}
}

// Flatten 展开为 FlatTrack：逐拍输出 Hits 再输出时值。
func (t PlayableTrack) Flatten() FlatTrack {
	out := make(FlatTrack, 0, len(t.Beats)*2)
	for _, b := range t.Beats {
		out = append(out, b.Hits...)
		out = append(out, b.Length)
	}
	return out
}

// RestRatio 返回 Rest 击打占全部击打的比例；无击打时为 0。
func (t PlayableTrack) RestRatio() float64 {
	total, rests := 0, 0
	for _, b := range t.Beats {
		for _, h := range b.Hits {
			total++
			if h.Variant == VariantRest {
				rests++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(rests) / float64(total)
}

// Duration 返回整轨时长（秒）。
func (t PlayableTrack) Duration() float64 {
	var s float64
	for _, b := range t.Beats {
		s += b.Length.Seconds(t.BPM)
	}
	return s
}
