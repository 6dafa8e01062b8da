package task

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
)

// Infill: 序列填空任务。原轨中连续 length 个原语被 Hole 遮蔽。
// 构造后不可变；对外暴露的切片均为副本。
type Infill struct {
	track  contract.FlatTrack
	start  int
	length int
}

// NewInfill 在 [0, len-holeLength] 内均匀抽取洞起点。
// 空轨、holeLength<1、holeLength>=len、rng 为空或轨内已有占位符时返回 ErrInvalidInput。
func NewInfill(track contract.FlatTrack, holeLength int, rng *rand.Rand) (*Infill, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", contract.ErrInvalidInput)
	}
	if err := checkTrack(track); err != nil {
		return nil, err
	}
	if holeLength < 1 || holeLength >= len(track) {
		return nil, fmt.Errorf("%w: hole length %d out of range for track of %d", contract.ErrInvalidInput, holeLength, len(track))
	}
	start := rng.Intn(len(track) - holeLength + 1)
	return &Infill{track: track.Clone(), start: start, length: holeLength}, nil
}

// NewInfillAt 以确定的起点与长度构造洞。
func NewInfillAt(track contract.FlatTrack, start, length int) (*Infill, error) {
	if err := checkTrack(track); err != nil {
		return nil, err
	}
	if length < 1 || length >= len(track) {
		return nil, fmt.Errorf("%w: hole length %d out of range for track of %d", contract.ErrInvalidInput, length, len(track))
	}
	if start < 0 || start+length > len(track) {
		return nil, fmt.Errorf("%w: hole [%d,%d) outside track of %d", contract.ErrInvalidInput, start, start+length, len(track))
	}
	return &Infill{track: track.Clone(), start: start, length: length}, nil
}

func checkTrack(track contract.FlatTrack) error {
	if len(track) == 0 {
		return fmt.Errorf("%w: empty track", contract.ErrInvalidInput)
	}
	if track.HasPlaceholder() {
		return fmt.Errorf("%w: track already contains placeholders", contract.ErrInvalidInput)
	}
	return nil
}

// Track 返回原始（未遮蔽）轨道副本。
func (t *Infill) Track() contract.FlatTrack { return t.track.Clone() }

func (t *Infill) Len() int { return len(t.track) }
func (t *Infill) HoleStart() int { return t.start }
func (t *Infill) HoleLength() int { return t.length }
func (t *Infill) HoleEnd() int { return t.start + t.length }

// HoleIndices 返回被遮蔽的下标（升序）。
func (t *Infill) HoleIndices() []int {
	out := make([]int, t.length)
	for i := range out {
		out[i] = t.start + i
	}
	return out
}

// HoleType 为洞起点处原语的声明类型；多原语洞只取首个。
func (t *Infill) HoleType() contract.Kind { return t.track[t.start].Kind() }

// Masked 返回洞位置替换为 Hole 后的轨道。
func (t *Infill) Masked() contract.FlatTrack {
	out := t.track.Clone()
	for i := t.start; i < t.start+t.length; i++ {
		out[i] = contract.Hole()
	}
	return out
}

func (t *Infill) Encoding() string { return drumlang.EncodeFlat(t.track) }
func (t *Infill) MaskedEncoding() string { return drumlang.EncodeFlat(t.Masked()) }

// Signature: "<编码>_hole<start>-<end>"，同一轨道同一位置的任务签名相同。
func (t *Infill) Signature() string {
	return fmt.Sprintf("%s_hole%d-%d", t.Encoding(), t.start, t.start+t.length)
}

// Playable 将原轨按拍分组。
func (t *Infill) Playable(c *drumlang.Codec, bpm int) (contract.PlayableTrack, error) {
	return c.Group(t.track, bpm)
}

// Occluded: 遮蔽预测任务。若干下标（不必连续）被 Occlusion 遮蔽。
type Occluded struct {
	track   contract.FlatTrack
	indices []int
}

// NewOcclusion 无放回抽样遮蔽下标。count<=0 时取 max(1, floor(len*p))。
func NewOcclusion(track contract.FlatTrack, count int, probability float64, rng *rand.Rand) (*Occluded, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", contract.ErrInvalidInput)
	}
	if err := checkTrack(track); err != nil {
		return nil, err
	}
	if probability < 0 || probability > 1 {
		return nil, fmt.Errorf("%w: occlusion probability %v outside [0,1]", contract.ErrInvalidInput, probability)
	}
	if count <= 0 {
		count = int(float64(len(track)) * probability)
		if count < 1 {
			count = 1
		}
	}
	if count > len(track) {
		return nil, fmt.Errorf("%w: cannot occlude %d of %d primitives", contract.ErrInvalidInput, count, len(track))
	}
	idx := rng.Perm(len(track))[:count]
	sort.Ints(idx)
	return &Occluded{track: track.Clone(), indices: idx}, nil
}

// NewOcclusionAt 以给定下标构造；下标去重并排序。
func NewOcclusionAt(track contract.FlatTrack, indices []int) (*Occluded, error) {
	if err := checkTrack(track); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no occlusion indices", contract.ErrInvalidInput)
	}
	seen := make(map[int]struct{}, len(indices))
	idx := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(track) {
			return nil, fmt.Errorf("%w: occlusion index %d outside track of %d", contract.ErrInvalidInput, i, len(track))
		}
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return &Occluded{track: track.Clone(), indices: idx}, nil
}

func (t *Occluded) Track() contract.FlatTrack { return t.track.Clone() }
func (t *Occluded) Len() int { return len(t.track) }

// HoleIndices 返回被遮蔽的下标副本（升序）。
func (t *Occluded) HoleIndices() []int {
	out := make([]int, len(t.indices))
	copy(out, t.indices)
	return out
}

// HoleType 为首个遮蔽位置的声明类型。
func (t *Occluded) HoleType() contract.Kind { return t.track[t.indices[0]].Kind() }

func (t *Occluded) Masked() contract.FlatTrack {
	out := t.track.Clone()
	for _, i := range t.indices {
		out[i] = contract.Occlusion()
	}
	return out
}

func (t *Occluded) Encoding() string { return drumlang.EncodeFlat(t.track) }
func (t *Occluded) MaskedEncoding() string { return drumlang.EncodeFlat(t.Masked()) }

// Signature: "<编码>_occ<i,j,...>"。
func (t *Occluded) Signature() string {
	parts := make([]string, len(t.indices))
	for i, v := range t.indices {
		parts[i] = strconv.Itoa(v)
	}
	return t.Encoding() + "_occ" + strings.Join(parts, ",")
}

func (t *Occluded) Playable(c *drumlang.Codec, bpm int) (contract.PlayableTrack, error) {
	return c.Group(t.track, bpm)
}
