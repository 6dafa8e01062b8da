// Package dataset 将源轨道切分为片段，并生成去重的填空/遮蔽任务。
//
// 切分在拍粒度上进行，片段经编码再解码归一化后才做有效性判定；
// 被拒绝的片段只记日志，不作为错误返回。
package dataset

import (
	"fmt"
	"math/rand"
	"strconv"

	"drumcoder/internal/diag"
	"drumcoder/internal/task"
	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
)

// DefaultAttempts: 每个有效片段尝试的挖洞次数。
const DefaultAttempts = 5

// MaxRestRatio: 片段中 Rest 击打占比上限（含）。
const MaxRestRatio = 0.5

// Options 控制任务生成。零值字段取默认值（见 New）。
type Options struct {
	MaxTasks             int
	MinBeats             int
	MaxBeats             int
	HoleLength           int
	Attempts             int
	OcclusionProbability float64
	// Rand 为随机源；nil 时以 seed=1 构造，保证可复现。
	Rand   *rand.Rand
	Logger *diag.Logger
}

// Stats 汇总一次生成。
type Stats struct {
	Tracks     int `json:"tracks"`
	Segments   int `json:"segments"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	Tasks      int `json:"tasks"`
}

// Builder 持有编解码器与选项。非并发安全（共享随机源）。
type Builder struct {
	codec *drumlang.Codec
	opts  Options
	rng   *rand.Rand
}

// New 校验选项并填充默认值：MinBeats=12、MaxBeats=24、HoleLength=1、Attempts=5、OcclusionProbability=0.15。
func New(codec *drumlang.Codec, opts Options) (*Builder, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: nil codec", contract.ErrInvalidInput)
	}
	if opts.MinBeats == 0 {
		opts.MinBeats = 12
	}
	if opts.MaxBeats == 0 {
		opts.MaxBeats = 24
	}
	if opts.HoleLength == 0 {
		opts.HoleLength = 1
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.OcclusionProbability == 0 {
		opts.OcclusionProbability = 0.15
	}
	switch {
	case opts.MaxTasks < 1:
		return nil, fmt.Errorf("%w: max_tasks must be >= 1", contract.ErrInvalidInput)
	case opts.MinBeats < 1 || opts.MaxBeats < opts.MinBeats:
		return nil, fmt.Errorf("%w: beat range [%d,%d] invalid", contract.ErrInvalidInput, opts.MinBeats, opts.MaxBeats)
	case opts.HoleLength < 1:
		return nil, fmt.Errorf("%w: hole_length must be >= 1", contract.ErrInvalidInput)
	case opts.Attempts < 1:
		return nil, fmt.Errorf("%w: attempts must be >= 1", contract.ErrInvalidInput)
	case opts.OcclusionProbability < 0 || opts.OcclusionProbability > 1:
		return nil, fmt.Errorf("%w: occlusion_probability outside [0,1]", contract.ErrInvalidInput)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Builder{codec: codec, opts: opts, rng: rng}, nil
}

// segment 为一个通过有效性检查的片段。
type segment struct {
	source string
	flat   contract.FlatTrack
}

// walk 逐轨切分片段：长度在 [MinBeats, MaxBeats] 内均匀抽取，末段按剩余长度截断；
// 截断段的拍数少于抽取长度，因而不会通过有效性检查。
// visit 返回 false 时停止。
func (b *Builder) walk(tracks []contract.PlayableTrack, st *Stats, visit func(seg segment) bool) {
	for ti, tr := range tracks {
		st.Tracks++
		src := "track[" + strconv.Itoa(ti) + "]"
		for i := 0; i < tr.Len(); {
			drawn := b.opts.MinBeats + b.rng.Intn(b.opts.MaxBeats-b.opts.MinBeats+1)
			end := i + drawn
			if end > tr.Len() {
				end = tr.Len()
			}
			st.Segments++
			flat, err := b.codec.DecodePrimitives(drumlang.Encode(tr.Slice(i, end)))
			from := i
			i = end
			if err != nil {
				st.Rejected++
				b.reject(src, from, end, diag.Classify(err), err.Error())
				continue
			}
			if !b.IsValidSegment(flat, drawn) {
				st.Rejected++
				b.reject(src, from, end, diag.CodeInvalid, "segment rejected")
				continue
			}
			if !visit(segment{source: src, flat: flat}) {
				return
			}
		}
	}
}

func (b *Builder) reject(src string, from, to int, code diag.Code, msg string) {
	b.opts.Logger.Reject("dataset", string(code), msg, src, map[string]string{
		"from": strconv.Itoa(from),
		"to":   strconv.Itoa(to),
	})
	diag.IncOp("dataset", "reject", "error")
}

// IsValidSegment: 以时值结尾、Rest 占比不超过 0.5、拍数 >= minBeats；任何解码失败视为无效。
func (b *Builder) IsValidSegment(seg contract.FlatTrack, minBeats int) bool {
	if len(seg) == 0 || seg[len(seg)-1].Kind() != contract.KindLength {
		return false
	}
	pt, err := b.codec.Group(seg, 0)
	if err != nil {
		return false
	}
	if pt.RestRatio() > MaxRestRatio {
		return false
	}
	return pt.Len() >= minBeats
}

// GenerateInfillTasks 为每个有效片段尝试 Attempts 次随机挖洞，按签名全局去重，达到 MaxTasks 即停止。
func (b *Builder) GenerateInfillTasks(tracks []contract.PlayableTrack) ([]*task.Infill, Stats) {
	timer := b.opts.Logger.Start("dataset", "infill")
	var st Stats
	seen := make(map[string]struct{})
	out := make([]*task.Infill, 0, b.opts.MaxTasks)
	b.walk(tracks, &st, func(seg segment) bool {
		for a := 0; a < b.opts.Attempts; a++ {
			inf, err := task.NewInfill(seg.flat, b.opts.HoleLength, b.rng)
			if err != nil {
				// 片段短于洞长：换下一个片段
				b.reject(seg.source, 0, len(seg.flat), diag.Classify(err), err.Error())
				break
			}
			sig := inf.Signature()
			if _, dup := seen[sig]; dup {
				st.Duplicates++
				continue
			}
			seen[sig] = struct{}{}
			out = append(out, inf)
			if len(out) >= b.opts.MaxTasks {
				return false
			}
		}
		return true
	})
	st.Tasks = len(out)
	timer.FinishKV("infill", int64(st.Tasks), statsKV(st))
	return out, st
}

// GenerateOcclusionTasks 每个有效片段生成一个遮蔽任务（按签名去重）。
func (b *Builder) GenerateOcclusionTasks(tracks []contract.PlayableTrack) ([]*task.Occluded, Stats) {
	timer := b.opts.Logger.Start("dataset", "occlusion")
	var st Stats
	seen := make(map[string]struct{})
	out := make([]*task.Occluded, 0, b.opts.MaxTasks)
	b.walk(tracks, &st, func(seg segment) bool {
		occ, err := task.NewOcclusion(seg.flat, 0, b.opts.OcclusionProbability, b.rng)
		if err != nil {
			b.reject(seg.source, 0, len(seg.flat), diag.Classify(err), err.Error())
			return true
		}
		sig := occ.Signature()
		if _, dup := seen[sig]; dup {
			st.Duplicates++
			return true
		}
		seen[sig] = struct{}{}
		out = append(out, occ)
		return len(out) < b.opts.MaxTasks
	})
	st.Tasks = len(out)
	timer.FinishKV("occlusion", int64(st.Tasks), statsKV(st))
	return out, st
}

func statsKV(st Stats) map[string]string {
	return map[string]string{
		"tracks":     strconv.Itoa(st.Tracks),
		"segments":   strconv.Itoa(st.Segments),
		"rejected":   strconv.Itoa(st.Rejected),
		"duplicates": strconv.Itoa(st.Duplicates),
	}
}
