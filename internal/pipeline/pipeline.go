package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"drumcoder/internal/dataset"
	"drumcoder/internal/diag"
	"drumcoder/internal/grammar"
	"drumcoder/internal/search"
	"drumcoder/internal/task"
	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
)

// - 单点并发：只有 search.Wake 起并发（每洞类型一个批次）；其余阶段同步执行。
// - 坏输入跳过：单个来源文件解析失败只记 reject 日志，不中断运行。
// - 首错取消：批次前置条件失败或写出失败时整体返回错误。

// 工件名（相对 Writer 根目录）。
const (
	TasksArtifact   contract.ArtifactID = "tasks.jsonl"
	ResultsArtifact contract.ArtifactID = "results.json"
)

// 任务生成模式。
const (
	ModeInfill    = "infill"
	ModeOcclusion = "occlusion"
)

// Components 聚合运行所需的组件。Sink 可选，仅用于演示回放。
type Components struct {
	Codec  *drumlang.Codec
	Source contract.TrackSource
	Writer contract.Writer
	Sink   contract.PlaybackSink
}

// Close 关闭实现了 io.Closer 的组件（如 sqlite writer），返回首个错误。
func (c Components) Close() error {
	var first error
	for _, v := range []any{c.Source, c.Writer, c.Sink} {
		if cl, ok := v.(io.Closer); ok {
			if err := cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Settings 运行期配置。
type Settings struct {
	Inputs      []string
	Mode        string
	Dataset     dataset.Options
	Search      search.Settings
	Concurrency int
}

// Report 为一次运行的摘要（同时写入 results.json）。
type Report struct {
	Mode        string                         `json:"mode"`
	Stats       dataset.Stats                  `json:"stats"`
	SkippedFile int                            `json:"skipped_files"`
	Batches     []BatchReport                  `json:"batches"`
	Solved      int                            `json:"solved"`
	Completions map[string][]search.Completion `json:"completions"`
}

// BatchReport 为单个洞类型批次的摘要。
type BatchReport struct {
	HoleType  string            `json:"hole_type"`
	Stop      search.StopReason `json:"stop"`
	Tasks     int               `json:"tasks"`
	Programs  int               `json:"programs"`
	Valid     int               `json:"valid"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

// TaskRecord 为 tasks.jsonl 的一行。ID 由签名派生，同一任务跨运行保持不变。
type TaskRecord struct {
	ID         string `json:"id"`
	Signature  string `json:"signature"`
	Mode       string `json:"mode"`
	HoleType   string `json:"hole_type"`
	Track      string `json:"track"`
	Masked     string `json:"masked"`
	HoleStart  int    `json:"hole_start,omitempty"`
	HoleLength int    `json:"hole_length,omitempty"`
	Indices    []int  `json:"indices,omitempty"`
}

// TaskID 返回签名对应的稳定 ID（UUID v5）。
func TaskID(signature string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(signature)).String()
}

// Run 执行完整流水线：Source → Dataset → tasks.jsonl → Wake（仅 infill）→ results.json → 可选回放。
// 取消与超时在搜索内部为优雅降级；已生成的结果照常写出。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	_, err := Execute(ctx, comp, set, logger)
	return err
}

// Execute 同 Run，并返回运行摘要。
func Execute(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Report, error) {
	if err := sanity(comp, &set); err != nil {
		return Report{}, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	ok := false
	rep := Report{Mode: set.Mode}
	diag.GetTerminal().RunStart(set.Concurrency, set.Mode)
	defer func() { diag.GetTerminal().RunFinish(ok, time.Since(runStart)) }()

	tracks, skipped, err := loadTracks(ctx, comp.Source, set.Inputs, logger)
	if err != nil {
		return rep, fmt.Errorf("source: %w", err)
	}
	rep.SkippedFile = skipped

	opts := set.Dataset
	if opts.Logger == nil {
		opts.Logger = logger
	}
	builder, err := dataset.New(comp.Codec, opts)
	if err != nil {
		return rep, fmt.Errorf("dataset: %w", err)
	}

	var (
		records []TaskRecord
		tasks   []search.Task
	)
	switch set.Mode {
	case ModeOcclusion:
		occ, st := builder.GenerateOcclusionTasks(tracks)
		rep.Stats = st
		for _, t := range occ {
			records = append(records, occlusionRecord(t))
		}
	default:
		inf, st := builder.GenerateInfillTasks(tracks)
		rep.Stats = st
		for _, t := range inf {
			records = append(records, infillRecord(t))
			tasks = append(tasks, t)
		}
	}
	diag.GetTerminal().TasksReady(len(records), len(tracks))

	if err := writeJSONL(ctx, comp.Writer, TasksArtifact, records, logger); err != nil {
		return rep, err
	}

	rep.Completions = map[string][]search.Completion{}
	if len(tasks) > 0 {
		g, gerr := grammar.Uniform(comp.Codec.Catalog().Primitives())
		if gerr != nil {
			return rep, fmt.Errorf("grammar: %w", gerr)
		}
		wake, werr := search.Wake(ctx, g, tasks, set.Search, set.Concurrency, logger)
		if werr != nil {
			return rep, fmt.Errorf("search: %w", werr)
		}
		rep.Completions = wake.Completions()
		rep.Solved = wake.Solved()
		for _, b := range wake.Batches {
			rep.Batches = append(rep.Batches, BatchReport{
				HoleType:  b.HoleType.String(),
				Stop:      b.Stop,
				Tasks:     len(b.Completions),
				Programs:  b.Programs,
				Valid:     b.Valid,
				ElapsedMS: b.Elapsed.Milliseconds(),
			})
		}
	}

	if err := writeJSON(ctx, comp.Writer, ResultsArtifact, rep, logger); err != nil {
		return rep, err
	}

	if comp.Sink != nil {
		playDemo(ctx, comp, rep, logger)
	}

	snap := diag.Snapshot()
	kv := make(map[string]string, len(snap))
	for _, k := range diag.SnapshotKeys(snap) {
		kv[k] = strconv.FormatInt(snap[k], 10)
	}
	logger.Debug("pipeline", "metrics", "", "", kv)
	logger.InfoFinish("pipeline", "run", runStart, int64(len(records)))
	ok = true
	return rep, nil
}

// loadTracks 收集全部可用轨道；单文件失败记 reject 并跳过。
func loadTracks(ctx context.Context, src contract.TrackSource, roots []string, logger *diag.Logger) ([]contract.PlayableTrack, int, error) {
	timer := logger.StartWith("source", "tracks", "", "")
	var (
		tracks  []contract.PlayableTrack
		skipped int
	)
	err := src.Tracks(ctx, roots, func(id contract.FileID, t contract.PlayableTrack, err error) error {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			code := diag.Classify(err)
			logger.Reject("source", string(code), err.Error(), string(id), nil)
			diag.IncOp("source", "reject", "skip")
			diag.IncError("source", string(code))
			skipped++
			return nil
		}
		tracks = append(tracks, t)
		return nil
	})
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("source", string(code), err.Error(), nil, "", "")
		diag.IncOp("source", "error", "error")
		return nil, skipped, err
	}
	timer.FinishKV("tracks", int64(len(tracks)), map[string]string{"skipped": strconv.Itoa(skipped)})
	diag.IncOp("source", "finish", "success")
	return tracks, skipped, nil
}

func infillRecord(t *task.Infill) TaskRecord {
	return TaskRecord{
		ID:         TaskID(t.Signature()),
		Signature:  t.Signature(),
		Mode:       ModeInfill,
		HoleType:   t.HoleType().String(),
		Track:      t.Encoding(),
		Masked:     t.MaskedEncoding(),
		HoleStart:  t.HoleStart(),
		HoleLength: t.HoleLength(),
	}
}

func occlusionRecord(t *task.Occluded) TaskRecord {
	return TaskRecord{
		ID:        TaskID(t.Signature()),
		Signature: t.Signature(),
		Mode:      ModeOcclusion,
		HoleType:  t.HoleType().String(),
		Track:     t.Encoding(),
		Masked:    t.MaskedEncoding(),
		Indices:   t.HoleIndices(),
	}
}

func writeJSONL(ctx context.Context, w contract.Writer, id contract.ArtifactID, records []TaskRecord, logger *diag.Logger) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
	}
	return write(ctx, w, id, &buf, int64(len(records)), logger)
}

func writeJSON(ctx context.Context, w contract.Writer, id contract.ArtifactID, v any, logger *diag.Logger) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return write(ctx, w, id, bytes.NewReader(append(b, '\n')), 1, logger)
}

func write(ctx context.Context, w contract.Writer, id contract.ArtifactID, r io.Reader, count int64, logger *diag.Logger) error {
	timer := logger.StartWith("writer", "write", string(id), "")
	if err := w.Write(ctx, id, r); err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("writer", string(code), "write failed", nil, string(id), "")
		diag.IncOp("writer", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("writer", string(code))
		}
		return fmt.Errorf("writer write: %w", err)
	}
	timer.Finish("write", count)
	diag.IncOp("writer", "finish", "success")
	return nil
}

// playDemo 回放首个（按签名排序）已解任务的最优补全。失败只记日志。
func playDemo(ctx context.Context, comp Components, rep Report, logger *diag.Logger) {
	sigs := make([]string, 0, len(rep.Completions))
	for sig, cs := range rep.Completions {
		if len(cs) > 0 {
			sigs = append(sigs, sig)
		}
	}
	if len(sigs) == 0 {
		return
	}
	sort.Strings(sigs)
	best := rep.Completions[sigs[0]][0]
	t, err := comp.Codec.DecodePlayable(best.Track)
	if err == nil {
		err = comp.Sink.Play(ctx, t, nil)
	}
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("sink", string(code), err.Error(), nil, sigs[0], "")
		diag.IncError("sink", string(code))
		return
	}
	diag.IncOp("sink", "play", "success")
}

func sanity(c Components, s *Settings) error {
	if c.Codec == nil || c.Source == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	switch strings.TrimSpace(s.Mode) {
	case "":
		s.Mode = ModeInfill
	case ModeInfill, ModeOcclusion:
	default:
		return fmt.Errorf("pipeline: unknown mode %q", s.Mode)
	}
	return nil
}
