package testdata

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	cfgpkg "drumcoder/internal/config"
	"drumcoder/internal/pipeline"
	"drumcoder/pkg/contract"
	wsq "drumcoder/plugins/writer/sqlite"
)

func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Logging.Level = "error"
	cfg.Dataset.MinBeats, cfg.Dataset.MaxBeats = 8, 12
	cfg.Dataset.MaxTasks = 20
	cfg.Search.Concurrency = 2
	off := -1.0
	cfg.Search.TimeoutSeconds = &off
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":true}`, outDir))
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) (pipeline.Report, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Report{}, err
	}
	return pipeline.Execute(context.Background(), comp, set, nil)
}

func readTasks(t *testing.T, path string) []pipeline.TaskRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open tasks: %v", err)
	}
	defer f.Close()
	var out []pipeline.TaskRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r pipeline.TaskRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("tasks line: %v", err)
		}
		out = append(out, r)
	}
	return out
}

// E2E-01: 样例曲目 → 任务 → 搜索；每个任务的最优补全即原片段
func TestE2EInfill(t *testing.T) {
	outDir := t.TempDir()
	rep, err := runPipeline(t, baseConfig("files", outDir))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if rep.SkippedFile != 1 {
		t.Fatalf("broken.drum should be skipped, skipped=%d", rep.SkippedFile)
	}
	tasks := readTasks(t, filepath.Join(outDir, string(pipeline.TasksArtifact)))
	if len(tasks) == 0 || len(tasks) > 20 {
		t.Fatalf("tasks=%d", len(tasks))
	}
	raw, err := os.ReadFile(filepath.Join(outDir, string(pipeline.ResultsArtifact)))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var got pipeline.Report
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("results: %v", err)
	}
	for _, task := range tasks {
		cs := got.Completions[task.Signature]
		if len(cs) == 0 || cs[0].Track != task.Track {
			t.Fatalf("task %s not recovered: %+v", task.Signature, cs)
		}
		for i := 1; i < len(cs); i++ {
			if cs[i].Priority < cs[i-1].Priority {
				t.Fatalf("completions not sorted for %s", task.Signature)
			}
		}
	}
	if got.Solved != len(tasks) {
		t.Fatalf("solved %d of %d", got.Solved, len(tasks))
	}
}

// E2E-02: 遮蔽模式
func TestE2EOcclusion(t *testing.T) {
	outDir := t.TempDir()
	cfg := baseConfig("files", outDir)
	cfg.Dataset.Mode = pipeline.ModeOcclusion
	if _, err := runPipeline(t, cfg); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	for _, r := range readTasks(t, filepath.Join(outDir, string(pipeline.TasksArtifact))) {
		if r.Mode != pipeline.ModeOcclusion || len(r.Indices) == 0 {
			t.Fatalf("bad record %+v", r)
		}
	}
}

// E2E-03: 同一种子两次运行产出相同任务集
func TestE2EDeterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	if _, err := runPipeline(t, baseConfig("files", a)); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if _, err := runPipeline(t, baseConfig("files", b)); err != nil {
		t.Fatalf("run b: %v", err)
	}
	ta, _ := os.ReadFile(filepath.Join(a, string(pipeline.TasksArtifact)))
	tb, _ := os.ReadFile(filepath.Join(b, string(pipeline.TasksArtifact)))
	if string(ta) != string(tb) {
		t.Fatalf("tasks differ between seeded runs")
	}
}

func TestE2EInvalidConfig(t *testing.T) {
	cfg := baseConfig("files", t.TempDir())
	cfg.Search.UpperBound = -5
	if _, err := runPipeline(t, cfg); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("expect configuration error, got %v", err)
	}
}

// E2E-05: sqlite writer 落库，工件内容与 fs 一致可解析
func TestE2ESQLiteWriter(t *testing.T) {
	outDir := t.TempDir()
	cfg := baseConfig("files", outDir)
	cfg.Components.Writer = "sqlite"
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, outDir))
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	rep, err := pipeline.Execute(context.Background(), comp, set, nil)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	store, ok := comp.Writer.(*wsq.Store)
	if !ok {
		t.Fatalf("writer type %T", comp.Writer)
	}
	defer comp.Close()
	raw, err := store.Read(context.Background(), pipeline.ResultsArtifact)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var got pipeline.Report
	if err := json.Unmarshal(raw, &got); err != nil || got.Solved != rep.Solved {
		t.Fatalf("results: %v solved=%d want %d", err, got.Solved, rep.Solved)
	}
	ids, err := store.List(context.Background())
	if err != nil || len(ids) != 2 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
}
