package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"

	cfgpkg "drumcoder/internal/config"
	"drumcoder/internal/pipeline"
)

// baseConfig 构造可运行的最小配置。
func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Logging.Level = "error"
	cfg.Dataset.MaxTasks = 400
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, outDir))
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(t *testing.T, cfg cfgpkg.Config) error {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return err
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

var bars = []string{
	"Bh3h3Sh3h3Bh3Bh3Sh3h3",
	"Bh1h1Sh1R1h1Bh1R1Sh1h1Bh1Sh1",
	"Bo3h3Sh3h3Bh3R3Sh3St3",
	"Bc5Sh5Bh3Bh3Si5",
}

// writeCorpus 生成 n 个随机拼接的 .drum 文件。
func writeCorpus(t *testing.T, dir string, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		// 序号前缀保证遍历顺序稳定；名字只用于人工排查
		name := fmt.Sprintf("t%03d-%s-%s", i, strings.ToLower(randomdata.Adjective()), strings.ToLower(randomdata.Noun()))
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n", name)
		b.WriteString("bpm=100\n")
		for j := 0; j < 12; j++ {
			b.WriteString(bars[rng.Intn(len(bars))])
			b.WriteByte('\n')
		}
		if err := os.WriteFile(filepath.Join(dir, name+".drum"), []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write corpus: %v", err)
		}
	}
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	inDir := t.TempDir()
	writeCorpus(t, inDir, 50)
	levels := []int{1, 2, 4}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 3
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				cfg := baseConfig(inDir, t.TempDir())
				cfg.Search.Concurrency = conc
				start := time.Now()
				err := runPipeline(t, cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}
