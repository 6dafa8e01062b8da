package config

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"drumcoder/internal/dataset"
	"drumcoder/internal/diag"
	"drumcoder/internal/pipeline"
	"drumcoder/internal/search"
	"drumcoder/pkg/catalog"
	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
	"drumcoder/pkg/registry"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: config: %s", contract.ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validate 先做 Schema 校验，再做跨字段与注册表校验。错误均包裹 ErrConfiguration。
func Validate(cfg Config) error {
	if err := validateSchema(cfg); err != nil {
		return err
	}
	if len(cfg.Inputs) == 0 {
		return invalid("inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return invalid("input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return invalid("'-' cannot be mixed with other roots")
	}
	if cfg.Dataset.MaxBeats < cfg.Dataset.MinBeats {
		return invalid("max_beats(%d) < min_beats(%d)", cfg.Dataset.MaxBeats, cfg.Dataset.MinBeats)
	}
	if cfg.Search.UpperBound < cfg.Search.LowerBound {
		return invalid("upper_bound(%g) < lower_bound(%g)", cfg.Search.UpperBound, cfg.Search.LowerBound)
	}
	if cfg.Search.BudgetIncrement <= 0 {
		return invalid("budget_increment must be > 0")
	}
	if cfg.Search.Concurrency < 1 {
		return invalid("concurrency must be >= 1")
	}
	if cfg.Dataset.MaxTasks < 1 {
		return invalid("max_tasks must be >= 1")
	}
	if name := effName(cfg.Components.Source, Defaults().Components.Source); registry.Source[name] == nil {
		return invalid("source %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
		return invalid("writer %q not registered", name)
	}
	if name := cfg.Components.Sink; name != "" && registry.Sink[name] == nil {
		return invalid("sink %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 目录默认把未知乐器号计入诊断计数；catOpts 在其后应用，可替换该回调。
func Assemble(cfg Config, catOpts ...catalog.Option) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	opts := append([]catalog.Option{catalog.WithUnknownInstrumentHook(diag.UnknownInstrumentHook(nil))}, catOpts...)
	codec := drumlang.New(catalog.Default(opts...))

	src, err := registry.Source[effName(cfg.Components.Source, d.Components.Source)](cfg.Options.Source, codec)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("source options: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer options: %w", err)
	}
	comp := pipeline.Components{Codec: codec, Source: src, Writer: w}
	if name := cfg.Components.Sink; name != "" {
		sink, err := registry.Sink[name](cfg.Options.Sink, os.Stdout)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("sink options: %w", err)
		}
		comp.Sink = sink
	}

	seed := *d.Seed
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	set := pipeline.Settings{
		Inputs: cloneStrings(cfg.Inputs),
		Mode:   cfg.Dataset.Mode,
		Dataset: dataset.Options{
			MaxTasks:             cfg.Dataset.MaxTasks,
			MinBeats:             cfg.Dataset.MinBeats,
			MaxBeats:             cfg.Dataset.MaxBeats,
			HoleLength:           cfg.Dataset.HoleLength,
			Attempts:             cfg.Dataset.Attempts,
			OcclusionProbability: cfg.Dataset.OcclusionProbability,
			Rand:                 rand.New(rand.NewSource(seed)),
		},
		Search: search.Settings{
			LowerBound:      cfg.Search.LowerBound,
			UpperBound:      cfg.Search.UpperBound,
			BudgetIncrement: cfg.Search.BudgetIncrement,
			Timeout:         timeout(cfg.Search.TimeoutSeconds, *d.Search.TimeoutSeconds),
			MaxDepth:        cfg.Search.MaxDepth,
		},
		Concurrency: cfg.Search.Concurrency,
	}
	return comp, set, nil
}

// timeout: 负值关闭超时（-1ns）；nil 使用默认。
func timeout(sec *float64, def float64) time.Duration {
	v := def
	if sec != nil {
		v = *sec
	}
	if v < 0 {
		return -1
	}
	return time.Duration(v * float64(time.Second))
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
