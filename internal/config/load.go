package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix: 环境变量覆盖前缀。
const EnvPrefix = "DRUMCODER_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	seed := int64(1)
	timeout := 2.0
	return Config{
		Seed:    &seed,
		Logging: Logging{Level: "info"},
		Components: Components{
			Source: "drumlang",
			Writer: "fs",
		},
		Dataset: Dataset{
			Mode:                 "infill",
			MaxTasks:             100,
			MinBeats:             12,
			MaxBeats:             24,
			HoleLength:           1,
			Attempts:             5,
			OcclusionProbability: 0.15,
		},
		Search: Search{
			LowerBound:      0,
			UpperBound:      100,
			BudgetIncrement: 1,
			TimeoutSeconds:  &timeout,
			Concurrency:     1,
		},
		Options: Options{Writer: json.RawMessage(`{"output_dir":"out"}`)},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 标量零值视为未覆盖；Seed/TimeoutSeconds 以 nil 表示未覆盖，从而允许显式写 0。
// 原样 JSON 为整体替换，不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Seed != nil {
		v := *over.Seed
		out.Seed = &v
	}
	if lv := strings.TrimSpace(over.Logging.Level); lv != "" {
		out.Logging.Level = lv
	}

	// 组件名（空不覆盖）
	if over.Components.Source != "" {
		out.Components.Source = over.Components.Source
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Sink != "" {
		out.Components.Sink = over.Components.Sink
	}

	d, od := &out.Dataset, over.Dataset
	if m := strings.TrimSpace(od.Mode); m != "" {
		d.Mode = m
	}
	if od.MaxTasks != 0 {
		d.MaxTasks = od.MaxTasks
	}
	if od.MinBeats != 0 {
		d.MinBeats = od.MinBeats
	}
	if od.MaxBeats != 0 {
		d.MaxBeats = od.MaxBeats
	}
	if od.HoleLength != 0 {
		d.HoleLength = od.HoleLength
	}
	if od.Attempts != 0 {
		d.Attempts = od.Attempts
	}
	if od.OcclusionProbability != 0 {
		d.OcclusionProbability = od.OcclusionProbability
	}

	s, so := &out.Search, over.Search
	if so.LowerBound != 0 {
		s.LowerBound = so.LowerBound
	}
	if so.UpperBound != 0 {
		s.UpperBound = so.UpperBound
	}
	if so.BudgetIncrement != 0 {
		s.BudgetIncrement = so.BudgetIncrement
	}
	if so.TimeoutSeconds != nil {
		v := *so.TimeoutSeconds
		s.TimeoutSeconds = &v
	}
	if so.MaxDepth != 0 {
		s.MaxDepth = so.MaxDepth
	}
	if so.Concurrency != 0 {
		s.Concurrency = so.Concurrency
	}

	// Options（完整替换对应键）
	if len(over.Options.Source) > 0 {
		out.Options.Source = cloneRaw(over.Options.Source)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Sink) > 0 {
		out.Options.Sink = cloneRaw(over.Options.Sink)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 DRUMCODER_；无法解析的数值忽略；集合之外的键忽略。
// 支持：INPUTS, SEED, LOG_LEVEL, MODE, MAX_TASKS, MIN_BEATS, MAX_BEATS, HOLE_LENGTH,
// UPPER_BOUND, TIMEOUT_SECONDS, CONCURRENCY, COMPONENTS_{SOURCE,WRITER,SINK},
// OPTIONS_{SOURCE,WRITER,SINK}_JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		switch key {
		case "INPUTS":
			if val != "" {
				over.Inputs = splitComma(val)
			}
		case "SEED":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				over.Seed = &v
			}
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "MODE":
			over.Dataset.Mode = val
		case "MAX_TASKS":
			if v, err := atoi(val); err == nil {
				over.Dataset.MaxTasks = v
			}
		case "MIN_BEATS":
			if v, err := atoi(val); err == nil {
				over.Dataset.MinBeats = v
			}
		case "MAX_BEATS":
			if v, err := atoi(val); err == nil {
				over.Dataset.MaxBeats = v
			}
		case "HOLE_LENGTH":
			if v, err := atoi(val); err == nil {
				over.Dataset.HoleLength = v
			}
		case "UPPER_BOUND":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				over.Search.UpperBound = v
			}
		case "TIMEOUT_SECONDS":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				over.Search.TimeoutSeconds = &v
			}
		case "CONCURRENCY":
			if v, err := atoi(val); err == nil {
				over.Search.Concurrency = v
			}
		case "COMPONENTS_SOURCE":
			over.Components.Source = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPONENTS_SINK":
			over.Components.Sink = val
		case "OPTIONS_SOURCE_JSON":
			// 空值视为未设置，避免清空现有配置
			if val != "" {
				over.Options.Source = json.RawMessage(val)
			}
		case "OPTIONS_WRITER_JSON":
			if val != "" {
				over.Options.Writer = json.RawMessage(val)
			}
		case "OPTIONS_SINK_JSON":
			if val != "" {
				over.Options.Sink = json.RawMessage(val)
			}
		}
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
