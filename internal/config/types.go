package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// Seed: 数据集随机源种子；nil 表示未设置（Merge 不覆盖）。
	Seed    *int64  `json:"seed"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名；sink 为空表示不回放）。
	Components Components `json:"components"`

	Dataset Dataset `json:"dataset"`
	Search  Search  `json:"search"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Source string `json:"source"`
	Writer string `json:"writer"`
	Sink   string `json:"sink"`
}

// Dataset: 任务生成参数。
type Dataset struct {
	Mode                 string  `json:"mode"`
	MaxTasks             int     `json:"max_tasks"`
	MinBeats             int     `json:"min_beats"`
	MaxBeats             int     `json:"max_beats"`
	HoleLength           int     `json:"hole_length"`
	Attempts             int     `json:"attempts"`
	OcclusionProbability float64 `json:"occlusion_probability"`
}

// Search: 枚举边界与并发。
type Search struct {
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	BudgetIncrement float64 `json:"budget_increment"`
	// TimeoutSeconds: 单批次墙钟上限；负值关闭超时；nil 表示未设置。
	TimeoutSeconds *float64 `json:"timeout_seconds"`
	MaxDepth       int      `json:"max_depth"`
	Concurrency    int      `json:"concurrency"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Source json.RawMessage `json:"source"`
	Writer json.RawMessage `json:"writer"`
	Sink   json.RawMessage `json:"sink"`
}
