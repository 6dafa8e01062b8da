package diag

import (
	"sort"
	"strings"
	"sync"
)

// 进程内计数器，运行结束时由流水线汇总进日志：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）
var metrics = struct {
	mu   sync.Mutex
	vals map[string]int64
}{vals: make(map[string]int64)}

func add(key string, v int64) {
	metrics.mu.Lock()
	metrics.vals[key] += v
	metrics.mu.Unlock()
}

func key(name string, labels ...string) string {
	return name + "{" + strings.Join(labels, ",") + "}"
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { add(key("op_total", comp, stage, result), 1) }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { add(key("error_total", comp, code), 1) }

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add(key("op_duration_ms", comp, stage), durMS)
}

// Snapshot 返回当前计数副本。
func Snapshot() map[string]int64 {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	out := make(map[string]int64, len(metrics.vals))
	for k, v := range metrics.vals {
		out[k] = v
	}
	return out
}

// SnapshotKeys 返回排序后的计数键，便于稳定输出。
func SnapshotKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResetMetrics 清空计数（测试用）。
func ResetMetrics() {
	metrics.mu.Lock()
	metrics.vals = make(map[string]int64)
	metrics.mu.Unlock()
}
