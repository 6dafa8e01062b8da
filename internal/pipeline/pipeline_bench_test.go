package pipeline

import (
	"context"
	"math/rand"
	"strings"
	"testing"
)

// BenchmarkRun 在内存 Writer 上运行完整填空流水线。
func BenchmarkRun(b *testing.B) {
	long := strings.Repeat("B5S5h3R3BS4h1", 8)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		comp, set, _ := fixture(long)
		set.Dataset.MaxTasks = 32
		set.Dataset.MinBeats, set.Dataset.MaxBeats = 8, 16
		set.Dataset.Rand = rand.New(rand.NewSource(int64(i)))
		if err := Run(context.Background(), comp, set, nil); err != nil {
			b.Fatalf("run: %v", err)
		}
	}
}
