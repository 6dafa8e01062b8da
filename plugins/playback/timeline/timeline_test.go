package timeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"drumcoder/pkg/catalog"
	"drumcoder/pkg/drumlang"
)

func TestEvents(t *testing.T) {
	tr, err := drumlang.New(catalog.Default()).DecodePlayable("BS5h3R3")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tr.BPM = 60
	evs := Events(tr, []float64{0.5, 2})
	if len(evs) != 3 {
		t.Fatalf("events=%d", len(evs))
	}
	// 四分音符在 60 BPM 下为 1 秒，八分为 0.5 秒
	want := []float64{0, 1, 1.5}
	for i, ev := range evs {
		if math.Abs(ev.At-want[i]) > 1e-9 {
			t.Fatalf("event %d at %v want %v", i, ev.At, want[i])
		}
	}
	if evs[0].Loudness != 0.5 || evs[1].Loudness != 1 || evs[2].Loudness != 1 {
		t.Fatalf("loudness %+v", evs)
	}
}

func TestPlay(t *testing.T) {
	tr, _ := drumlang.New(catalog.Default()).DecodePlayable("BS5h3")
	var buf bytes.Buffer
	if err := New(&buf, nil).Play(context.Background(), tr, nil); err != nil {
		t.Fatalf("play: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "t=0.000s hits=B+S length=0.500s loud=1.00" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	buf.Reset()
	New(&buf, &Options{Names: true}).Play(context.Background(), tr, nil)
	if !strings.Contains(buf.String(), "hits=Bass Drum 1+Snare") {
		t.Fatalf("names not used: %q", buf.String())
	}
}

func TestPlayRealTimeCancel(t *testing.T) {
	tr, _ := drumlang.New(catalog.Default()).DecodePlayable("B9B9")
	s := New(&bytes.Buffer{}, &Options{RealTime: true})
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return context.Canceled
	}
	if err := s.Play(context.Background(), tr, nil); !errors.Is(err, context.Canceled) || len(slept) != 1 {
		t.Fatalf("err=%v slept=%v", err, slept)
	}
	if slept[0] != 2*time.Second {
		t.Fatalf("whole note at 120 BPM should be 2s, got %v", slept[0])
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepCtx: %v", err)
	}
}
