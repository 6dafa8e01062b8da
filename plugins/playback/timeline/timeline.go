// Package timeline 提供演示用回放 Sink：将轨道展开为带时间戳的事件行。
package timeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"drumcoder/pkg/contract"
)

// Options: 回放选项。
type Options struct {
	// RealTime: 为 true 时按事件时长真实等待（受 ctx 取消约束）。
	RealTime bool `json:"real_time,omitempty"`
	// Names: 为 true 时输出音色名，否则输出编码。
	Names bool `json:"names,omitempty"`
}

// Sink 实现 contract.PlaybackSink。
type Sink struct {
	w        io.Writer
	realTime bool
	names    bool
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ contract.PlaybackSink = (*Sink)(nil)

// New 创建 Sink；w 为 nil 时写 stdout。
func New(w io.Writer, opts *Options) *Sink {
	if w == nil {
		w = os.Stdout
	}
	s := &Sink{w: w, sleep: sleepCtx}
	if opts != nil {
		s.realTime = opts.RealTime
		s.names = opts.Names
	}
	return s
}

// Event: 单拍回放事件。
type Event struct {
	At       float64
	Hits     []contract.Primitive
	Duration float64
	Loudness float64
}

// Events 计算逐拍起始时间；loudness 不足或越界按 1 处理。
func Events(t contract.PlayableTrack, loudness []float64) []Event {
	out := make([]Event, 0, t.Len())
	var at float64
	for i, b := range t.Beats {
		l := 1.0
		if i < len(loudness) && loudness[i] >= 0 && loudness[i] <= 1 {
			l = loudness[i]
		}
		d := b.Length.Seconds(t.BPM)
		out = append(out, Event{At: at, Hits: b.Hits, Duration: d, Loudness: l})
		at += d
	}
	return out
}

// Play 输出事件行；静音拍同样占用时长。
func (s *Sink) Play(ctx context.Context, t contract.PlayableTrack, loudness []float64) error {
	for _, ev := range Events(t, loudness) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.w, "t=%.3fs hits=%s length=%.3fs loud=%.2f\n", ev.At, s.hitLabel(ev.Hits), ev.Duration, ev.Loudness); err != nil {
			return err
		}
		if s.realTime {
			if err := s.sleep(ctx, time.Duration(ev.Duration*float64(time.Second))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sink) hitLabel(hits []contract.Primitive) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if s.names {
			parts = append(parts, h.Name)
		} else {
			parts = append(parts, string(h.Code))
		}
	}
	return strings.Join(parts, "+")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tm.C:
		return nil
	}
}
