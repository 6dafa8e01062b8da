package diag

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) logrus() logrus.Level {
	switch l {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// String 与日志行中的 level 字段一致（warn 输出为 "warning"）。
func (l Level) String() string { return l.logrus().String() }

// LineSink 接收单行日志（不含换行）。
type LineSink interface {
	WriteLine(b []byte) error
}

// Logger 是 logrus 之上的事件日志器：单行 JSON，字段固定，写入 sink；
// sink 为空或失败时退回 stderr。全部方法对 nil 接收者安全。
type Logger struct {
	corrID string
	lr     *logrus.Logger
}

// NewLogger 通过配置的 level 初始化，日志写入 logs/drumcoder-current.txt，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerTo(corrID, level, NewRotatingFile("logs", 10*1024*1024))
}

// NewLoggerTo 使用指定 sink（测试或嵌入场景）。
func NewLoggerTo(corrID, level string, sink LineSink) *Logger {
	lr := logrus.New()
	lr.SetLevel(parseLevel(strings.TrimSpace(level)).logrus())
	lr.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
		},
	})
	if sink == nil {
		lr.SetOutput(os.Stderr)
	} else {
		lr.SetOutput(sinkWriter{sink})
	}
	return &Logger{corrID: corrID, lr: lr}
}

// WriterSink 将 io.Writer 适配为 LineSink。
type WriterSink struct{ W io.Writer }

func (s WriterSink) WriteLine(b []byte) error {
	_, err := s.W.Write(append(b, '\n'))
	return err
}

// sinkWriter 把 logrus 的输出（每条一行，带换行）转交 LineSink。
type sinkWriter struct{ sink LineSink }

func (w sinkWriter) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")
	if err := w.sink.WriteLine(line); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(p)
	}
	return len(p), nil
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// CorrID 返回本次运行的关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Event 为日志行的解码形状（测试与离线分析用）。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|error|reject|debug
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Source string            `json:"source,omitempty"`
	Batch  string            `json:"batch,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

func (ev Event) fields(corrID string) logrus.Fields {
	f := logrus.Fields{"corr_id": corrID, "comp": ev.Comp, "stage": ev.Stage}
	put := func(k, v string) {
		if v != "" {
			f[k] = v
		}
	}
	put("code", ev.Code)
	put("source", ev.Source)
	put("batch", ev.Batch)
	if ev.DurMS != 0 {
		f["dur_ms"] = ev.DurMS
	}
	if ev.Count != 0 {
		f["count"] = ev.Count
	}
	if len(ev.KV) > 0 {
		f["kv"] = ev.KV
	}
	return f
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || l.lr == nil {
		return
	}
	l.lr.WithFields(ev.fields(l.corrID)).Log(lv.logrus(), ev.Msg)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", "")
}

// StartWith 记录带 source/batch 的 start。
func (l *Logger) StartWith(comp, msg, source, batch string) *Timer {
	return l.StartWithKV(comp, msg, source, batch, nil)
}

func (l *Logger) StartWithKV(comp, msg, source, batch string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Source: source, Batch: batch, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, source: source, batch: batch, t0: time.Now()}
}

// Error 记录 error 事件；durSince 非空时附带耗时。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, source, batch string) {
	l.ErrorWithKV(comp, code, msg, durSince, source, batch, nil)
}

func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, source, batch string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, Source: source, Batch: batch, KV: kv})
}

// Reject 记录被跳过的输入（无效片段、导入失败等），warn 级别，不中断流程。
func (l *Logger) Reject(comp, code, msg, source string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "reject", Code: code, Source: source, Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// Debug 输出调试事件（仅 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, source, batch string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "debug", Source: source, Batch: batch, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	source string
	batch  string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, Source: t.source, Batch: t.batch, Msg: msg, KV: kv})
}

// UnknownInstrumentHook 返回目录未知乐器号回调：计入 error_total{catalog,invalid}，
// l 非空时再记一条 reject。
func UnknownInstrumentHook(l *Logger) func(id int) {
	return func(id int) {
		IncError("catalog", string(CodeInvalid))
		if l != nil {
			l.Reject("catalog", string(CodeInvalid), "unknown instrument mapped to rest", "",
				map[string]string{"instrument": fmt.Sprintf("%d", id)})
		}
	}
}
