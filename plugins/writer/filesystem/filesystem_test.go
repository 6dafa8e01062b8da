package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drumcoder/pkg/contract"
)

func noTmpLeft(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

// TestWriteAtomic 原子写入，且替换已存在的目标
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, v := range []string{"{\"v\":1}\n", "{\"v\":2}\n"} {
		if err := w.Write(context.Background(), "tasks.jsonl", bytes.NewBufferString(v)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "tasks.jsonl"))
	if err != nil || string(b) != "{\"v\":2}\n" {
		t.Fatalf("unexpected file %v %q", err, string(b))
	}
	noTmpLeft(t, dir)
}

// TestWriteNested 相对子路径创建目录
func TestWriteNested(t *testing.T) {
	dir := t.TempDir()
	off := false
	w, _ := New(&Options{OutputDir: dir, Atomic: &off})
	if err := w.Write(context.Background(), "runs/a/results.json", bytes.NewBufferString("{}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "a", "results.json")); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

// TestWritePathInvalid 路径越界
func TestWritePathInvalid(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	for _, id := range []string{"../bad", "..", ".", ""} {
		if err := w.Write(context.Background(), contract.ArtifactID(id), bytes.NewBufferString("x")); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("id %q: expect path invalid, got %v", id, err)
		}
	}
}

// TestWriteCtxCancel 上下文取消
func TestWriteCtxCancel(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "a.json", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx error, got %v", err)
	}
}

// TestNewInvalid 参数缺失
func TestNewInvalid(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("expect configuration error for nil opts, got %v", err)
	}
	if _, err := New(&Options{OutputDir: "  "}); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("expect configuration error for empty output dir, got %v", err)
	}
	w, err := New(&Options{OutputDir: "out"})
	if err != nil || w.Root() != "out" || !w.atomic || w.permF != 0o644 {
		t.Fatalf("defaults: %+v %v", w, err)
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// TestWriteAtomicCopyError 拷贝失败时不残留临时文件，也不产生目标
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir})
	if err := w.Write(context.Background(), "a.json", errReader{}); err == nil {
		t.Fatalf("expect copy error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("files left %v", entries)
	}
}

func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expect ctx error")
	}
}
