package sqlite

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"drumcoder/pkg/contract"
)

func open(t *testing.T, opts *Options) *Store {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// UT-SQL-01: 写入后可读回；同 id 再写整体替换
func TestWriteReplace(t *testing.T) {
	s := open(t, &Options{OutputDir: t.TempDir()})
	ctx := context.Background()
	for _, v := range []string{"{\"v\":1}\n", "{\"v\":2}\n"} {
		if err := s.Write(ctx, "results.json", strings.NewReader(v)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	b, err := s.Read(ctx, "results.json")
	if err != nil || string(b) != "{\"v\":2}\n" {
		t.Fatalf("read: %v %q", err, b)
	}
	if filepath.Base(s.Path()) != DefaultFile {
		t.Fatalf("path: %s", s.Path())
	}
}

// UT-SQL-02: id 规范化后存储，List 升序
func TestListNormalized(t *testing.T) {
	s := open(t, &Options{Path: filepath.Join(t.TempDir(), "a.db"), Table: "runs_v1"})
	ctx := context.Background()
	for _, id := range []contract.ArtifactID{"tasks.jsonl", `runs\a\results.json`, "./b/../c.json"} {
		if err := s.Write(ctx, id, bytes.NewBufferString("x")); err != nil {
			t.Fatalf("write %s: %v", id, err)
		}
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []contract.ArtifactID{"c.json", "runs/a/results.json", "tasks.jsonl"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
}

func TestWritePathInvalid(t *testing.T) {
	s := open(t, &Options{OutputDir: t.TempDir()})
	for _, id := range []contract.ArtifactID{"", ".", "..", "../x", "/abs"} {
		if err := s.Write(context.Background(), id, strings.NewReader("x")); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("%q: want ErrPathInvalid, got %v", id, err)
		}
	}
}

func TestReadMissing(t *testing.T) {
	s := open(t, &Options{OutputDir: t.TempDir()})
	if _, err := s.Read(context.Background(), "none.json"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not exist, got %v", err)
	}
}

// 取消的 ctx 不落库
func TestWriteCancelled(t *testing.T) {
	s := open(t, &Options{OutputDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Write(ctx, "tasks.jsonl", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	ids, _ := s.List(context.Background())
	if len(ids) != 0 {
		t.Fatalf("nothing should be stored: %v", ids)
	}
}

func TestNewConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		opts *Options
	}{
		{"nil", nil},
		{"empty", &Options{}},
		{"table", &Options{OutputDir: t.TempDir(), Table: "a;drop"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.opts); !errors.Is(err, contract.ErrConfiguration) {
				t.Fatalf("want ErrConfiguration, got %v", err)
			}
		})
	}
}

// 重新打开后数据仍在
func TestReopen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "keep.db")
	s, err := New(&Options{Path: p})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Write(context.Background(), "tasks.jsonl", strings.NewReader("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()
	s2 := open(t, &Options{Path: p})
	if b, err := s2.Read(context.Background(), "tasks.jsonl"); err != nil || string(b) != "line\n" {
		t.Fatalf("reopen read: %v %q", err, b)
	}
}
