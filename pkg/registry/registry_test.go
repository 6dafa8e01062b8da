package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"drumcoder/pkg/catalog"
	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	c := drumlang.New(catalog.Default())
	t.Run("source", func(t *testing.T) {
		if _, err := Source["drumlang"](json.RawMessage(`{"exts":[".drum"]}`), c); err != nil {
			t.Fatalf("source: %v", err)
		}
		if _, err := Source["drumlang"](json.RawMessage(`{"x":1}`), c); err == nil {
			t.Fatalf("source 未对未知字段报错")
		}
		if _, err := Source["drumlang"](nil, nil); !errors.Is(err, contract.ErrConfiguration) {
			t.Fatalf("source 缺少 codec 应报配置错误: %v", err)
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		if _, err := Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, tmp))); err != nil {
			t.Fatalf("writer: %v", err)
		}
		if _, err := Writer["fs"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp))); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
		if _, err := Writer["fs"](json.RawMessage(`{}`)); !errors.Is(err, contract.ErrConfiguration) {
			t.Fatalf("writer 缺少 output_dir 应报配置错误: %v", err)
		}
		w, err := Writer["sqlite"](json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		if err != nil {
			t.Fatalf("sqlite writer: %v", err)
		}
		if c, ok := w.(io.Closer); !ok || c.Close() != nil {
			t.Fatalf("sqlite writer should close cleanly")
		}
		if _, err := Writer["sqlite"](json.RawMessage(`{"dsn":"x"}`)); err == nil {
			t.Fatalf("sqlite 未对未知字段报错")
		}
	})
	t.Run("sink", func(t *testing.T) {
		if _, err := Sink["timeline"](json.RawMessage(`{"names":true}`), &bytes.Buffer{}); err != nil {
			t.Fatalf("sink: %v", err)
		}
		if _, err := Sink["timeline"](json.RawMessage(`{"x":1}`), nil); err == nil {
			t.Fatalf("sink 未对未知字段报错")
		}
	})
}
