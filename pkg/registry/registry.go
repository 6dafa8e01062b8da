package registry

import (
	"bytes"
	"encoding/json"
	"io"

	"drumcoder/pkg/contract"
	"drumcoder/pkg/drumlang"
	ptl "drumcoder/plugins/playback/timeline"
	sdl "drumcoder/plugins/source/drumlang"
	wfs "drumcoder/plugins/writer/filesystem"
	wsq "drumcoder/plugins/writer/sqlite"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewSource 工厂签名：接收原样 JSON Options 与共享编解码器。
type NewSource func(raw json.RawMessage, c *drumlang.Codec) (contract.TrackSource, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewSink 工厂签名：接收原样 JSON Options 与输出流。
type NewSink func(raw json.RawMessage, w io.Writer) (contract.PlaybackSink, error)

// Source 工厂注册表（显式、零反射）。
var Source = map[string]NewSource{
	// drumlang: .drum 文本文件（可选 bpm 头）
	"drumlang": func(raw json.RawMessage, c *drumlang.Codec) (contract.TrackSource, error) {
		var opts sdl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sdl.New(c, &opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// sqlite: 单文件数据库，按 id upsert
	"sqlite": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wsq.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wsq.New(&opts)
	},
}

// Sink 工厂注册表。
var Sink = map[string]NewSink{
	// timeline: 文本时间线回放
	"timeline": func(raw json.RawMessage, w io.Writer) (contract.PlaybackSink, error) {
		var opts ptl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ptl.New(w, &opts), nil
	},
}
