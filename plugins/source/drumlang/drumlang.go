// Package drumlang 从 .drum 文本文件导入轨道。
//
// 文件格式：
//
//	# 注释行
//	bpm=96
//	B5S5 B5S5 ...
//
// bpm 头可选（缺省 120），须出现在首个非注释行；其余非注释行拼接为 drum-lang 正文。
package drumlang

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"drumcoder/pkg/contract"
	codec "drumcoder/pkg/drumlang"
	rfs "drumcoder/plugins/reader/filesystem"
)

// Options: .drum 来源选项。
type Options struct {
	// Exts: 目录扫描时接受的扩展名；为空时为 [".drum"]。
	Exts []string `json:"exts,omitempty"`
	// ExcludeDirNames: 跳过的目录基名。
	ExcludeDirNames []string `json:"exclude_dir_names,omitempty"`
	// MaxBytes: 单文件大小上限；<=0 使用 1MiB。
	MaxBytes int64 `json:"max_bytes,omitempty"`
	// BufSize: 读缓冲区大小。
	BufSize int `json:"buf_size,omitempty"`
}

const (
	defaultMaxBytes = 1 << 20
	maxBPM          = 400
)

// Source 实现 contract.TrackSource。
type Source struct {
	codec    *codec.Codec
	reader   contract.Reader
	maxBytes int64
}

var _ contract.TrackSource = (*Source)(nil)

// New 创建来源；codec 为必需。
func New(c *codec.Codec, opts *Options) (*Source, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: source requires a codec", contract.ErrConfiguration)
	}
	if opts == nil {
		opts = &Options{}
	}
	exts := opts.Exts
	if len(exts) == 0 {
		exts = []string{".drum"}
	}
	s := &Source{
		codec: c,
		reader: rfs.New(&rfs.Options{
			BufSize:         opts.BufSize,
			ExcludeDirNames: opts.ExcludeDirNames,
			AllowExts:       exts,
		}),
		maxBytes: defaultMaxBytes,
	}
	if opts.MaxBytes > 0 {
		s.maxBytes = opts.MaxBytes
	}
	return s, nil
}

// Tracks 逐文件解析；解析失败交给 yield 的 err，继续下一个文件。
func (s *Source) Tracks(ctx context.Context, roots []string, yield func(id contract.FileID, t contract.PlayableTrack, err error) error) error {
	return s.reader.Iterate(ctx, roots, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		b, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(b)) > s.maxBytes {
			return yield(id, contract.PlayableTrack{}, fmt.Errorf("%w: %s exceeds %d bytes", contract.ErrInvalidInput, id, s.maxBytes))
		}
		t, perr := s.Parse(string(b))
		if perr != nil {
			perr = fmt.Errorf("%s: %w", id, perr)
		}
		return yield(id, t, perr)
	})
}

// Parse 解析单个 .drum 文档。
func (s *Source) Parse(text string) (contract.PlayableTrack, error) {
	bpm := contract.DefaultBPM
	var body strings.Builder
	first := true
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first {
			first = false
			if v, ok := strings.CutPrefix(line, "bpm="); ok {
				n, err := strconv.Atoi(strings.TrimSpace(v))
				if err != nil || n <= 0 || n > maxBPM {
					return contract.PlayableTrack{}, fmt.Errorf("%w: bad bpm header %q", contract.ErrInvalidInput, line)
				}
				bpm = n
				continue
			}
		}
		body.WriteString(line)
	}
	if body.Len() == 0 {
		return contract.PlayableTrack{}, fmt.Errorf("%w: empty track", contract.ErrInvalidInput)
	}
	t, err := s.codec.DecodePlayable(body.String())
	if err != nil {
		return contract.PlayableTrack{}, err
	}
	t.BPM = bpm
	return t, nil
}
