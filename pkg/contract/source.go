package contract

import "context"

// TrackSource: 外部轨道来源（乐谱导入等）的边界。
// 核心只消费产出的 PlayableTrack，不接触容器格式。
// 单个来源的导入失败以 err 形式交给 yield，由调用方记录并跳过；
// yield 返回的错误终止遍历。
type TrackSource interface {
	Tracks(ctx context.Context, roots []string, yield func(id FileID, t PlayableTrack, err error) error) error
}

// PlaybackSink: 外部回放边界。仅用于演示，生成与搜索从不依赖其结果。
// loudness 为可选的逐拍响度提示（0..1），长度不足时按 1 处理。
type PlaybackSink interface {
	Play(ctx context.Context, t PlayableTrack, loudness []float64) error
}
