package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定与日志分类）。
var (
	// ErrConfiguration: 目录构造期配置错误（如编码重复），进程启动时致命。
	ErrConfiguration = errors.New("configuration error")
	// ErrMalformedPattern: drum-lang 解析失败；调用方决定跳过或中止。
	ErrMalformedPattern = errors.New("malformed pattern")
	// ErrInvalidInput: 任务构造参数非法（空轨、洞过长等）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPrecondition: 搜索批次前置条件违例（洞类型不一致、空批）。
	ErrPrecondition = errors.New("precondition failed")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

// PatternError 携带解析失败位置（rune 下标）。
// Cause 非空时（如 NewBeat 的 ErrInvalidInput）同样可被 errors.Is 命中。
type PatternError struct {
	Pos   int
	Msg   string
	Cause error
}

func (e *PatternError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("%s at %d: %s", ErrMalformedPattern.Error(), e.Pos, msg)
}

func (e *PatternError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMalformedPattern}
	}
	return []error{ErrMalformedPattern, e.Cause}
}

// Patternf 构造 PatternError。
func Patternf(pos int, format string, args ...any) error {
	return &PatternError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
