package diag

import (
	"context"
	"errors"
	"io/fs"

	"drumcoder/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeInvalid      Code = "invalid"
	CodeMalformed    Code = "malformed"
	CodePrecondition Code = "precondition"
	CodeConfig       Code = "config"
	CodeCancel       Code = "cancel"
	CodeIO           Code = "io"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrMalformedPattern):
		return CodeMalformed
	case errors.Is(err, contract.ErrPrecondition):
		return CodePrecondition
	case errors.Is(err, contract.ErrConfiguration):
		return CodeConfig
	case errors.Is(err, contract.ErrInvalidInput) || errors.Is(err, contract.ErrPathInvalid):
		return CodeInvalid
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
