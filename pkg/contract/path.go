package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化来源路径：反斜杠统一为正斜杠并 Clean。
// 不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}
