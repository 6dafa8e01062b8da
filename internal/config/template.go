package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 ./tracks 目录，Writer 输出到 ./out；
// - 组件名采用仓库内置实现，回放默认关闭；
// - 选项包含全部键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Inputs = []string{"tracks"}
	cfg.Options.Source = json.RawMessage(`{
  "exts": [".drum"],
  "exclude_dir_names": [".git"],
  "max_bytes": 1048576,
  "buf_size": 65536
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Sink = json.RawMessage(`{
  "real_time": false,
  "names": true
}`)
	return cfg
}
