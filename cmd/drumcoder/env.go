package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	cfgpkg "drumcoder/internal/config"
)

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func marshalConfig(c cfgpkg.Config) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func dumpConfig(c cfgpkg.Config) error {
	b, err := marshalConfig(c)
	if err != nil {
		return err
	}
	fprintf(os.Stderr, "有效配置:\n%s", b)
	return nil
}

// writeConfig 写出配置模板；path 为 "-" 时写 stdout，已存在的文件不覆盖。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := marshalConfig(c)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return createExclusive(path, b)
}

func createExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// loadDotEnv 把 .env 注入进程环境；文件不存在时忽略，已有变量不覆盖。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// normalizeInitArg: 裸 --init-config（末尾或后随旗标）补成 "--init-config ."。
func normalizeInitArg() {
	if len(os.Args) <= 1 {
		return
	}
	args := append([]string(nil), os.Args[:1]...)
	rest := os.Args[1:]
	for i, a := range rest {
		args = append(args, a)
		if a == "--init-config" && (i+1 == len(rest) || strings.HasPrefix(rest[i+1], "-")) {
			args = append(args, ".")
		}
	}
	os.Args = args
}

var dotEnvSections = []struct {
	title string
	keys  []string
}{
	{"配置来源（可二选一）", []string{"CONFIG_FILE", "CONFIG_JSON"}},
	{"运行参数覆盖", []string{"INPUTS", "SEED", "LOG_LEVEL", "MODE", "MAX_TASKS", "MIN_BEATS", "MAX_BEATS", "HOLE_LENGTH", "UPPER_BOUND", "TIMEOUT_SECONDS", "CONCURRENCY"}},
	{"组件选择与选项", []string{"COMPONENTS_SOURCE", "COMPONENTS_WRITER", "COMPONENTS_SINK", "OPTIONS_SOURCE_JSON", "OPTIONS_WRITER_JSON", "OPTIONS_SINK_JSON"}},
}

// writeDotEnv 生成 .env 模板；文件已存在时静默跳过。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# drumcoder .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	for _, sec := range dotEnvSections {
		fmt.Fprintf(&b, "\n# %s\n", sec.title)
		for _, k := range sec.keys {
			b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
		}
	}
	err := createExclusive(path, []byte(b.String()))
	if os.IsExist(err) {
		return nil
	}
	return err
}

// preflightCheckOutputDir: fs/sqlite writer 的输出目录在运行前必须可写。
// 目录已存在时探测写入临时文件；不存在时探测父目录。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Writer)
	if name == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if (name != "fs" && name != "sqlite") || len(cfg.Options.Writer) == 0 {
		return nil
	}
	var opts struct {
		OutputDir string `json:"output_dir"`
	}
	_ = json.Unmarshal(cfg.Options.Writer, &opts)
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		// 交给装配阶段报 ErrConfiguration
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && !st.IsDir():
		return fmt.Errorf("output path is not a directory: %s", dir)
	case err == nil:
		return probeFile(dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(dir)
	if pst, err := os.Stat(parent); err != nil {
		return err
	} else if !pst.IsDir() {
		return fmt.Errorf("output parent is not a directory: %s", parent)
	}
	tmp, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmp)
}

func probeFile(dir string) error {
	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
