package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "drumcoder/internal/config"
	"drumcoder/internal/diag"
	"drumcoder/internal/pipeline"
	"drumcoder/pkg/catalog"
)

var pipelineRun = pipeline.Run

// cliFlags: 命令行覆盖项；零值表示未覆盖（seed 以 -1 表示）。
type cliFlags struct {
	config      string
	seed        int64
	maxTasks    int
	timeout     string
	mode        string
	concurrency int
	play        bool
	initDir     string
	status      bool
}

func main() {
	os.Exit(run())
}

// newRootCmd 构造根命令；RunE 把退出码写入 exit。
// 位置参数为 roots（.drum 文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
func newRootCmd(exit *int) *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:           "drumcoder [flags] [roots...]",
		Short:         "从鼓谱生成补全任务并以枚举搜索恢复被遮蔽的拍",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, roots []string) error {
			*exit = execute(f, roots)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.SortFlags = false
	fl.StringVar(&f.config, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	// CLI 不支持负种子
	fl.Int64Var(&f.seed, "seed", -1, "数据集随机种子（覆盖配置）")
	fl.IntVar(&f.maxTasks, "max-tasks", 0, "最大任务数（覆盖配置）")
	fl.StringVar(&f.timeout, "timeout", "", "单批次搜索超时，如 500ms、2s；负值关闭（覆盖配置）")
	fl.StringVar(&f.mode, "mode", "", "任务模式 infill|occlusion（覆盖配置）")
	fl.IntVar(&f.concurrency, "concurrency", 0, "搜索批次并发度（覆盖配置）")
	fl.BoolVar(&f.play, "play", false, "运行结束后以 timeline sink 回放一个补全")
	fl.StringVar(&f.initDir, "init-config", "", "在指定目录生成 config.json 与 .env 模板（已存在则失败/跳过）；不带值时为当前目录")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	return cmd
}

// run 解析参数并执行；参数错误返回 3。
func run() int {
	normalizeInitArg()
	code := 0
	cmd := newRootCmd(&code)
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		fprintf(os.Stderr, "参数解析失败: %v\n", err)
		return 3
	}
	return code
}

func execute(f cliFlags, roots []string) int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	_ = loadDotEnv(".env")
	logLevel := "info"
	// 先用默认级别，合并配置后重建
	logger := diag.NewLogger(corrID, logLevel)
	fail := func(msg string, err error) int {
		fprintf(os.Stderr, "%s: %v\n", msg, err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(f.initDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			return fail("生成默认配置失败", err)
		}
		if err := writeConfig(filepath.Join(initDir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
			return fail("生成默认配置失败", err)
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return 0
	}

	// JSON 配置（文件或 ENV: DRUMCODER_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if f.config == "" {
		f.config = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if f.config == "" {
		if _, err := os.Stat("config.json"); err == nil {
			f.config = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if f.config != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(f.config, cfgJSON)
		if err != nil {
			return fail("配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return fail("环境变量解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	var overCLI cfgpkg.Config
	if f.seed >= 0 {
		overCLI.Seed = &f.seed
	}
	overCLI.Dataset.MaxTasks = f.maxTasks
	overCLI.Dataset.Mode = f.mode
	overCLI.Search.Concurrency = f.concurrency
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return fail("--timeout 无法解析", err)
		}
		sec := d.Seconds()
		overCLI.Search.TimeoutSeconds = &sec
	}
	if f.play {
		overCLI.Components.Sink = "timeline"
	}
	if len(roots) > 0 {
		overCLI.Inputs = roots
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		_ = dumpConfig(cfg)
		return fail("配置校验失败", err)
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		logLevel = lv
	}
	logger = diag.NewLogger(corrID, logLevel)

	if err := preflightCheckOutputDir(cfg); err != nil {
		return fail("输出目录不可写或无法创建", err)
	}

	comp, set, err := cfgpkg.Assemble(cfg, catalog.WithUnknownInstrumentHook(diag.UnknownInstrumentHook(logger)))
	if err != nil {
		return fail("装配失败", err)
	}
	defer comp.Close()

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.Debug("config", "effective", "", "", map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"mode":         cfg.Dataset.Mode,
		"seed":         fmt.Sprintf("%d", *cfg.Seed),
		"max_tasks":    fmt.Sprintf("%d", cfg.Dataset.MaxTasks),
		"concurrency":  fmt.Sprintf("%d", cfg.Search.Concurrency),
		"upper_bound":  fmt.Sprintf("%g", cfg.Search.UpperBound),
		"source":       cfg.Components.Source,
		"writer":       cfg.Components.Writer,
		"sink":         cfg.Components.Sink,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return 1
	}
	t.Finish("run", 0)
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	return 0
}

