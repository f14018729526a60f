package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	brcfg "cloneexec/internal/config"
	"cloneexec/internal/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "cloneexec",
		Short:         "Per-minute execution agent for one trading clone",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", brcfg.DefaultPath(), "config file (env CLONEEXEC_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override app.log_level")

	cmd.AddCommand(
		newRunCmd(opts),
		newTickCmd(opts),
		newReplayCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// loadConfig 读取配置并初始化日志输出。返回的 closer 关闭日志文件。
func loadConfig(opts *rootOptions) (*brcfg.Config, func(), error) {
	cfg, err := brcfg.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if lvl := strings.TrimSpace(opts.logLevel); lvl != "" {
		cfg.App.LogLevel = lvl
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志文件失败: %w", err)
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，clone=%s）", cfg.App.Env, cfg.Clone.ID)
	closer := func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}
	return cfg, closer, nil
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
