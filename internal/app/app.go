package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/audit"
	brcfg "cloneexec/internal/config"
	"cloneexec/internal/gateway/paper"
	"cloneexec/internal/indicator"
	"cloneexec/internal/logger"
	"cloneexec/internal/scheduler"
	adminhttp "cloneexec/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：持有 agent、调度器与 admin HTTP，并管理资源释放。
type App struct {
	cfg         *brcfg.Config
	agent       *agent.Agent
	resolver    *indicator.Resolver
	paper       *paper.Gateway
	runner      *scheduler.Runner
	sched       *scheduler.Aligned
	admin       *adminhttp.Server
	recent      *audit.Memory
	auditReader audit.Reader
	closers     []func() error

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *brcfg.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg, opts...).Build(ctx)
}

// Run 启动调度器与 admin HTTP，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.agent == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.admin != nil {
		group.Go(func() error {
			if err := a.admin.Start(ctx); err != nil {
				return fmt.Errorf("admin http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		err := a.runner.Run(ctx, a.sched)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return group.Wait()
}

// Tick 立即执行一次 tick（含重试），供 `cloneexec tick` 使用。
func (a *App) Tick(ctx context.Context, at time.Time) (agent.Outcome, error) {
	if a == nil || a.runner == nil {
		return agent.OutcomeFail, fmt.Errorf("app not initialized")
	}
	outcome, ran := a.runner.RunTick(ctx, at)
	if !ran {
		return outcome, fmt.Errorf("tick at %s did not run", at.UTC().Format(time.RFC3339))
	}
	if st := a.runner.Stats(); st.LastError != "" {
		return outcome, errors.New(st.LastError)
	}
	return outcome, nil
}

// WatchConfig 订阅配置热更新：autopilot_override 与日志级别即时生效。
func (a *App) WatchConfig(w *brcfg.Watcher) {
	if a == nil || w == nil {
		return
	}
	w.Subscribe(func(cfg *brcfg.Config) {
		a.ApplyConfig(cfg)
	})
}

// ApplyConfig 应用热更新中可以在运行时改变的字段。
func (a *App) ApplyConfig(cfg *brcfg.Config) {
	if a == nil || a.agent == nil || cfg == nil {
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
	a.agent.Router().SetOverride(overrideFromConfig(cfg.Clone))
	if v, ok := a.agent.Router().Override(); ok {
		logger.Infof("App: autopilot override now %v", v)
	} else {
		logger.Infof("App: autopilot override cleared, following cockpit")
	}
}

func (a *App) Agent() *agent.Agent {
	if a == nil {
		return nil
	}
	return a.agent
}

// RecentAudit 返回最近的审计消息（内存缓冲）。
func (a *App) RecentAudit() *audit.Memory {
	if a == nil {
		return nil
	}
	return a.recent
}

// Close 释放数据库与文件句柄。
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("App: close resource: %v", err)
		}
	}
	a.closers = nil
}
