package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloneexec/internal/agent"
	brcfg "cloneexec/internal/config"
	"cloneexec/internal/dedup"
	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/gateway/paper"
	"cloneexec/internal/indicator"
	"cloneexec/internal/logger"
	"cloneexec/internal/metrics"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/circuit"
	"cloneexec/internal/scheduler"
	"cloneexec/internal/store/state"

	"github.com/prometheus/client_golang/prometheus"
)

// AppBuilder 按配置装配 agent 及其依赖。各 *Fn 字段可在测试中替换。
type AppBuilder struct {
	cfg *brcfg.Config

	gatewayFn func(brcfg.ExchangeConfig) (exchange.Gateway, error)
	queueFn   func(brcfg.CockpitConfig) (agent.ReviewQueue, error)
	registry  *prometheus.Registry
	replay    bool
}

type AppBuilderOption func(*AppBuilder)

// WithGateway 替换交易所网关。
func WithGateway(gw exchange.Gateway) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gatewayFn = func(brcfg.ExchangeConfig) (exchange.Gateway, error) { return gw, nil }
	}
}

// WithReviewQueue 替换 cockpit 客户端。
func WithReviewQueue(q agent.ReviewQueue) AppBuilderOption {
	return func(b *AppBuilder) {
		b.queueFn = func(brcfg.CockpitConfig) (agent.ReviewQueue, error) { return q, nil }
	}
}

// WithRegistry 让指标注册到独立的 registry，而不是全局默认值。
func WithRegistry(reg *prometheus.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registry = reg
	}
}

// ForReplay 构建离线回放用的 app：paper 网关、内存状态、指标文件缓存，
// 未设置覆盖时强制 autonomous。
func ForReplay() AppBuilderOption {
	return func(b *AppBuilder) {
		b.replay = true
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		gatewayFn: buildGateway,
		queueFn:   buildReviewQueue,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	if strings.TrimSpace(cfg.App.LogFormat) != "" {
		logger.SetFormat(cfg.App.LogFormat)
	}

	a := &App{cfg: cfg}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	resolver, err := indicator.NewResolver(indicator.NewFileStore(cfg.Indicator.Root), indicator.ResolverOptions{
		Location: indicator.Location{
			DataSet:     cfg.Indicator.DataSet,
			PeriodLabel: cfg.Indicator.PeriodLabel,
			Period:      cfg.Indicator.PeriodDuration(),
			FileName:    cfg.Indicator.FileName,
		},
		Tolerance: cfg.Indicator.ToleranceDuration(),
		Backtest:  b.replay || cfg.Indicator.Backtest(),
	})
	if err != nil {
		return nil, err
	}
	a.resolver = resolver

	gw, err := b.buildGateway(cfg)
	if err != nil {
		return nil, err
	}
	if pg, isPaper := gw.(*paper.Gateway); isPaper {
		a.paper = pg
	}

	queue, err := b.queueFn(cfg.Cockpit)
	if err != nil {
		return nil, err
	}

	guard, ledger, err := b.buildState(a, cfg)
	if err != nil {
		return nil, err
	}

	sinks, err := buildAudit(ctx, a, cfg, b.replay)
	if err != nil {
		return nil, err
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if b.registry != nil {
		reg, gatherer = b.registry, b.registry
	}
	m := metrics.New(reg)

	override := overrideFromConfig(cfg.Clone)
	if b.replay && override == nil {
		on := true
		override = &on
	}
	ag, err := agent.New(agent.Options{
		CloneID: cfg.Clone.ID,
		Market: ordermsg.Market{
			Exchange: cfg.Clone.Exchange,
			AssetA:   cfg.Clone.AssetA,
			AssetB:   cfg.Clone.AssetB,
		},
		Override: override,
	}, agent.Deps{
		Resolver: resolver,
		Gateway:  gw,
		Queue:    queue,
		Audit:    sinks,
		Guard:    guard,
		Ledger:   ledger,
		Metrics:  m,
	})
	if err != nil {
		return nil, err
	}
	a.agent = ag

	sc := cfg.Scheduler
	breaker := circuit.NewCircuitBreaker("agent", sc.BreakerThreshold, time.Duration(sc.BreakerCooldownSeconds)*time.Second)
	a.runner = scheduler.NewRunner(ag, scheduler.RunnerOptions{
		RetryDelay: time.Duration(sc.RetryDelaySeconds) * time.Second,
		MaxRetries: sc.MaxRetries,
		Breaker:    breaker,
	})
	a.sched = scheduler.NewAligned("tick", sc.IntervalDuration(), time.Duration(sc.OffsetSeconds)*time.Second)

	if !b.replay {
		a.admin = buildAdminServer(cfg, a, gatherer)
	}
	a.Summary = buildSummary(cfg, gw.Name(), override, b.replay)
	built = true
	return a, nil
}

func (b *AppBuilder) buildGateway(cfg *brcfg.Config) (exchange.Gateway, error) {
	if b.replay && cfg.Exchange.Kind != "paper" {
		return nil, fmt.Errorf("replay only runs against the paper exchange, got %s", cfg.Exchange.Kind)
	}
	return b.gatewayFn(cfg.Exchange)
}

// buildState 打开持久化的游标与提交记录；回放时使用内存实现，不影响实盘状态。
func (b *AppBuilder) buildState(a *App, cfg *brcfg.Config) (*dedup.Guard, dedup.Ledger, error) {
	if b.replay {
		return dedup.NewGuard(dedup.NewMemoryStore(), cfg.Clone.ID), dedup.NewMemoryLedger(), nil
	}
	st, err := state.Open(cfg.Store.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}
	a.closers = append(a.closers, st.Close)
	logger.Infof("✓ 状态库: %s", cfg.Store.StatePath)
	return dedup.NewGuard(st, cfg.Clone.ID), st, nil
}

func overrideFromConfig(c brcfg.CloneConfig) *bool {
	v, ok := c.Override()
	if !ok {
		return nil
	}
	return &v
}
