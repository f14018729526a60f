package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/audit"
	brcfg "cloneexec/internal/config"
	"cloneexec/internal/gateway/bridge"
	"cloneexec/internal/gateway/cockpit"
	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/gateway/notifier"
	"cloneexec/internal/gateway/paper"
	"cloneexec/internal/logger"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/store/sqlite"
	adminhttp "cloneexec/internal/transport/http/admin"

	"github.com/prometheus/client_golang/prometheus"
)

func buildGateway(cfg brcfg.ExchangeConfig) (exchange.Gateway, error) {
	switch cfg.Kind {
	case "bridge":
		client, err := bridge.NewClient(bridge.Options{
			BaseURL: cfg.Bridge.BaseURL,
			Token:   cfg.Bridge.Token,
			Timeout: time.Duration(cfg.Bridge.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init exchange bridge: %w", err)
		}
		logger.Infof("✓ 交易所桥接: %s", cfg.Bridge.BaseURL)
		return client, nil
	default:
		logger.Infof("✓ Paper 交易所: assetA=%v assetB=%v rate=%v", cfg.Paper.AssetA, cfg.Paper.AssetB, cfg.Paper.Rate)
		return paper.New(paper.Options{
			AssetA:   cfg.Paper.AssetA,
			AssetB:   cfg.Paper.AssetB,
			Rate:     cfg.Paper.Rate,
			AutoFill: cfg.Paper.AutoFill,
		}), nil
	}
}

func buildReviewQueue(cfg brcfg.CockpitConfig) (agent.ReviewQueue, error) {
	client, err := cockpit.NewClient(cockpit.Options{
		Endpoint:      cfg.Endpoint,
		Authorization: cfg.Authorization,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init cockpit client: %w", err)
	}
	logger.Infof("✓ Cockpit: %s", cfg.Endpoint)
	return client, nil
}

// buildAudit 组装审计链路：内存环形缓冲总是存在，其余按配置启用。
// 读接口优先使用数据库，其次是内存缓冲。
func buildAudit(ctx context.Context, a *App, cfg *brcfg.Config, replay bool) (audit.Multi, error) {
	recent := audit.NewMemory(cfg.Audit.RecentSize)
	a.recent = recent
	a.auditReader = recent
	sinks := audit.Multi{recent}

	if path := strings.TrimSpace(cfg.Audit.JSONLPath); path != "" && !replay {
		fs, err := audit.NewFileSink(path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, fs.Close)
		sinks = append(sinks, fs)
		logger.Infof("✓ 审计日志: %s", path)
	}

	if cfg.Audit.DBEnabled && !replay {
		st, err := sqlite.NewStore(cfg.Store.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("open audit db: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		db := audit.NewDBSink(st, cfg.Clone.ID)
		sinks = append(sinks, db)
		a.auditReader = db
		if counts, err := st.CountByStatus(ctx, cfg.Clone.ID); err == nil && len(counts) > 0 {
			logger.Infof("✓ 审计库: %s (%v)", cfg.Store.AuditDB, counts)
		} else {
			logger.Infof("✓ 审计库: %s", cfg.Store.AuditDB)
		}
	}

	if tg := newTelegram(cfg.Notify); tg != nil && !replay {
		sinks = append(sinks, audit.NewNotifySink(tg, cfg.Clone.ID,
			ordermsg.StatusPlaced, ordermsg.StatusFilled, ordermsg.StatusRejected))
		logger.Infof("✓ Telegram 通知已启用")
	}
	return sinks, nil
}

func buildAdminServer(cfg *brcfg.Config, a *App, gatherer prometheus.Gatherer) *adminhttp.Server {
	if strings.TrimSpace(cfg.App.HTTPAddr) == "" {
		return nil
	}
	server := adminhttp.NewServer(adminhttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		CloneID:   cfg.Clone.ID,
		Autopilot: a.agent.Router(),
		Cursor:    a.agent.Guard(),
		Audit:     a.auditReader,
		Stats:     a.runner,
		Gatherer:  gatherer,
	})
	logger.Infof("✓ Admin HTTP 接口监听 %s", server.Addr())
	return server
}

func newTelegram(cfg brcfg.NotifyConfig) *notifier.Telegram {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}
