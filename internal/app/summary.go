package app

import (
	"fmt"
	"strings"

	brcfg "cloneexec/internal/config"
)

// StartupSummary 在启动时打印一次，便于核对部署参数。
type StartupSummary struct {
	CloneID   string
	Market    string
	Exchange  string
	Mode      string
	Indicator IndicatorSummary
	Scheduler SchedulerSummary
	Sinks     []string
}

type IndicatorSummary struct {
	Root      string
	DataSet   string
	Period    string
	File      string
	Tolerance string
	StartMode string
}

type SchedulerSummary struct {
	Interval   string
	Offset     int
	MaxRetries int
	Breaker    int
}

func buildSummary(cfg *brcfg.Config, exchangeName string, override *bool, replay bool) *StartupSummary {
	mode := "cockpit autopilot"
	if override != nil {
		mode = "override: reviewed"
		if *override {
			mode = "override: autonomous"
		}
	}
	startMode := cfg.Indicator.StartMode
	if replay {
		startMode = "replay"
	}
	var sinks []string
	sinks = append(sinks, fmt.Sprintf("memory(%d)", cfg.Audit.RecentSize))
	if !replay {
		if cfg.Audit.JSONLPath != "" {
			sinks = append(sinks, "jsonl:"+cfg.Audit.JSONLPath)
		}
		if cfg.Audit.DBEnabled {
			sinks = append(sinks, "sqlite:"+cfg.Store.AuditDB)
		}
		if cfg.Notify.Telegram.Enabled {
			sinks = append(sinks, "telegram")
		}
	}
	return &StartupSummary{
		CloneID:  cfg.Clone.ID,
		Market:   strings.ToUpper(cfg.Clone.AssetA) + "_" + strings.ToUpper(cfg.Clone.AssetB),
		Exchange: exchangeName,
		Mode:     mode,
		Indicator: IndicatorSummary{
			Root:      cfg.Indicator.Root,
			DataSet:   cfg.Indicator.DataSet,
			Period:    cfg.Indicator.PeriodLabel + " (" + cfg.Indicator.Period + ")",
			File:      cfg.Indicator.FileName,
			Tolerance: cfg.Indicator.Tolerance,
			StartMode: startMode,
		},
		Scheduler: SchedulerSummary{
			Interval:   cfg.Scheduler.Interval,
			Offset:     cfg.Scheduler.OffsetSeconds,
			MaxRetries: cfg.Scheduler.MaxRetries,
			Breaker:    cfg.Scheduler.BreakerThreshold,
		},
		Sinks: sinks,
	}
}

func (s *StartupSummary) Print() {
	fmt.Print(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[Clone]\n")
	fmt.Fprintf(&b, "  ID: %s\n", s.CloneID)
	fmt.Fprintf(&b, "  市场: %s @ %s\n", s.Market, s.Exchange)
	fmt.Fprintf(&b, "  模式: %s\n\n", s.Mode)

	b.WriteString("[指标数据 (INDICATOR)]\n")
	fmt.Fprintf(&b, "  目录: %s/%s\n", s.Indicator.Root, s.Indicator.DataSet)
	fmt.Fprintf(&b, "  周期: %s\n", s.Indicator.Period)
	fmt.Fprintf(&b, "  文件: %s\n", s.Indicator.File)
	fmt.Fprintf(&b, "  容忍: %s\n", s.Indicator.Tolerance)
	fmt.Fprintf(&b, "  启动模式: %s\n\n", s.Indicator.StartMode)

	b.WriteString("[调度 (SCHEDULER)]\n")
	fmt.Fprintf(&b, "  间隔: %s (+%ds)\n", s.Scheduler.Interval, s.Scheduler.Offset)
	fmt.Fprintf(&b, "  最大重试: %d\n", s.Scheduler.MaxRetries)
	fmt.Fprintf(&b, "  熔断阈值: %d\n\n", s.Scheduler.Breaker)

	b.WriteString("[审计 (AUDIT)]\n")
	fmt.Fprintf(&b, "  %s\n", formatList(s.Sinks))
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
