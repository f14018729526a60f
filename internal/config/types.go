package config

import (
	"strings"
	"time"
)

// Config 是 cloneexec 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Clone     CloneConfig     `toml:"clone"`
	Indicator IndicatorConfig `toml:"indicator"`
	Cockpit   CockpitConfig   `toml:"cockpit"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Store     StoreConfig     `toml:"store"`
	Audit     AuditConfig     `toml:"audit"`
	Notify    NotifyConfig    `toml:"notify"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

// CloneConfig 描述被执行的 clone 以及它交易的市场。
type CloneConfig struct {
	ID       string `toml:"id"`
	Exchange string `toml:"exchange"`
	AssetA   string `toml:"asset_a"`
	AssetB   string `toml:"asset_b"`
	// AutopilotOverride: "" 表示跟随 cockpit 设置，"on"/"off" 强制本地模式。
	AutopilotOverride string `toml:"autopilot_override"`
}

// Override 解析本地 autopilot 覆盖值，ok=false 表示未设置。
func (c CloneConfig) Override() (autopilot bool, ok bool) {
	return ParseAutopilot(c.AutopilotOverride)
}

// ParseAutopilot 接受 on/off/true/false/auto，auto 或空值视为未设置。
func ParseAutopilot(raw string) (autopilot bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "autonomous":
		return true, true
	case "off", "false", "0", "reviewed", "manual":
		return false, true
	default:
		return false, false
	}
}

// IndicatorConfig 控制指标文件的位置与新鲜度。
type IndicatorConfig struct {
	Root        string `toml:"root"`
	DataSet     string `toml:"data_set"`
	PeriodLabel string `toml:"period_label"`
	Period      string `toml:"period"`
	FileName    string `toml:"file_name"`
	Tolerance   string `toml:"tolerance"`
	StartMode   string `toml:"start_mode"` // "live" | "backtest"
}

// PeriodDuration 返回指标周期，解析失败时为 0（validate 已拦截）。
func (i IndicatorConfig) PeriodDuration() time.Duration {
	d, _ := ParseDuration(i.Period)
	return d
}

func (i IndicatorConfig) ToleranceDuration() time.Duration {
	d, _ := ParseDuration(i.Tolerance)
	return d
}

func (i IndicatorConfig) Backtest() bool {
	return strings.EqualFold(strings.TrimSpace(i.StartMode), "backtest")
}

// CockpitConfig 描述 review 队列 (GraphQL) 的访问方式。
type CockpitConfig struct {
	Endpoint       string  `toml:"endpoint"`
	Authorization  string  `toml:"authorization"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
}

type ExchangeConfig struct {
	Kind   string       `toml:"kind"` // "paper" | "bridge"
	Paper  PaperConfig  `toml:"paper"`
	Bridge BridgeConfig `toml:"bridge"`
}

type PaperConfig struct {
	AssetA float64 `toml:"asset_a"`
	AssetB float64 `toml:"asset_b"`
	Rate   float64 `toml:"rate"`
	// AutoFill 为 true 时每次下单后立即成交。
	AutoFill bool `toml:"auto_fill"`
}

type BridgeConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	StatePath string `toml:"state_path"`
	AuditDB   string `toml:"audit_db"`
}

type AuditConfig struct {
	JSONLPath  string `toml:"jsonl_path"`
	DBEnabled  bool   `toml:"db_enabled"`
	RecentSize int    `toml:"recent_size"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// SchedulerConfig 控制守护进程的节拍、重试与熔断。
type SchedulerConfig struct {
	Interval               string `toml:"interval"`
	OffsetSeconds          int    `toml:"offset_seconds"`
	RetryDelaySeconds      int    `toml:"retry_delay_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

func (s SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := ParseDuration(s.Interval)
	return d
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
