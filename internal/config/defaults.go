package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9992"
	defaultCloneExchange    = "paper"
	defaultCloneAssetA      = "USDT"
	defaultCloneAssetB      = "BTC"
	defaultIndicatorRoot    = "data"
	defaultIndicatorLabel   = "01-min"
	defaultIndicatorPeriod  = "1m"
	defaultIndicatorFile    = "USDT_BTC.json"
	defaultIndicatorTol     = "10m"
	defaultIndicatorMode    = "live"
	defaultCockpitTimeout   = 15
	defaultCockpitRate      = 5
	defaultCockpitBurst     = 2
	defaultExchangeKind     = "paper"
	defaultBridgeTimeout    = 10
	defaultStatePath        = "data/db/cloneexec_state.db"
	defaultAuditDB          = "data/db/cloneexec_audit.db"
	defaultAuditJSONL       = "data/audit/messages.jsonl"
	defaultAuditRecent      = 200
	defaultSchedInterval    = "1m"
	defaultSchedRetryDelay  = 10
	defaultSchedMaxRetries  = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 300
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Clone.applyDefaults(keys)
	c.Indicator.applyDefaults(keys)
	c.Cockpit.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Audit.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (c *CloneConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	c.ID = strings.TrimSpace(c.ID)
	applyFieldDefaults(keys,
		stringFieldDefault("clone.exchange", &c.Exchange, defaultCloneExchange),
		stringFieldDefault("clone.asset_a", &c.AssetA, defaultCloneAssetA),
		stringFieldDefault("clone.asset_b", &c.AssetB, defaultCloneAssetB),
	)
	c.AssetA = strings.ToUpper(strings.TrimSpace(c.AssetA))
	c.AssetB = strings.ToUpper(strings.TrimSpace(c.AssetB))
}

func (i *IndicatorConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("indicator.root", &i.Root, defaultIndicatorRoot),
		stringFieldDefault("indicator.period_label", &i.PeriodLabel, defaultIndicatorLabel),
		stringFieldDefault("indicator.period", &i.Period, defaultIndicatorPeriod),
		stringFieldDefault("indicator.file_name", &i.FileName, defaultIndicatorFile),
		stringFieldDefault("indicator.tolerance", &i.Tolerance, defaultIndicatorTol),
		stringFieldDefault("indicator.start_mode", &i.StartMode, defaultIndicatorMode),
	)
	i.StartMode = strings.ToLower(strings.TrimSpace(i.StartMode))
}

func (c *CockpitConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "cockpit.timeout_seconds",
			need:  func() bool { return c.TimeoutSeconds <= 0 },
			apply: func() { c.TimeoutSeconds = defaultCockpitTimeout },
		},
		fieldDefault{
			key:   "cockpit.rate_per_second",
			need:  func() bool { return c.RatePerSecond <= 0 },
			apply: func() { c.RatePerSecond = defaultCockpitRate },
		},
		fieldDefault{
			key:   "cockpit.burst",
			need:  func() bool { return c.Burst <= 0 },
			apply: func() { c.Burst = defaultCockpitBurst },
		},
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.kind", &e.Kind, defaultExchangeKind),
		fieldDefault{
			key:   "exchange.bridge.timeout_seconds",
			need:  func() bool { return e.Bridge.TimeoutSeconds <= 0 },
			apply: func() { e.Bridge.TimeoutSeconds = defaultBridgeTimeout },
		},
		boolFieldDefault("exchange.paper.auto_fill", &e.Paper.AutoFill, true),
	)
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.state_path", &s.StatePath, defaultStatePath),
		stringFieldDefault("store.audit_db", &s.AuditDB, defaultAuditDB),
	)
}

func (a *AuditConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("audit.jsonl_path", &a.JSONLPath, defaultAuditJSONL),
		boolFieldDefault("audit.db_enabled", &a.DBEnabled, true),
		fieldDefault{
			key:   "audit.recent_size",
			need:  func() bool { return a.RecentSize <= 0 },
			apply: func() { a.RecentSize = defaultAuditRecent },
		},
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.interval", &s.Interval, defaultSchedInterval),
		fieldDefault{
			key:   "scheduler.retry_delay_seconds",
			need:  func() bool { return s.RetryDelaySeconds <= 0 },
			apply: func() { s.RetryDelaySeconds = defaultSchedRetryDelay },
		},
		fieldDefault{
			key:   "scheduler.max_retries",
			need:  func() bool { return s.MaxRetries <= 0 },
			apply: func() { s.MaxRetries = defaultSchedMaxRetries },
		},
		fieldDefault{
			key:   "scheduler.breaker_threshold",
			need:  func() bool { return s.BreakerThreshold <= 0 },
			apply: func() { s.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "scheduler.breaker_cooldown_seconds",
			need:  func() bool { return s.BreakerCooldownSeconds <= 0 },
			apply: func() { s.BreakerCooldownSeconds = defaultBreakerCooldown },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
