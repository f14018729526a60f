package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Clone.validate(); err != nil {
		return err
	}
	if err := c.Indicator.validate(); err != nil {
		return err
	}
	if err := c.Cockpit.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	return nil
}

func (c *CloneConfig) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("clone.id cannot be empty (or set CLONE_ID)")
	}
	if c.AssetA == "" || c.AssetB == "" {
		return fmt.Errorf("clone.asset_a and clone.asset_b are required")
	}
	if c.AssetA == c.AssetB {
		return fmt.Errorf("clone.asset_a and clone.asset_b must differ, got %s", c.AssetA)
	}
	raw := strings.TrimSpace(c.AutopilotOverride)
	if _, ok := ParseAutopilot(raw); !ok && raw != "" && !strings.EqualFold(raw, "auto") {
		return fmt.Errorf("clone.autopilot_override must be on, off or auto, got %s", raw)
	}
	return nil
}

func (i *IndicatorConfig) validate() error {
	if strings.TrimSpace(i.DataSet) == "" {
		return fmt.Errorf("indicator.data_set cannot be empty")
	}
	if strings.TrimSpace(i.PeriodLabel) == "" {
		return fmt.Errorf("indicator.period_label cannot be empty")
	}
	if _, err := ParseDuration(i.Period); err != nil {
		return fmt.Errorf("indicator.period: %w", err)
	}
	tol, err := ParseDuration(i.Tolerance)
	if err != nil {
		return fmt.Errorf("indicator.tolerance: %w", err)
	}
	if tol < 0 {
		return fmt.Errorf("indicator.tolerance must be >= 0")
	}
	switch i.StartMode {
	case "live", "backtest":
	default:
		return fmt.Errorf("indicator.start_mode only supports live or backtest, got %s", i.StartMode)
	}
	return nil
}

func (c *CockpitConfig) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("cockpit.endpoint cannot be empty (or set COCKPIT_ENDPOINT)")
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("cockpit.rate_per_second must be > 0")
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	switch e.Kind {
	case "paper":
		if e.Paper.AssetA < 0 || e.Paper.AssetB < 0 {
			return fmt.Errorf("exchange.paper balances must be >= 0")
		}
	case "bridge":
		if strings.TrimSpace(e.Bridge.BaseURL) == "" {
			return fmt.Errorf("exchange.bridge.base_url cannot be empty")
		}
	default:
		return fmt.Errorf("exchange.kind only supports paper or bridge, got %s", e.Kind)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	d, err := ParseDuration(s.Interval)
	if err != nil {
		return fmt.Errorf("scheduler.interval: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("scheduler.interval must be > 0")
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scheduler.offset_seconds must be >= 0")
	}
	return nil
}
