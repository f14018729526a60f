package main

import (
	"fmt"
	"time"

	"cloneexec/internal/agent"
	"cloneexec/internal/app"
	brcfg "cloneexec/internal/config"
	"cloneexec/internal/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent on an aligned schedule with the admin HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			a, err := app.NewApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()

			watcher, err := brcfg.Watch(opts.configPath)
			if err != nil {
				logger.Warnf("config hot reload disabled: %v", err)
			} else {
				a.WatchConfig(watcher)
			}
			if err := a.Run(ctx); err != nil {
				return fmt.Errorf("运行失败: %w", err)
			}
			return nil
		},
	}
}

func newTickCmd(opts *rootOptions) *cobra.Command {
	var atStr string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run a single tick and exit non-zero unless it ends Ok",
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now().UTC().Truncate(time.Minute)
			if atStr != "" {
				t, err := parseTime(atStr)
				if err != nil {
					return fmt.Errorf("bad --at: %w", err)
				}
				at = t
			}
			cfg, closeLog, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := app.NewApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()

			outcome, err := a.Tick(cmd.Context(), at)
			fmt.Fprintf(cmd.OutOrStdout(), "tick %s: %s\n", at.Format(time.RFC3339), outcome)
			if outcome != agent.OutcomeOK {
				return fmt.Errorf("tick ended %s: %v", outcome, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&atStr, "at", "", "tick instant (RFC3339), default now truncated to the minute")
	return cmd
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		fromStr string
		toStr   string
		step    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay indicator history through the paper exchange",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fromStr == "" || toStr == "" {
				return fmt.Errorf("--from and --to are required")
			}
			from, err := parseTime(fromStr)
			if err != nil {
				return fmt.Errorf("bad --from: %w", err)
			}
			to, err := parseTime(toStr)
			if err != nil {
				return fmt.Errorf("bad --to: %w", err)
			}
			if !from.Before(to) {
				return fmt.Errorf("--from must be before --to")
			}
			cfg, closeLog, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := app.NewApp(cmd.Context(), cfg, app.ForReplay())
			if err != nil {
				return fmt.Errorf("初始化回放失败: %w", err)
			}
			defer a.Close()

			report, err := a.Replay(cmd.Context(), from, to, step)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "replay %s -> %s\n", report.From.Format(time.RFC3339), report.To.Format(time.RFC3339))
			fmt.Fprintf(out, "  ticks:    %d (ok=%d retry=%d fail=%d)\n", report.Ticks,
				report.Outcomes[agent.OutcomeOK], report.Outcomes[agent.OutcomeRetry], report.Outcomes[agent.OutcomeFail])
			fmt.Fprintf(out, "  fills:    %d\n", report.Fills)
			fmt.Fprintf(out, "  messages: %d\n", report.Messages)
			return err
		},
	}
	cmd.Flags().StringVar(&fromStr, "from", "", "first tick (RFC3339)")
	cmd.Flags().StringVar(&toStr, "to", "", "last tick (RFC3339)")
	cmd.Flags().DurationVar(&step, "step", time.Minute, "tick step")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := brcfg.Load(opts.configPath)
			if err != nil {
				return err
			}
			redacted := *cfg
			redacted.Cockpit.Authorization = mask(redacted.Cockpit.Authorization)
			redacted.Exchange.Bridge.Token = mask(redacted.Exchange.Bridge.Token)
			redacted.Notify.Telegram.BotToken = mask(redacted.Notify.Telegram.BotToken)
			doc, err := configDocument(&redacted)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(doc)
		},
	}
}

// configDocument 把配置转成以 toml tag 为键的嵌套 map，与配置文件的键名一致。
func configDocument(cfg *brcfg.Config) (map[string]any, error) {
	var out map[string]any
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "toml", Result: &out})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, raw)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
