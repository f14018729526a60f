package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloneexec/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const minimalConfig = `
clone:
  id: clone-1
indicator:
  data_set: Multi-Period-Market
cockpit:
  endpoint: http://cockpit.local/graphql
`

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cloneexec.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clone-1", cfg.Clone.ID)
	assert.Equal(t, "USDT", cfg.Clone.AssetA)
	assert.Equal(t, "BTC", cfg.Clone.AssetB)
	assert.Equal(t, "01-min", cfg.Indicator.PeriodLabel)
	assert.Equal(t, "USDT_BTC.json", cfg.Indicator.FileName)
	assert.Equal(t, 10*time.Minute, cfg.Indicator.ToleranceDuration())
	assert.Equal(t, time.Minute, cfg.Indicator.PeriodDuration())
	assert.False(t, cfg.Indicator.Backtest())
	assert.Equal(t, "paper", cfg.Exchange.Kind)
	assert.True(t, cfg.Exchange.Paper.AutoFill)
	assert.True(t, cfg.Audit.DBEnabled)
	assert.Equal(t, time.Minute, cfg.Scheduler.IntervalDuration())
	_, set := cfg.Clone.Override()
	assert.False(t, set)
}

func TestLoadKeepsExplicitFalse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cloneexec.yaml", minimalConfig+`
audit:
  db_enabled: false
exchange:
  paper:
    auto_fill: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Audit.DBEnabled)
	assert.False(t, cfg.Exchange.Paper.AutoFill)
}

func TestLoadMergesIncludesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
clone:
  id: clone-1
  autopilot_override: "off"
indicator:
  data_set: Multi-Period-Market
cockpit:
  endpoint: http://cockpit.local/graphql
`)
	path := writeFile(t, dir, "main.yaml", `
include:
  - base.yaml
clone:
  id: clone-2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "clone-2", cfg.Clone.ID)
	autopilot, set := cfg.Clone.Override()
	assert.True(t, set)
	assert.False(t, autopilot)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cloneexec.yaml", `
indicator:
  data_set: Multi-Period-Market
cockpit:
  endpoint: http://cockpit.local/graphql
`)
	t.Setenv("CLONE_ID", "from-env")
	t.Setenv("COCKPIT_AUTHORIZATION", "Bearer abc")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Clone.ID)
	assert.Equal(t, "Bearer abc", cfg.Cockpit.Authorization)
}

func TestLoadRejectsMissingMandatoryParameters(t *testing.T) {
	t.Setenv("CLONE_ID", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "cloneexec.yaml", `
cockpit:
  endpoint: http://cockpit.local/graphql
indicator:
  data_set: x
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
	assert.Contains(t, err.Error(), "clone.id")

	path = writeFile(t, dir, "no_dataset.yaml", `
clone:
  id: c
cockpit:
  endpoint: http://cockpit.local/graphql
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
	assert.Contains(t, err.Error(), "indicator.data_set")
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":   time.Minute,
		"10m":  10 * time.Minute,
		"90s":  90 * time.Second,
		"1h":   time.Hour,
		"1d":   24 * time.Hour,
		"2w":   14 * 24 * time.Hour,
		" 5M ": 5 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "x", "0d", "5y"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAutopilot(t *testing.T) {
	on, ok := ParseAutopilot("on")
	assert.True(t, on)
	assert.True(t, ok)
	on, ok = ParseAutopilot("reviewed")
	assert.False(t, on)
	assert.True(t, ok)
	_, ok = ParseAutopilot("auto")
	assert.False(t, ok)
}
