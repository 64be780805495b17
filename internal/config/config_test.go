package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blue-raster/workforce-bridge/internal/codes"
)

func loadFrom(t *testing.T, yaml string) *Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFrom(t, "")

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Source.RecordType)
	assert.Equal(t, "OBJECTID", cfg.Source.Fields.ObjectID)
	assert.Equal(t, "MaintainanceDueDate", cfg.Source.Fields.DueDate)
	assert.Equal(t, "GlobalID", cfg.Features.KeyField)
	assert.Equal(t, 60, cfg.Poll.IntervalMinutes)
	assert.Equal(t, time.Hour, cfg.Poll.Interval())
	assert.Equal(t, 17, cfg.Digest.Hour)
	assert.Equal(t, 2, cfg.Notify.UrgentPriorityFloor)
	assert.Equal(t, "America/New_York", cfg.Notify.DisplayZone)
	assert.Equal(t, "sqlite", cfg.RunLog.Driver)

	require.Len(t, cfg.Codes.Priority, 5)
	assert.Equal(t, 4, cfg.Codes.Priority[4].Code)
	assert.Equal(t, "Critical", cfg.Codes.Priority[4].Label)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg := loadFrom(t, `
source:
  url: https://example.com/FeatureServer/2
  fields:
    due_date: DueDate
poll:
  interval_minutes: 15
  lookback_minutes: 30
notify:
  urgent_priority_floor: 3
codes:
  assignment_type:
    - code: 1
      label: Watering
    - code: 2
      label: Pruning
`)

	assert.Equal(t, "https://example.com/FeatureServer/2", cfg.Source.URL)
	assert.Equal(t, "DueDate", cfg.Source.Fields.DueDate)
	assert.Equal(t, 15*time.Minute, cfg.Poll.Interval())
	assert.Equal(t, 30*time.Minute, cfg.Poll.Lookback())
	assert.Equal(t, 3, cfg.Notify.UrgentPriorityFloor)
	require.Len(t, cfg.Codes.AssignmentType, 2)
	assert.Equal(t, "Pruning", cfg.Codes.AssignmentType[1].Label)
}

func baseConfig() *Config {
	return &Config{
		Source:   SourceConfig{URL: "https://a/2"},
		Features: FeatureConfig{URL: "https://a/0"},
		Dispatch: DispatchConfig{URL: "https://b/0"},
		Codes:    CodesConfig{AssignmentType: []codes.Pair{{Code: 1, Label: "Watering"}}},
		Poll:     PollConfig{IntervalMinutes: 60, LookbackMinutes: 60},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing source url", func(c *Config) { c.Source.URL = "" }, "source.url"},
		{"missing features url", func(c *Config) { c.Features.URL = "" }, "features.url"},
		{"missing dispatch url", func(c *Config) { c.Dispatch.URL = "" }, "dispatch.url"},
		{"no assignment types", func(c *Config) { c.Codes.AssignmentType = nil }, "assignment_type"},
		{"zero interval", func(c *Config) { c.Poll.IntervalMinutes = 0 }, "interval_minutes"},
		{"lookback below interval", func(c *Config) { c.Poll.LookbackMinutes = 30 }, "lookback_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, baseConfig().Validate())
	})
}
