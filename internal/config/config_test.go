package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("SALON_JWT_SECRET", "0123456789abcdef0123")

	yamlContent := `
database:
  path: "test.db"
api:
  enabled: true
  auth:
    jwt_secret: "${SALON_JWT_SECRET}"
    staff:
      - email: "ana@salon.cl"
        password_hash: "$2a$10$abc"
        role: "admin"
services:
  - name: "Corte"
    duration_minutes: 60
    price: 12000
    hair: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123", cfg.API.Auth.JWTSecret)
	assert.Equal(t, "$2a$10$abc", cfg.API.Auth.Staff[0].PasswordHash)
	assert.Equal(t, "10:00", cfg.Schedule.Open)
	assert.Equal(t, "21:00", cfg.Schedule.Close)
	assert.Equal(t, 30, cfg.Schedule.StepMinutes)
	assert.Equal(t, "America/Santiago", cfg.Schedule.Timezone)
	assert.Equal(t, "CL", cfg.Phone.DefaultRegion)
	assert.Equal(t, 12*time.Hour, cfg.API.Auth.TokenTTL)
	assert.True(t, cfg.API.HTTP.Enabled)

	svc, ok := cfg.FindService(" corte ")
	require.True(t, ok)
	assert.Equal(t, 60, svc.DurationMinutes)
	assert.True(t, svc.Hair)
	assert.Equal(t, int64(12000), svc.Price)

	_, ok = cfg.Services.Find("")
	assert.False(t, ok)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		c := Config{Database: DatabaseConfig{Path: "path"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{
			name: "api without secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.JWTSecret = "short"
			},
			wantErr: true,
		},
		{
			name: "unknown staff role",
			mutate: func(c *Config) {
				c.API.Auth.Staff = []StaffAccount{{Email: "a@b.c", PasswordHash: "x", Role: "owner"}}
			},
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name: "duplicate service",
			mutate: func(c *Config) {
				c.Services = []ServiceConfig{
					{Name: "Corte", DurationMinutes: 60},
					{Name: "corte", DurationMinutes: 30},
				}
			},
			wantErr: true,
		},
		{
			name: "zero duration service",
			mutate: func(c *Config) {
				c.Services = []ServiceConfig{{Name: "Tinte", DurationMinutes: 0}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBot(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.ValidateBot())

	cfg.Telegram.BotToken = "YOUR_BOT_TOKEN_HERE"
	assert.Error(t, cfg.ValidateBot())

	cfg.Telegram.BotToken = "123:abc"
	assert.NoError(t, cfg.ValidateBot())
}

func TestScheduleLocation(t *testing.T) {
	assert.Equal(t, time.UTC, ScheduleConfig{Timezone: "bogus/zone"}.Location())
	assert.Equal(t, "America/Santiago", ScheduleConfig{Timezone: "America/Santiago"}.Location().String())
}
