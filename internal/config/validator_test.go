package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/pkg/hooks"
)

func TestValidateProfileName(t *testing.T) {
	v := NewValidator()

	for _, name := range []string{"local", "prod-eu", "dev_2"} {
		assert.NoError(t, v.ValidateProfileName(name), name)
	}
	for _, name := range []string{"", "../up", "a b", "x/y"} {
		assert.Error(t, v.ValidateProfileName(name), name)
	}
}

func TestValidateTransport(t *testing.T) {
	t.Run("any transport without a known list", func(t *testing.T) {
		v := NewValidator()
		assert.NoError(t, v.ValidateTransport("custom"))
		assert.Error(t, v.ValidateTransport(""))
	})

	t.Run("known transports", func(t *testing.T) {
		v := NewValidator("memory", "sqlite")
		assert.NoError(t, v.ValidateTransport("sqlite"))

		err := v.ValidateTransport("redis")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory, sqlite")
	})
}

func TestValidateDSN(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateDSN("memory", ""))
	assert.NoError(t, v.ValidateDSN("sqlite", "/tmp/db.sqlite"))
	assert.Error(t, v.ValidateDSN("sqlite", ""))
	assert.NoError(t, v.ValidateDSN("redis", "redis://localhost:6379/0"))
	assert.NoError(t, v.ValidateDSN("redis", "rediss://cache:6380"))
	assert.Error(t, v.ValidateDSN("redis", "localhost:6379"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateAlias(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAlias("ll", "ls"))
	assert.Error(t, v.ValidateAlias("l l", "ls"))
	assert.Error(t, v.ValidateAlias("", "ls"))
	assert.Error(t, v.ValidateAlias("ll", "  "))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator("memory", "sqlite", "redis")

	t.Run("default config is valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Profiles = append(cfg.Profiles,
			ProfileConfig{Name: "bad name", Transport: "memory"},
			ProfileConfig{Name: "ftp", Transport: "ftp"},
			ProfileConfig{Name: "cache", Transport: "redis", DSN: "localhost"},
		)
		cfg.Shell.Aliases["bad alias"] = "ls"
		cfg.Shell.Hooks = HooksConfig{
			Enabled: true,
			Entries: []hooks.Hook{
				{Event: "", Script: "", Enabled: true},
				{Event: "", Enabled: false},
			},
		}
		cfg.Logging.Level = "loud"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 7)
	})
}
