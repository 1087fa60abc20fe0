// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "webactions", cfg.Logger.ServiceName)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "1920,1080", cfg.Browser.WindowSize)
	assert.Equal(t, 30*time.Second, cfg.Browser.StartupTimeout)
	assert.Equal(t, 10*time.Second, cfg.Wait.DefaultTimeout)
	assert.Equal(t, 60*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 1024, cfg.Screenshot.MaxWidth)
	assert.Equal(t, 80, cfg.Screenshot.Quality)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		badLevel := *cfg
		badLevel.Logger.Level = "verbose"
		err := badLevel.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger.level")

		badFormat := *cfg
		badFormat.Logger.Format = "xml"
		err = badFormat.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger.format must be either 'console' or 'json'")

		badWait := *cfg
		badWait.Wait.DefaultTimeout = 0
		err = badWait.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "wait.default_timeout must be a positive duration")

		badNav := *cfg
		badNav.Network.NavigationTimeout = -time.Second
		err = badNav.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "network.navigation_timeout")

		badQuality := *cfg
		badQuality.Screenshot.Quality = 101
		err = badQuality.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "screenshot.quality must be between 1 and 100")
	})

	t.Run("Browser Validation", func(t *testing.T) {
		valid := BrowserConfig{WindowSize: "1280, 720"}
		assert.NoError(t, valid.Validate())

		empty := BrowserConfig{}
		assert.NoError(t, empty.Validate(), "an empty window size leaves the browser default")

		for _, ws := range []string{"1280", "1280x720", "0,720", "1280,abc"} {
			bad := BrowserConfig{WindowSize: ws}
			assert.Error(t, bad.Validate(), "window size %q should be rejected", ws)
		}

		negativeRate := BrowserConfig{ActionsPerSecond: -1}
		err := negativeRate.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "actions_per_second must not be negative")
	})
}

func TestBrowserConfig_Window(t *testing.T) {
	b := BrowserConfig{WindowSize: " 800 ,600"}
	w, h, err := b.Window()
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  headless: true
  window_size: "1366,768"
  args: ["--lang=en-US"]
wait:
  default_timeout: 3s
network:
  headers:
    X-Test: "present"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.True(t, cfg.Browser.Headless)
		assert.Equal(t, "1366,768", cfg.Browser.WindowSize)
		assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser.Args)
		assert.Equal(t, 3*time.Second, cfg.Wait.DefaultTimeout)
		assert.Equal(t, "present", cfg.Network.Headers["x-test"], "viper lower-cases map keys")
		// A default that the YAML did not touch.
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("wait.default_timeout", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "wait.default_timeout must be a positive duration")
	})
}
