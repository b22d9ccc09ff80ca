package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketPulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	"SMARTAPI_BASE_URL", "SMARTAPI_CLIENT_ID", "SMARTAPI_API_KEY",
	"SMARTAPI_MPIN", "SMARTAPI_PASSWORD", "SMARTAPI_TOTP_SECRET",
	"INSTRUMENT_EXCHANGE", "INSTRUMENT_TOKEN", "INSTRUMENT_INTERVAL", "INSTRUMENT_LABEL",
	"POLL_INTERVAL", "POLL_CRON", "POLL_WINDOW", "LOOKBACK", "SIGNAL_CONF_THRESHOLD",
	"CHART_DIR", "SQLITE_PATH", "METRICS_ADDR", "LOG_LEVEL", "LOG_JSON", "HTTPS_PROXY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTAPI_CLIENT_ID", "A123")
	t.Setenv("SMARTAPI_API_KEY", "key")
	t.Setenv("SMARTAPI_MPIN", "1234")

	cfg, err := Load(missingPath(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBaseURL, cfg.Broker.BaseURL)
	assert.Equal(t, "NSE", cfg.Instrument.Exchange)
	assert.Equal(t, "99926000", cfg.Instrument.SymbolToken)
	assert.Equal(t, model.FiveMinute, cfg.Instrument.Interval)
	assert.Equal(t, "NIFTY", cfg.Instrument.Label)
	assert.Equal(t, 300*time.Second, cfg.Poll.Interval())
	assert.Equal(t, 50, cfg.Poll.Window)
	assert.Equal(t, 5*24*time.Hour, cfg.Poll.Lookback)
	assert.Equal(t, 70.0, cfg.Signal.ConfidenceThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
telegram:
  bot_token: "file-token"
  chat_id: "1001"
broker:
  client_id: "FILE1"
  api_key: "file-key"
  password: "pw"
  totp_secret: "JBSWY3DPEHPK3PXP"
instrument:
  label: "BANKNIFTY"
  symbol_token: "99926009"
poll:
  interval_seconds: 60
  lookback: "36h"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("TELEGRAM_CHAT_ID", "2002")
	t.Setenv("POLL_INTERVAL", "120")
	t.Setenv("INSTRUMENT_INTERVAL", "FIFTEEN_MINUTE")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file-token", cfg.Telegram.BotToken)
	assert.Equal(t, "2002", cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Enabled())
	assert.True(t, cfg.Broker.HasPasswordTOTP())
	assert.False(t, cfg.Broker.HasMPIN())
	assert.Equal(t, "BANKNIFTY", cfg.Instrument.Label)
	assert.Equal(t, model.FifteenMinute, cfg.Instrument.Interval)
	assert.Equal(t, 120*time.Second, cfg.Poll.Interval())
	assert.Equal(t, 36*time.Hour, cfg.Poll.Lookback)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"POLL_INTERVAL", "five"},
		{"SIGNAL_CONF_THRESHOLD", "high"},
		{"LOG_JSON", "maybe"},
		{"LOOKBACK", "forever"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load(missingPath(t))
			assert.Error(t, err)
		})
	}
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Broker = Broker{ClientID: "A1", APIKey: "k", MPIN: "1111"}
	cfg.Instrument.Interval = model.FiveMinute
	cfg.Poll = Poll{IntervalSeconds: 300, Window: 50, Lookback: time.Hour}
	return cfg
}

func TestValidate_Credentials(t *testing.T) {
	tests := []struct {
		name    string
		broker  Broker
		missing bool
	}{
		{"mpin only", Broker{ClientID: "A1", APIKey: "k", MPIN: "1111"}, false},
		{"password and totp", Broker{ClientID: "A1", APIKey: "k", Password: "pw", TOTPSecret: "S"}, false},
		{"password without totp", Broker{ClientID: "A1", APIKey: "k", Password: "pw"}, true},
		{"totp without password", Broker{ClientID: "A1", APIKey: "k", TOTPSecret: "S"}, true},
		{"nothing", Broker{ClientID: "A1", APIKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Broker = tt.broker
			err := cfg.Validate()
			if tt.missing {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMissingCredentials))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.Instrument.Interval = "TWO_MINUTE"
	cfg.Poll.Cron = "not a cron"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"broker.client_id", "broker.api_key", "MPIN or password",
		"poll.interval_seconds", "poll.window", "poll.lookback", "poll.cron", "instrument.interval",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_Cron(t *testing.T) {
	cfg := validConfig()
	cfg.Poll.Cron = "*/5 9-15 * * 1-5"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CronThatNeverFires(t *testing.T) {
	cfg := validConfig()
	cfg.Poll.Cron = "0 0 30 2 *"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never fires")
}

func TestLoad_ExplicitZeroIsRejected(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"POLL_INTERVAL", "poll.interval_seconds"},
		{"POLL_WINDOW", "poll.window"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SMARTAPI_CLIENT_ID", "A123")
			t.Setenv("SMARTAPI_API_KEY", "key")
			t.Setenv("SMARTAPI_MPIN", "1234")
			t.Setenv(tt.key, "0")

			cfg, err := Load(missingPath(t))
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ExplicitZeroFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
poll:
  interval_seconds: 0
signal:
  confidence_threshold: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Poll.IntervalSeconds)
	assert.Equal(t, 0.0, cfg.Signal.ConfidenceThreshold)
	assert.Equal(t, 50, cfg.Poll.Window)
}
