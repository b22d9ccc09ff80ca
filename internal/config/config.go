package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"MarketPulse/internal/model"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned when neither login path of the broker can be used.
var ErrMissingCredentials = errors.New("broker credentials: MPIN or password and TOTP secret required")

const DefaultBaseURL = "https://apiconnect.angelone.in"

// Telegram holds the chat delivery settings. Both fields are optional.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Enabled reports whether messages can be delivered at all.
func (t Telegram) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Broker holds SmartAPI account credentials.
type Broker struct {
	BaseURL    string `yaml:"base_url"`
	ClientID   string `yaml:"client_id"`
	APIKey     string `yaml:"api_key"`
	MPIN       string `yaml:"mpin"`
	Password   string `yaml:"password"`
	TOTPSecret string `yaml:"totp_secret"`
}

func (b Broker) HasMPIN() bool { return b.MPIN != "" }

func (b Broker) HasPasswordTOTP() bool { return b.Password != "" && b.TOTPSecret != "" }

// Instrument identifies the series polled every cycle.
type Instrument struct {
	Exchange    string         `yaml:"exchange"`
	SymbolToken string         `yaml:"symbol_token"`
	Interval    model.Interval `yaml:"interval"`
	Label       string         `yaml:"label"`
}

// Poll controls the loop cadence and the query window.
type Poll struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Cron            string `yaml:"cron"`
	LookbackRaw     string `yaml:"lookback"`
	Window          int    `yaml:"window"`

	Lookback time.Duration `yaml:"-"`
}

// Interval returns the sleep between the end of one cycle and the start of the next.
func (p Poll) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Config holds all application configuration.
type Config struct {
	Telegram   Telegram   `yaml:"telegram"`
	Broker     Broker     `yaml:"broker"`
	Instrument Instrument `yaml:"instrument"`
	Poll       Poll       `yaml:"poll"`
	Signal     struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"signal"`
	Chart struct {
		Dir string `yaml:"dir"`
	} `yaml:"chart"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file or .env is not an error.
func Load(path string) (*Config, error) {
	cfg := numericDefaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Poll.LookbackRaw != "" {
		d, err := str2duration.ParseDuration(cfg.Poll.LookbackRaw)
		if err != nil {
			return nil, fmt.Errorf("parse poll.lookback: %w", err)
		}
		cfg.Poll.Lookback = d
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		key string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"SMARTAPI_BASE_URL", &c.Broker.BaseURL},
		{"SMARTAPI_CLIENT_ID", &c.Broker.ClientID},
		{"SMARTAPI_API_KEY", &c.Broker.APIKey},
		{"SMARTAPI_MPIN", &c.Broker.MPIN},
		{"SMARTAPI_PASSWORD", &c.Broker.Password},
		{"SMARTAPI_TOTP_SECRET", &c.Broker.TOTPSecret},
		{"INSTRUMENT_EXCHANGE", &c.Instrument.Exchange},
		{"INSTRUMENT_TOKEN", &c.Instrument.SymbolToken},
		{"INSTRUMENT_LABEL", &c.Instrument.Label},
		{"POLL_CRON", &c.Poll.Cron},
		{"LOOKBACK", &c.Poll.LookbackRaw},
		{"CHART_DIR", &c.Chart.Dir},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"METRICS_ADDR", &c.Metrics.Addr},
		{"LOG_LEVEL", &c.Log.Level},
		{"HTTPS_PROXY", &c.Proxy},
	}
	for _, s := range overrides {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("INSTRUMENT_INTERVAL"); v != "" {
		c.Instrument.Interval = model.Interval(v)
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse POLL_INTERVAL: %w", err)
		}
		c.Poll.IntervalSeconds = n
	}
	if v := os.Getenv("POLL_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse POLL_WINDOW: %w", err)
		}
		c.Poll.Window = n
	}
	if v := os.Getenv("SIGNAL_CONF_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse SIGNAL_CONF_THRESHOLD: %w", err)
		}
		c.Signal.ConfidenceThreshold = f
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	return nil
}

// numericDefaults seeds the fields where zero is a meaningful value, so that an
// explicit 0 from the file or environment survives and reaches Validate.
func numericDefaults() *Config {
	cfg := &Config{}
	cfg.Poll.IntervalSeconds = 300
	cfg.Poll.Window = 50
	cfg.Signal.ConfidenceThreshold = 70.0
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = DefaultBaseURL
	}
	if c.Instrument.Exchange == "" {
		c.Instrument.Exchange = "NSE"
	}
	if c.Instrument.SymbolToken == "" {
		c.Instrument.SymbolToken = "99926000"
	}
	if c.Instrument.Interval == "" {
		c.Instrument.Interval = model.FiveMinute
	}
	if c.Instrument.Label == "" {
		c.Instrument.Label = "NIFTY"
	}
	if c.Poll.LookbackRaw == "" {
		c.Poll.LookbackRaw = "5d"
	}
	if c.Chart.Dir == "" {
		c.Chart.Dir = os.TempDir()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Broker.ClientID == "" {
		result = multierror.Append(result, errors.New("broker.client_id is required"))
	}
	if c.Broker.APIKey == "" {
		result = multierror.Append(result, errors.New("broker.api_key is required"))
	}
	if !c.Broker.HasMPIN() && !c.Broker.HasPasswordTOTP() {
		result = multierror.Append(result, ErrMissingCredentials)
	}
	if c.Poll.IntervalSeconds <= 0 {
		result = multierror.Append(result, errors.New("poll.interval_seconds must be positive"))
	}
	if c.Poll.Window <= 0 {
		result = multierror.Append(result, errors.New("poll.window must be positive"))
	}
	if c.Poll.Lookback <= 0 {
		result = multierror.Append(result, errors.New("poll.lookback must be positive"))
	}
	if c.Poll.Cron != "" {
		sched, err := cron.ParseStandard(c.Poll.Cron)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("poll.cron: %w", err))
		case sched.Next(time.Now()).IsZero():
			result = multierror.Append(result, fmt.Errorf("poll.cron: %q never fires", c.Poll.Cron))
		}
	}
	if _, err := model.ParseInterval(string(c.Instrument.Interval)); err != nil {
		result = multierror.Append(result, fmt.Errorf("instrument.interval: %w", err))
	}

	return result.ErrorOrNil()
}
