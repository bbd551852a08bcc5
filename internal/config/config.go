// Package config loads the dashboard configuration from a YAML file,
// a .env file and OPTIONBOARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPTIONBOARD_"

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	// File receives logs while the terminal UI owns stdout.
	File string `yaml:"file"`
}

type Sim struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Seed         int64         `yaml:"seed"`
	Expirations  int           `yaml:"expirations"`
	StrikeCount  int           `yaml:"strike_count"`
	StrikeStep   float64       `yaml:"strike_step"`
	BasePrice    float64       `yaml:"base_price"`
	Volatility   float64       `yaml:"volatility"`
	Account      string        `yaml:"account"`
}

type Gateway struct {
	// Mode is "ws" for a websocket gateway or "sim" for the in-process simulator.
	Mode             string        `yaml:"mode"`
	URL              string        `yaml:"url"`
	Codec            string        `yaml:"codec"`
	RateLimit        float64       `yaml:"rate_limit"`
	RateBurst        int           `yaml:"rate_burst"`
	OutboundBuffer   int           `yaml:"outbound_buffer"`
	InboundBuffer    int           `yaml:"inbound_buffer"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReconnectMin     time.Duration `yaml:"reconnect_min"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	Sim              Sim           `yaml:"sim"`
}

type Workflow struct {
	Symbol        string        `yaml:"symbol"`
	HorizonWeeks  int           `yaml:"horizon_weeks"`
	Right         string        `yaml:"right"`
	Annualization string        `yaml:"annualization"`
	Exchange      string        `yaml:"exchange"`
	Currency      string        `yaml:"currency"`
	GenericTicks  string        `yaml:"generic_ticks"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	OverdueAfter  time.Duration `yaml:"overdue_after"`
	BenignCodes   []int         `yaml:"benign_codes"`
	// MaxContracts caps the expiration x strike cross product. Zero means no cap.
	MaxContracts int `yaml:"max_contracts"`
}

type Account struct {
	Enabled bool   `yaml:"enabled"`
	Group   string `yaml:"group"`
	Tags    string `yaml:"tags"`
}

type UI struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DiagnosticsRows int           `yaml:"diagnostics_rows"`
	SortChain       bool          `yaml:"sort_chain"`
}

type HTTP struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Calendar struct {
	MIC string `yaml:"mic"`
}

// Config is the root configuration.
type Config struct {
	Log      Log      `yaml:"log"`
	Gateway  Gateway  `yaml:"gateway"`
	Workflow Workflow `yaml:"workflow"`
	Account  Account  `yaml:"account"`
	UI       UI       `yaml:"ui"`
	HTTP     HTTP     `yaml:"http"`
	Calendar Calendar `yaml:"calendar"`
}

// DefaultBenignCodes are informational gateway codes dropped without a
// diagnostic: market data farm and HMDS connection notices.
var DefaultBenignCodes = []int{2100, 2104, 2106, 2107, 2108, 2119, 2150, 2158, 10167}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: Log{Level: "info", File: "optionboard.log"},
		Gateway: Gateway{
			Mode:             "sim",
			URL:              "ws://127.0.0.1:7498/ws",
			Codec:            "json",
			RateLimit:        45,
			RateBurst:        5,
			OutboundBuffer:   1024,
			InboundBuffer:    4096,
			HandshakeTimeout: 5 * time.Second,
			ReconnectMin:     time.Second,
			ReconnectMax:     30 * time.Second,
			Sim: Sim{
				TickInterval: 250 * time.Millisecond,
				Seed:         1,
				Expirations:  8,
				StrikeCount:  11,
				StrikeStep:   5,
				BasePrice:    100,
				Volatility:   0.3,
				Account:      "DU0000001",
			},
		},
		Workflow: Workflow{
			HorizonWeeks:  4,
			Right:         "P",
			Annualization: "weekly",
			Exchange:      "SMART",
			Currency:      "USD",
			GenericTicks:  "100,101,106",
			PollInterval:  50 * time.Millisecond,
			StatsInterval: time.Minute,
			OverdueAfter:  30 * time.Second,
			BenignCodes:   append([]int(nil), DefaultBenignCodes...),
		},
		Account: Account{Enabled: true, Group: "All", Tags: "NetLiquidation,TotalCashValue,BuyingPower,AvailableFunds,ExcessLiquidity,MaintMarginReq"},
		UI: UI{
			RefreshInterval: 500 * time.Millisecond,
			DiagnosticsRows: 6,
		},
		HTTP:     HTTP{Addr: "127.0.0.1:8087"},
		Calendar: Calendar{MIC: "xnys"},
	}
}

// Load builds a Config from defaults, the YAML file at path, a .env file
// and the environment, then validates it. A missing file is only an error
// when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from OPTIONBOARD_* variables looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"LOG_LEVEL":              &c.Log.Level,
		"LOG_FILE":               &c.Log.File,
		"GATEWAY_MODE":           &c.Gateway.Mode,
		"GATEWAY_URL":            &c.Gateway.URL,
		"GATEWAY_CODEC":          &c.Gateway.Codec,
		"SYMBOL":                 &c.Workflow.Symbol,
		"RIGHT":                  &c.Workflow.Right,
		"ANNUALIZATION":          &c.Workflow.Annualization,
		"ACCOUNT_GROUP":          &c.Account.Group,
		"HTTP_ADDR":              &c.HTTP.Addr,
		"CALENDAR_MIC":           &c.Calendar.MIC,
		"WORKFLOW_GENERIC_TICKS": &c.Workflow.GenericTicks,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"LOG_PRETTY":      &c.Log.Pretty,
		"ACCOUNT_ENABLED": &c.Account.Enabled,
		"HTTP_ENABLED":    &c.HTTP.Enabled,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := get("HORIZON_WEEKS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHORIZON_WEEKS: %w", EnvPrefix, err)
		}
		c.Workflow.HorizonWeeks = n
	}
	if v, ok := get("GATEWAY_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sGATEWAY_RATE_LIMIT: %w", EnvPrefix, err)
		}
		c.Gateway.RateLimit = f
	}
	if v, ok := get("POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_INTERVAL: %w", EnvPrefix, err)
		}
		c.Workflow.PollInterval = d
	}
	return nil
}

// Validate checks the configuration for values the components cannot use.
func (c Config) Validate() error {
	var errs []error
	switch c.Gateway.Mode {
	case "ws":
		if c.Gateway.URL == "" {
			errs = append(errs, errors.New("gateway.url is required in ws mode"))
		}
	case "sim":
	default:
		errs = append(errs, fmt.Errorf("gateway.mode %q must be ws or sim", c.Gateway.Mode))
	}
	switch c.Gateway.Codec {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("gateway.codec %q must be json or msgpack", c.Gateway.Codec))
	}
	if c.Gateway.RateLimit <= 0 {
		errs = append(errs, errors.New("gateway.rate_limit must be positive"))
	}
	if c.Gateway.RateBurst < 1 {
		errs = append(errs, errors.New("gateway.rate_burst must be at least 1"))
	}
	if c.Gateway.ReconnectMin <= 0 || c.Gateway.ReconnectMax < c.Gateway.ReconnectMin {
		errs = append(errs, errors.New("gateway.reconnect_min must be positive and not above reconnect_max"))
	}
	if c.Workflow.HorizonWeeks < 1 || c.Workflow.HorizonWeeks > 10 {
		errs = append(errs, fmt.Errorf("workflow.horizon_weeks %d must be between 1 and 10", c.Workflow.HorizonWeeks))
	}
	switch strings.ToUpper(c.Workflow.Right) {
	case "P", "PUT", "C", "CALL":
	default:
		errs = append(errs, fmt.Errorf("workflow.right %q must be P or C", c.Workflow.Right))
	}
	switch c.Workflow.Annualization {
	case "weekly", "expiry":
	default:
		errs = append(errs, fmt.Errorf("workflow.annualization %q must be weekly or expiry", c.Workflow.Annualization))
	}
	if c.Workflow.PollInterval <= 0 {
		errs = append(errs, errors.New("workflow.poll_interval must be positive"))
	}
	if c.Workflow.MaxContracts < 0 {
		errs = append(errs, errors.New("workflow.max_contracts must not be negative"))
	}
	if c.Account.Enabled && (c.Account.Group == "" || c.Account.Tags == "") {
		errs = append(errs, errors.New("account.group and account.tags are required when account is enabled"))
	}
	if c.UI.RefreshInterval <= 0 {
		errs = append(errs, errors.New("ui.refresh_interval must be positive"))
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required when http is enabled"))
	}
	return errors.Join(errs...)
}

// BenignSet returns the benign codes as a set.
func (w Workflow) BenignSet() map[int]struct{} {
	out := make(map[int]struct{}, len(w.BenignCodes))
	for _, c := range w.BenignCodes {
		out[c] = struct{}{}
	}
	return out
}
