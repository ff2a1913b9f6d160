package acceptor

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/ibs-acceptor/flags"
	"github.com/ethereum-optimism/infra/ibs-acceptor/service"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
	"github.com/ethereum-optimism/infra/ibs-acceptor/testcases"
	"github.com/ethereum-optimism/infra/ibs-acceptor/token"
)

// Config holds the application configuration
type Config struct {
	ProductsURL       string
	BillingURL        string
	DatabaseURL       string
	RequestTimeout    time.Duration // Per API call, and per store connection attempt
	RequestsPerSecond float64       // 0 means unlimited
	ResultsTable      bool          // Render the results table to Stderr
	ReportDir         string        // Where report files go; empty disables them
	FailUnder         int           // Minimum points for exit code 0; 0 disables the check
	PushgatewayURL    string
	Token             token.Context
	Service           service.Config
	Log               log.Logger

	// Store overrides the PostgreSQL dialer built from DatabaseURL.
	Store store.Dialer
	// Stdout receives the scorecard JSON; Stderr the results table. They default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Duration is a time.Duration read from its string form, e.g. "5s", in TOML and YAML files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// FileConfig is the optional --config file. Zero values leave the flag value in place.
type FileConfig struct {
	ProductsAPIURL    string   `toml:"products_api_url" yaml:"products_api_url"`
	BillingAPIURL     string   `toml:"billing_api_url" yaml:"billing_api_url"`
	DatabaseURL       string   `toml:"database_url" yaml:"database_url"`
	RequestTimeout    Duration `toml:"request_timeout" yaml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second" yaml:"requests_per_second"`
	ReportDir         string   `toml:"report_dir" yaml:"report_dir"`
	FailUnder         int      `toml:"fail_under" yaml:"fail_under"`
	PushgatewayURL    string   `toml:"pushgateway_url" yaml:"pushgateway_url"`
}

// LoadFile reads a config file, choosing TOML or YAML by its extension. Unknown keys are rejected.
func LoadFile(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in config %s: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config %s: %w", path, err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q, expected .toml, .yaml or .yml", ext)
	}
	return fc, nil
}

// NewConfig creates a new Config from cli context, the optional config file and the token argument
func NewConfig(ctx *cli.Context, log log.Logger, tokenArg string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if tokenArg == "" {
		return nil, errors.New("token argument is required, e.g. '{token:abc123}'")
	}
	tok, err := token.Parse(tokenArg)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProductsURL:       ctx.String(flags.ProductsAPIURL.Name),
		BillingURL:        ctx.String(flags.BillingAPIURL.Name),
		DatabaseURL:       ctx.String(flags.DatabaseURL.Name),
		RequestTimeout:    ctx.Duration(flags.RequestTimeout.Name),
		RequestsPerSecond: ctx.Float64(flags.RequestsPerSecond.Name),
		ResultsTable:      ctx.Bool(flags.ResultsTable.Name),
		ReportDir:         ctx.String(flags.ReportDir.Name),
		FailUnder:         ctx.Int(flags.FailUnder.Name),
		PushgatewayURL:    ctx.String(flags.PushgatewayURL.Name),
		Token:             tok,
		Service: service.Config{
			StatusEnabled: ctx.Bool(flags.StatusEnabled.Name),
			StatusAddr:    ctx.String(flags.StatusAddr.Name),
			StatusPort:    ctx.Int(flags.StatusPort.Name),
			Metrics:       opmetrics.ReadCLIConfig(ctx),
		},
		Log: log,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.merge(ctx, fc)
		log.Debug("Loaded config file", "path", path)
	}

	if cfg.ReportDir != "" {
		abs, err := filepath.Abs(cfg.ReportDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for report directory '%s': %w", cfg.ReportDir, err)
		}
		cfg.ReportDir = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies file values over flag values that were not set explicitly.
func (c *Config) merge(ctx *cli.Context, fc *FileConfig) {
	if fc.ProductsAPIURL != "" && !ctx.IsSet(flags.ProductsAPIURL.Name) {
		c.ProductsURL = fc.ProductsAPIURL
	}
	if fc.BillingAPIURL != "" && !ctx.IsSet(flags.BillingAPIURL.Name) {
		c.BillingURL = fc.BillingAPIURL
	}
	if fc.DatabaseURL != "" && !ctx.IsSet(flags.DatabaseURL.Name) {
		c.DatabaseURL = fc.DatabaseURL
	}
	if fc.RequestTimeout != 0 && !ctx.IsSet(flags.RequestTimeout.Name) {
		c.RequestTimeout = time.Duration(fc.RequestTimeout)
	}
	if fc.RequestsPerSecond != 0 && !ctx.IsSet(flags.RequestsPerSecond.Name) {
		c.RequestsPerSecond = fc.RequestsPerSecond
	}
	if fc.ReportDir != "" && !ctx.IsSet(flags.ReportDir.Name) {
		c.ReportDir = fc.ReportDir
	}
	if fc.FailUnder != 0 && !ctx.IsSet(flags.FailUnder.Name) {
		c.FailUnder = fc.FailUnder
	}
	if fc.PushgatewayURL != "" && !ctx.IsSet(flags.PushgatewayURL.Name) {
		c.PushgatewayURL = fc.PushgatewayURL
	}
}

func (c *Config) Validate() error {
	if err := validateHTTPURL("products api url", c.ProductsURL); err != nil {
		return err
	}
	if err := validateHTTPURL("billing api url", c.BillingURL); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return errors.New("database url is missing")
	}
	if c.RequestTimeout <= 0 {
		return errors.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RequestsPerSecond < 0 {
		return errors.Errorf("requests per second must not be negative, got %v", c.RequestsPerSecond)
	}
	if total := testcases.TotalPoints(testcases.All()); c.FailUnder < 0 || c.FailUnder > total {
		return errors.Errorf("fail-under must be between 0 and %d, got %d", total, c.FailUnder)
	}
	if c.PushgatewayURL != "" {
		if err := validateHTTPURL("pushgateway url", c.PushgatewayURL); err != nil {
			return err
		}
	}
	if c.Service.StatusEnabled && (c.Service.StatusPort < 0 || c.Service.StatusPort > 65535) {
		return errors.Errorf("status is enabled but port %d is invalid", c.Service.StatusPort)
	}
	if err := c.Service.Metrics.Check(); err != nil {
		return errors.Wrap(err, "invalid metrics config")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", name)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("invalid %s %q: expected http(s)://host[:port]", name, raw)
	}
	return nil
}
