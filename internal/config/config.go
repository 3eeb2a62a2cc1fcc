package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultBroadcastInterval = 5 * time.Second
	DefaultPollInterval      = time.Minute
	DefaultMapSize           = 200
	DefaultMapStdUM          = 15.0
	DefaultAuthHeader        = "x-api-key"
	DefaultReportFooter      = "OCT Analysis Report Generator - For clinical use only. " +
		"Interpret results in conjunction with clinical findings."

	// MaxMapSize bounds the simulated thickness map edge length.
	MaxMapSize = 1000
)

// Config is the full octreport configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Data         DataConfig         `yaml:"data"`
	ThicknessMap ThicknessMapConfig `yaml:"thickness_map"`
	Report       ReportConfig       `yaml:"report"`
	Alerts       AlertsConfig       `yaml:"alerts"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, the WebSocket hub and /metrics.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves the gRPC health service. 0 disables it.
	GRPCPort int `yaml:"grpc_port"`

	// BroadcastInterval is how often the WebSocket hub pushes the snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth configures API key enforcement for HTTP and gRPC clients.
	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig controls client authentication on the server side.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) carrying the key.
	// Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default.
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return DefaultAuthHeader
}

// DataConfig describes where analyses come from.
type DataConfig struct {
	// Normative is the default normative table path for every source.
	Normative string `yaml:"normative"`

	// Watch enables fsnotify reloads of local files.
	Watch bool `yaml:"watch"`

	// PollInterval controls how often remote sources are re-fetched.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Sources is the list of datasets to analyse.
	Sources []Source `yaml:"sources"`
}

// Source is one dataset: a layer export plus optional scan export and
// normative override.
type Source struct {
	// ID is a unique, human-readable identifier, used in API paths.
	ID string `yaml:"id"`

	// Layers is a file path or an http(s) URL of the layer export.
	Layers string `yaml:"layers"`

	// Scans is an optional scan export file path.
	Scans string `yaml:"scans"`

	// Normative overrides DataConfig.Normative for this source.
	Normative string `yaml:"normative"`

	// Auth configures how remote layer exports are fetched.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options for remote exports.
	TLS TLSConfig `yaml:"tls"`
}

// IsRemote reports whether the layer export is fetched over HTTP.
func (s Source) IsRemote() bool {
	return strings.HasPrefix(s.Layers, "http://") || strings.HasPrefix(s.Layers, "https://")
}

// AuthConfig specifies the authentication mode for a remote source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header and KeyEnv are used when Mode == "apikey".
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string { return envOrEmpty(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return envOrEmpty(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return envOrEmpty(a.PasswordEnv) }

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ThicknessMapConfig shapes the simulated thickness map.
type ThicknessMapConfig struct {
	Size  int     `yaml:"size"`
	StdUM float64 `yaml:"std_um"`
	// Seed fixes the generator; 0 draws a fresh map per request.
	Seed uint64 `yaml:"seed"`
}

// ReportConfig holds PDF report settings.
type ReportConfig struct {
	Footer string `yaml:"footer"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "z_score < -2", "status == Thinned",
	// "quality_score < 0.6", "analysis_failed == 1".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string { return envOrEmpty(w.URLEnv) }

func envOrEmpty(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation. Relative data
// paths are resolved against the directory holding the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// NormativeFor returns the normative table path that applies to src.
func (c *Config) NormativeFor(src Source) string {
	if src.Normative != "" {
		return src.Normative
	}
	return c.Data.Normative
}

// Source returns the source with the given id.
func (c *Config) Source(id string) (Source, bool) {
	for _, s := range c.Data.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			GRPCPort:          DefaultGRPCPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Data: DataConfig{
			Watch:        true,
			PollInterval: DefaultPollInterval,
		},
		ThicknessMap: ThicknessMapConfig{
			Size:  DefaultMapSize,
			StdUM: DefaultMapStdUM,
		},
		Report: ReportConfig{
			Footer: DefaultReportFooter,
		},
	}
}

// validate checks structural constraints and reports all of them together.
func validate(cfg *Config) error {
	var merr *multierror.Error
	add := func(format string, args ...any) {
		merr = multierror.Append(merr, fmt.Errorf(format, args...))
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		add("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		add("server.grpc_port %d is out of range [0, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		add("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		add("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	if cfg.Data.PollInterval <= 0 {
		add("data.poll_interval must be positive")
	}
	if len(cfg.Data.Sources) == 0 {
		add("data.sources: at least one source is required")
	}
	seen := make(map[string]bool, len(cfg.Data.Sources))
	for i, src := range cfg.Data.Sources {
		if src.ID == "" {
			add("data.sources[%d]: id is required", i)
		} else if seen[src.ID] {
			add("data.sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Layers == "" {
			add("data.sources[%d] %q: layers is required", i, src.ID)
		}
		if src.Normative == "" && cfg.Data.Normative == "" {
			add("data.sources[%d] %q: no normative table (set data.normative or sources[].normative)", i, src.ID)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			add("data.sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
		if src.Auth.Mode != "" && src.Auth.Mode != "none" && !src.IsRemote() {
			add("data.sources[%d] %q: auth mode %q requires an http(s) layers URL", i, src.ID, src.Auth.Mode)
		}
	}

	if cfg.ThicknessMap.Size < 1 || cfg.ThicknessMap.Size > MaxMapSize {
		add("thickness_map.size %d is out of range [1, %d]", cfg.ThicknessMap.Size, MaxMapSize)
	}
	if cfg.ThicknessMap.StdUM <= 0 {
		add("thickness_map.std_um must be positive")
	}

	ruleNames := make(map[string]int, len(cfg.Alerts.Rules))
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			add("alerts.rules[%d]: name is required", i)
		} else if prev, dup := ruleNames[r.Name]; dup {
			add("alerts.rules[%d] %q: duplicate name, also used by alerts.rules[%d]", i, r.Name, prev)
		} else {
			ruleNames[r.Name] = i
		}
		if _, err := ParseCondition(r.Condition); err != nil {
			add("alerts.rules[%d] %q: %v", i, r.Name, err)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			add("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			add("alerts.webhooks[%d]: unknown type %q: want slack|teams|http", i, w.Type)
		}
	}

	return merr.ErrorOrNil()
}

// resolvePaths makes relative local paths relative to base.
func (c *Config) resolvePaths(base string) {
	c.Data.Normative = resolve(base, c.Data.Normative)
	for i := range c.Data.Sources {
		s := &c.Data.Sources[i]
		if !s.IsRemote() {
			s.Layers = resolve(base, s.Layers)
		}
		s.Scans = resolve(base, s.Scans)
		s.Normative = resolve(base, s.Normative)
		s.Auth.CertFile = resolve(base, s.Auth.CertFile)
		s.Auth.KeyFile = resolve(base, s.Auth.KeyFile)
		s.Auth.CAFile = resolve(base, s.Auth.CAFile)
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
