// Package config centralises runtime configuration for the citro-go client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment the client operates in.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Credentials captures API credentials used for authenticated requests.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Endpoints configures the REST and websocket entry points.
type Endpoints struct {
	RESTBaseURL  string `yaml:"rest_base_url"`
	WebsocketURL string `yaml:"websocket_url"`
}

// RateLimitSettings shapes the client-side token bucket shared by all HTTP
// calls. Capacity is Baseline plus Burst.
type RateLimitSettings struct {
	Baseline float64       `yaml:"baseline"`
	Burst    int           `yaml:"burst"`
	Penalty  time.Duration `yaml:"penalty"`
}

// StreamSettings configures the websocket subscription manager.
type StreamSettings struct {
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	MaxAuthFailures      int           `yaml:"max_auth_failures"`
}

// TelemetrySettings configures the OTLP metrics exporter. An empty endpoint
// keeps telemetry on the noop provider.
type TelemetrySettings struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Settings contains the citro-go configuration tree loaded from defaults and
// overrides.
type Settings struct {
	Environment    Environment       `yaml:"environment"`
	Endpoints      Endpoints         `yaml:"endpoints"`
	Credentials    Credentials       `yaml:"credentials"`
	RecvWindow     time.Duration     `yaml:"recv_window"`
	HTTPTimeout    time.Duration     `yaml:"http_timeout"`
	MaxRetries     int               `yaml:"max_retries"`
	MarketsMaxAge  time.Duration     `yaml:"markets_max_age"`
	RateLimit      RateLimitSettings `yaml:"rate_limit"`
	Stream         StreamSettings    `yaml:"stream"`
	Telemetry      TelemetrySettings `yaml:"telemetry"`
}

// Default returns the default citro-go configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Endpoints: Endpoints{
			RESTBaseURL:  "https://api.citro.com",
			WebsocketURL: "wss://api.citro.com/public/ws/v1/",
		},
		Credentials:   Credentials{APIKey: "", APISecret: ""},
		RecvWindow:    5 * time.Second,
		HTTPTimeout:   10 * time.Second,
		MaxRetries:    3,
		MarketsMaxAge: 5 * time.Minute,
		RateLimit: RateLimitSettings{
			Baseline: 5,
			Burst:    5,
			Penalty:  time.Second,
		},
		Stream: StreamSettings{
			HandshakeTimeout:     10 * time.Second,
			PingInterval:         20 * time.Second,
			PongTimeout:          10 * time.Second,
			MaxReconnectInterval: 30 * time.Second,
			MaxAuthFailures:      3,
		},
		Telemetry: TelemetrySettings{OTLPEndpoint: "", ServiceName: "citro-go"},
	}
}

// FromEnv loads configuration values from CITRO_* environment variables,
// overriding defaults.
func FromEnv() Settings {
	cfg := Default()
	if v := strings.TrimSpace(os.Getenv("CITRO_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_REST_BASE_URL")); v != "" {
		cfg.Endpoints.RESTBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_WS_URL")); v != "" {
		cfg.Endpoints.WebsocketURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_API_KEY")); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_API_SECRET")); v != "" {
		cfg.Credentials.APISecret = v
	}
	if d, ok := envDuration("CITRO_RECV_WINDOW"); ok {
		cfg.RecvWindow = d
	}
	if d, ok := envDuration("CITRO_HTTP_TIMEOUT"); ok {
		cfg.HTTPTimeout = d
	}
	if d, ok := envDuration("CITRO_MARKETS_MAX_AGE"); ok {
		cfg.MarketsMaxAge = d
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_RATE_BASELINE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimit.Baseline = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_RATE_BURST")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RateLimit.Burst = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CITRO_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	return cfg
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// LoadFile reads a YAML settings file and applies it over the defaults.
// Zero-valued fields in the file keep their default.
func LoadFile(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	var overlay Settings
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return merge(Default(), overlay), nil
}

func merge(base, overlay Settings) Settings {
	out := base
	if overlay.Environment != "" {
		out.Environment = overlay.Environment
	}
	if overlay.Endpoints.RESTBaseURL != "" {
		out.Endpoints.RESTBaseURL = overlay.Endpoints.RESTBaseURL
	}
	if overlay.Endpoints.WebsocketURL != "" {
		out.Endpoints.WebsocketURL = overlay.Endpoints.WebsocketURL
	}
	if overlay.Credentials.APIKey != "" {
		out.Credentials.APIKey = overlay.Credentials.APIKey
	}
	if overlay.Credentials.APISecret != "" {
		out.Credentials.APISecret = overlay.Credentials.APISecret
	}
	if overlay.RecvWindow > 0 {
		out.RecvWindow = overlay.RecvWindow
	}
	if overlay.HTTPTimeout > 0 {
		out.HTTPTimeout = overlay.HTTPTimeout
	}
	if overlay.MaxRetries > 0 {
		out.MaxRetries = overlay.MaxRetries
	}
	if overlay.MarketsMaxAge > 0 {
		out.MarketsMaxAge = overlay.MarketsMaxAge
	}
	if overlay.RateLimit.Baseline > 0 {
		out.RateLimit.Baseline = overlay.RateLimit.Baseline
	}
	if overlay.RateLimit.Burst > 0 {
		out.RateLimit.Burst = overlay.RateLimit.Burst
	}
	if overlay.RateLimit.Penalty > 0 {
		out.RateLimit.Penalty = overlay.RateLimit.Penalty
	}
	if overlay.Stream.HandshakeTimeout > 0 {
		out.Stream.HandshakeTimeout = overlay.Stream.HandshakeTimeout
	}
	if overlay.Stream.PingInterval > 0 {
		out.Stream.PingInterval = overlay.Stream.PingInterval
	}
	if overlay.Stream.PongTimeout > 0 {
		out.Stream.PongTimeout = overlay.Stream.PongTimeout
	}
	if overlay.Stream.MaxReconnectInterval > 0 {
		out.Stream.MaxReconnectInterval = overlay.Stream.MaxReconnectInterval
	}
	if overlay.Stream.MaxAuthFailures > 0 {
		out.Stream.MaxAuthFailures = overlay.Stream.MaxAuthFailures
	}
	if overlay.Telemetry.OTLPEndpoint != "" {
		out.Telemetry.OTLPEndpoint = overlay.Telemetry.OTLPEndpoint
	}
	if overlay.Telemetry.ServiceName != "" {
		out.Telemetry.ServiceName = overlay.Telemetry.ServiceName
	}
	return out
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithCredentials overrides the API credentials.
func WithCredentials(key, secret string) Option {
	key = strings.TrimSpace(key)
	secret = strings.TrimSpace(secret)
	return func(s *Settings) {
		if key != "" {
			s.Credentials.APIKey = key
		}
		if secret != "" {
			s.Credentials.APISecret = secret
		}
	}
}

// WithEndpoints overrides the REST and websocket entry points.
func WithEndpoints(restBaseURL, websocketURL string) Option {
	restBaseURL = strings.TrimSpace(restBaseURL)
	websocketURL = strings.TrimSpace(websocketURL)
	return func(s *Settings) {
		if restBaseURL != "" {
			s.Endpoints.RESTBaseURL = restBaseURL
		}
		if websocketURL != "" {
			s.Endpoints.WebsocketURL = websocketURL
		}
	}
}

// WithRecvWindow overrides the clock-drift tolerance declared on signed
// requests.
func WithRecvWindow(window time.Duration) Option {
	return func(s *Settings) {
		if window > 0 {
			s.RecvWindow = window
		}
	}
}

// WithHTTPTimeout overrides the per-request HTTP timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		if timeout > 0 {
			s.HTTPTimeout = timeout
		}
	}
}

// WithRateLimit overrides the token-bucket shape.
func WithRateLimit(baseline float64, burst int) Option {
	return func(s *Settings) {
		if baseline > 0 {
			s.RateLimit.Baseline = baseline
		}
		if burst >= 0 {
			s.RateLimit.Burst = burst
		}
	}
}

// WithMarketsMaxAge overrides the staleness bound on cached market metadata.
func WithMarketsMaxAge(maxAge time.Duration) Option {
	return func(s *Settings) {
		if maxAge > 0 {
			s.MarketsMaxAge = maxAge
		}
	}
}

// WithStream overrides websocket keepalive and reconnect settings.
func WithStream(stream StreamSettings) Option {
	return func(s *Settings) {
		s.Stream = merge(*s, Settings{Stream: stream}).Stream
	}
}

// WithTelemetry configures the OTLP metrics exporter.
func WithTelemetry(endpoint, serviceName string) Option {
	endpoint = strings.TrimSpace(endpoint)
	serviceName = strings.TrimSpace(serviceName)
	return func(s *Settings) {
		if endpoint != "" {
			s.Telemetry.OTLPEndpoint = endpoint
		}
		if serviceName != "" {
			s.Telemetry.ServiceName = serviceName
		}
	}
}

// Validate checks the invariants the client construction relies on.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Endpoints.RESTBaseURL) == "" {
		return fmt.Errorf("config: rest_base_url required")
	}
	if strings.TrimSpace(s.Endpoints.WebsocketURL) == "" {
		return fmt.Errorf("config: websocket_url required")
	}
	if s.RecvWindow <= 0 {
		return fmt.Errorf("config: recv_window must be positive")
	}
	if s.RateLimit.Baseline <= 0 {
		return fmt.Errorf("config: rate_limit.baseline must be positive")
	}
	return nil
}

// Authenticated reports whether credentials are configured for private
// methods and channels.
func (s Settings) Authenticated() bool {
	return strings.TrimSpace(s.Credentials.APIKey) != "" &&
		strings.TrimSpace(s.Credentials.APISecret) != ""
}
