package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Bureau connection settings. When MockMode is enabled the engine
	// generates deterministic reports instead of calling the bureau.
	Bureau BureauConfig `json:"bureau"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// BureauConfig holds credit bureau endpoint settings.
type BureauConfig struct {
	URL           string `json:"url"`
	Username      string `json:"username"`
	Password      string `json:"-"`
	Version       string `json:"version"`
	Origin        string `json:"origin"`
	OriginVersion string `json:"originVersion"`
	Timeout       int    `json:"timeout"` // seconds

	// MockMode bypasses the live bureau and serves generated reports.
	MockMode bool `json:"mockMode"`

	// ReportTTL is how long a fetched report may be served from cache
	// before a fresh enquiry is required, in seconds.
	ReportTTL int `json:"reportTtl"`

	// EnquiryLimit caps enquiries per ID number per window. Zero
	// disables the limit.
	EnquiryLimit  int `json:"enquiryLimit"`
	EnquiryWindow int `json:"enquiryWindow"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp
	Endpoint     string `json:"endpoint"`
}

// DefaultConfig returns a development configuration: SQLite, in-process
// cache and bus, mock bureau enabled.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Bureau: BureauConfig{
			Version:       "1.0",
			Origin:        "KESTREL",
			OriginVersion: "1.0",
			Timeout:       30,
			MockMode:      true,
			ReportTTL:     86400,
			EnquiryLimit:  5,
			EnquiryWindow: 86400,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProductionConfig returns a configuration wired for PostgreSQL, Redis
// and NATS with the live bureau enabled. Credentials still come from the
// environment.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Bureau.MockMode = false
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
