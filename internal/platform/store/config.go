package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	RD RedisConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs
	ConnectRetries int
	PingTimeout    time.Duration
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
}

// CHConfig configures the optional clickhouse audit sink
type CHConfig struct {
	Enabled bool
	URL     string

	// ClientName/ClientTag identify the process in server-side logs
	ClientName string
	ClientTag  string
}
