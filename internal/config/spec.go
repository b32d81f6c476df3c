package config

import "time"

// ClientConfig is the root configuration of a lobbysync client.
type ClientConfig struct {
	Service   ServiceSection   `koanf:"service" yaml:"service"`
	Push      PushSection      `koanf:"push" yaml:"push"`
	Refresh   RefreshSection   `koanf:"refresh" yaml:"refresh"`
	Queue     QueueSection     `koanf:"queue" yaml:"queue"`
	Dedup     DedupSection     `koanf:"dedup" yaml:"dedup"`
	Reconcile ReconcileSection `koanf:"reconcile" yaml:"reconcile"`
	Session   SessionSection   `koanf:"session" yaml:"session"`
	Log       LogSection       `koanf:"log" yaml:"log"`
	Metrics   MetricsSection   `koanf:"metrics" yaml:"metrics"`
}

// ServiceSection configures the lobby REST service.
type ServiceSection struct {
	BaseURL          string        `koanf:"base_url" yaml:"base_url"`
	ConfigName       string        `koanf:"config_name" yaml:"config_name"`
	CredentialHeader string        `koanf:"credential_header" yaml:"credential_header"`
	Credential       string        `koanf:"credential" yaml:"credential"`
	RequestTimeout   time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	UserAgent        string        `koanf:"user_agent" yaml:"user_agent"`

	// CAFile is trusted in addition to the system roots. ClientCertFile and
	// ClientKeyFile enable mutual TLS and are reloaded when they change.
	CAFile         string `koanf:"ca_file" yaml:"ca_file"`
	ClientCertFile string `koanf:"client_cert_file" yaml:"client_cert_file"`
	ClientKeyFile  string `koanf:"client_key_file" yaml:"client_key_file"`
}

// PushSection configures the push channel.
type PushSection struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	// URL may contain a {lobby} placeholder.
	URL           string        `koanf:"url" yaml:"url"`
	ReconnectBase time.Duration `koanf:"reconnect_base" yaml:"reconnect_base"`
	ReconnectMax  time.Duration `koanf:"reconnect_max" yaml:"reconnect_max"`
	PingInterval  time.Duration `koanf:"ping_interval" yaml:"ping_interval"`
}

// RefreshSection configures polling.
type RefreshSection struct {
	Interval       time.Duration `koanf:"interval" yaml:"interval"`
	LaunchInterval time.Duration `koanf:"launch_interval" yaml:"launch_interval"`
	LaunchAttempts int           `koanf:"launch_attempts" yaml:"launch_attempts"`
}

// QueueSection configures the mutation queue.
type QueueSection struct {
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	Pause   time.Duration `koanf:"pause" yaml:"pause"`
	Retry   RetrySection  `koanf:"retry" yaml:"retry"`
}

// RetrySection configures retries of lobby updates.
type RetrySection struct {
	BaseDelay   time.Duration `koanf:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay" yaml:"max_delay"`
	MaxAttempts int           `koanf:"max_attempts" yaml:"max_attempts"`
}

// DedupSection configures echo suppression.
type DedupSection struct {
	Window time.Duration `koanf:"window" yaml:"window"`
}

// ReconcileSection configures the update reconciler.
type ReconcileSection struct {
	// TrackedFields defaults to reconcile.DefaultTrackedFields when empty.
	TrackedFields []string `koanf:"tracked_fields" yaml:"tracked_fields"`
}

// SessionSection configures the session coordinator.
type SessionSection struct {
	RestoreOnStart bool `koanf:"restore_on_start" yaml:"restore_on_start"`
	EventBuffer    int  `koanf:"event_buffer" yaml:"event_buffer"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// MetricsSection configures the metrics endpoint. An empty Addr disables it.
type MetricsSection struct {
	Addr string `koanf:"addr" yaml:"addr"`
}
