package config

import (
	"slices"

	"github.com/yndnr/lobbysync-go/internal/client"
	"github.com/yndnr/lobbysync-go/internal/infra/tlsroots"
	"github.com/yndnr/lobbysync-go/internal/lobby"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/queue"
	"github.com/yndnr/lobbysync-go/internal/refresh"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

// ClientOptions returns the REST client configuration.
func (c *ClientConfig) ClientOptions() client.Config {
	return client.Config{
		BaseURL:          c.Service.BaseURL,
		ConfigName:       c.Service.ConfigName,
		CredentialHeader: c.Service.CredentialHeader,
		Credential:       c.Service.Credential,
		UserAgent:        c.Service.UserAgent,
		Timeout:          c.Service.RequestTimeout,
	}
}

// PushTransport returns the websocket transport configuration.
func (c *ClientConfig) PushTransport() push.WebSocketConfig {
	return push.WebSocketConfig{
		URL:              c.Push.URL,
		CredentialHeader: c.Service.CredentialHeader,
		Credential:       c.Service.Credential,
		UserAgent:        c.Service.UserAgent,
		PingInterval:     c.Push.PingInterval,
	}
}

// SessionOptions returns the session coordinator configuration.
func (c *ClientConfig) SessionOptions() lobby.Config {
	cfg := lobby.DefaultConfig()
	cfg.DedupWindow = c.Dedup.Window
	cfg.TrackedFields = slices.Clone(c.Reconcile.TrackedFields)
	cfg.Queue = queue.Config{
		Timeout: c.Queue.Timeout,
		Pause:   c.Queue.Pause,
		Grace:   queue.DefaultGrace,
	}
	cfg.Retry = queue.RetryPolicy{
		BaseDelay:   c.Queue.Retry.BaseDelay,
		MaxDelay:    c.Queue.Retry.MaxDelay,
		MaxAttempts: c.Queue.Retry.MaxAttempts,
	}
	cfg.Refresh = refresh.Config{
		Interval:       c.Refresh.Interval,
		LaunchInterval: c.Refresh.LaunchInterval,
		LaunchAttempts: c.Refresh.LaunchAttempts,
	}
	cfg.Push = push.Config{
		ReconnectBase: c.Push.ReconnectBase,
		ReconnectMax:  c.Push.ReconnectMax,
	}
	cfg.RestoreOnStart = c.Session.RestoreOnStart
	cfg.EventBuffer = c.Session.EventBuffer
	return cfg
}

// TLS returns the TLS file settings shared by the REST client and push.
func (c *ClientConfig) TLS() tlsroots.Config {
	return tlsroots.Config{
		CAFile:   c.Service.CAFile,
		CertFile: c.Service.ClientCertFile,
		KeyFile:  c.Service.ClientKeyFile,
	}
}

// LoggerOptions returns the logger configuration.
func (c *ClientConfig) LoggerOptions() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}
