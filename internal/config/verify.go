package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/yndnr/lobbysync-go/internal/core/reconcile"
	"github.com/yndnr/lobbysync-go/internal/refresh"
	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ClientConfig) error {
	checks := []func(*ClientConfig) error{
		verifyService,
		verifyPush,
		verifyRefresh,
		verifyQueue,
		verifyReconcile,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyService(cfg *ClientConfig) error {
	s := cfg.Service
	if s.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("service.base_url must be an absolute http(s) URL")
	}
	if s.RequestTimeout < 0 {
		return errors.New("service.request_timeout must not be negative")
	}
	if (s.ClientCertFile == "") != (s.ClientKeyFile == "") {
		return errors.New("service.client_cert_file and service.client_key_file must be set together")
	}
	return nil
}

func verifyPush(cfg *ClientConfig) error {
	p := cfg.Push
	if !p.Enabled {
		return nil
	}
	if p.URL == "" {
		return errors.New("push.url is required when push is enabled")
	}
	u, err := url.Parse(strings.ReplaceAll(p.URL, "{lobby}", "x"))
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errors.New("push.url must be an absolute ws(s) URL")
	}
	if p.ReconnectBase <= 0 || p.ReconnectMax < p.ReconnectBase {
		return errors.New("push.reconnect_max must be at least push.reconnect_base, both positive")
	}
	return nil
}

func verifyRefresh(cfg *ClientConfig) error {
	r := cfg.Refresh
	if r.Interval < refresh.MinInterval {
		return errors.New("refresh.interval must be at least " + refresh.MinInterval.String())
	}
	if r.LaunchInterval <= 0 {
		return errors.New("refresh.launch_interval must be positive")
	}
	if r.LaunchAttempts < 1 {
		return errors.New("refresh.launch_attempts must be at least 1")
	}
	return nil
}

func verifyQueue(cfg *ClientConfig) error {
	q := cfg.Queue
	if q.Timeout <= 0 {
		return errors.New("queue.timeout must be positive")
	}
	if q.Pause < 0 {
		return errors.New("queue.pause must not be negative")
	}
	if q.Retry.MaxAttempts < 1 {
		return errors.New("queue.retry.max_attempts must be at least 1")
	}
	if q.Retry.MaxAttempts > 1 && q.Retry.BaseDelay <= 0 {
		return errors.New("queue.retry.base_delay must be positive when retries are enabled")
	}
	if cfg.Dedup.Window < 0 {
		return errors.New("dedup.window must not be negative")
	}
	return nil
}

func verifyReconcile(cfg *ClientConfig) error {
	if _, err := reconcile.FieldsByName(cfg.Reconcile.TrackedFields); err != nil {
		return errors.New("reconcile.tracked_fields: " + err.Error())
	}
	return nil
}

func verifyLog(cfg *ClientConfig) error {
	if !logger.ValidLevel(cfg.Log.Level) {
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return errors.New("log.format must be text or json")
	}
	return nil
}
