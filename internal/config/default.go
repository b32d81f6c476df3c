package config

import (
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/reconcile"
	"github.com/yndnr/lobbysync-go/internal/lobby"
	"github.com/yndnr/lobbysync-go/internal/push"
	"github.com/yndnr/lobbysync-go/internal/queue"
	"github.com/yndnr/lobbysync-go/internal/refresh"
)

// Default configuration values.
const (
	DefaultBaseURL          = "http://127.0.0.1:8080"
	DefaultCredentialHeader = "Authorization"
	DefaultRequestTimeout   = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default client configuration.
func Default() *ClientConfig {
	retry := queue.DefaultRetryPolicy()
	return &ClientConfig{
		Service: ServiceSection{
			BaseURL:          DefaultBaseURL,
			CredentialHeader: DefaultCredentialHeader,
			RequestTimeout:   DefaultRequestTimeout,
		},
		Push: PushSection{
			Enabled:       false,
			ReconnectBase: push.DefaultReconnectBase,
			ReconnectMax:  push.DefaultReconnectMax,
			PingInterval:  push.DefaultPingInterval,
		},
		Refresh: RefreshSection{
			Interval:       refresh.DefaultInterval,
			LaunchInterval: refresh.DefaultLaunchInterval,
			LaunchAttempts: refresh.DefaultLaunchAttempts,
		},
		Queue: QueueSection{
			Timeout: queue.DefaultTimeout,
			Pause:   queue.DefaultPause,
			Retry: RetrySection{
				BaseDelay:   retry.BaseDelay,
				MaxDelay:    retry.MaxDelay,
				MaxAttempts: retry.MaxAttempts,
			},
		},
		Dedup: DedupSection{
			Window: reconcile.DefaultDedupWindow,
		},
		Session: SessionSection{
			RestoreOnStart: true,
			EventBuffer:    lobby.DefaultEventBuffer,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
