package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
)

// SessionSource is the read side of the session state machine.
type SessionSource interface {
	Phase() domain.Phase
	CurrentLobbyID() string
}

// SessionCollector reports the session phase at scrape time.
type SessionCollector struct {
	src       SessionSource
	phaseDesc *prometheus.Desc
}

// NewSessionCollector creates a collector reading from src.
func NewSessionCollector(src SessionSource) *SessionCollector {
	return &SessionCollector{
		src: src,
		phaseDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "phase"),
			"1 for the phase the session is in, 0 for the others.",
			[]string{"phase"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.phaseDesc
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	current := c.src.Phase()
	for _, p := range []domain.Phase{domain.PhaseDisconnected, domain.PhaseConnected, domain.PhaseInLobby} {
		v := 0.0
		if p == current {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.phaseDesc, prometheus.GaugeValue, v, p.String())
	}
}
