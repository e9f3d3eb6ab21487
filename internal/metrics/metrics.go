// Package metrics counts sync and fetch outcomes. A nil *Collector is valid
// and records nothing, so library packages can take metrics optionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	syncAttempts  *prometheus.CounterVec
	fetchAttempts prometheus.Counter
	fetchRetries  prometheus.Counter
	fetchOutcomes *prometheus.CounterVec
}

// New registers the client's counters with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shulebook",
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Session sync attempts by result.",
		}, []string{"result"}),
		fetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shulebook",
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Network attempts issued by resource subscriptions.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shulebook",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Attempts that were scheduled retries of a failed attempt.",
		}),
		fetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shulebook",
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Terminal subscription outcomes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(c.syncAttempts, c.fetchAttempts, c.fetchRetries, c.fetchOutcomes)
	return c
}

func (c *Collector) SyncAttempt(result string) {
	if c == nil {
		return
	}
	c.syncAttempts.WithLabelValues(result).Inc()
}

func (c *Collector) FetchAttempt(retry bool) {
	if c == nil {
		return
	}
	c.fetchAttempts.Inc()
	if retry {
		c.fetchRetries.Inc()
	}
}

func (c *Collector) FetchOutcome(result string) {
	if c == nil {
		return
	}
	c.fetchOutcomes.WithLabelValues(result).Inc()
}
