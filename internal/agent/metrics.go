package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotalCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walsync",
		Subsystem: "tracker",
		Name:      "refresh_total",
		Help:      "The number of WAL header refreshes performed",
	})

	refreshErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walsync",
		Subsystem: "tracker",
		Name:      "refresh_error_total",
		Help:      "The number of WAL header refreshes that failed",
	})

	walFrameGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "walsync",
		Subsystem: "wal",
		Name:      "frames",
		Help:      "The refreshed WAL frame count",
	})

	durableFrameGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "walsync",
		Subsystem: "wal",
		Name:      "durable_frame",
		Help:      "The last frame confirmed pushed to the remote store",
	})

	pushTotalCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walsync",
		Subsystem: "push",
		Name:      "total",
		Help:      "The number of successful frame pushes",
	})

	pushErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walsync",
		Subsystem: "push",
		Name:      "error_total",
		Help:      "The number of failed frame pushes",
	})
)
