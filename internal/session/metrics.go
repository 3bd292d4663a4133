package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "started_total",
	})
	samplesInput = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "samples_total",
	}, []string{"source"})
	samplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "samples_rejected_total",
	}, []string{"source"})
	fixesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "fixes_total",
	}, []string{"source"})
	fixesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "fixes_rejected_total",
	}, []string{"source"})
	alignmentsEntered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "alignments_total",
	})
	updatesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "updates_published_total",
	})
	smoothedHeading = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "smoothed_heading_degrees",
	})
	displayedHeading = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "displayed_heading_degrees",
	})
	targetBearing = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "target_bearing_degrees",
	})
	targetDistance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "target_distance_km",
	})
	alignedState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qibla",
		Subsystem: "session",
		Name:      "aligned",
	})
)
