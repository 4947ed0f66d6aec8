package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Helm cycle and behavior counters, partitioned by vehicle.

var (
	// Cycle loop
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "helm",
		Name:      "cycles_total",
		Help:      "Total helm cycles run",
	}, []string{"vehicle"})

	CycleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "avoidhelm",
		Subsystem: "helm",
		Name:      "cycle_duration_seconds",
		Help:      "Helm cycle processing duration",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"vehicle"})

	MailApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "helm",
		Name:      "mail_applied_total",
		Help:      "Total mail messages applied to the info buffer",
	}, []string{"vehicle", "kind"})

	// Behaviors
	ActiveBehaviors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "avoidhelm",
		Subsystem: "behavior",
		Name:      "active",
		Help:      "Behaviors currently instantiated",
	}, []string{"vehicle"})

	BehaviorsSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "behavior",
		Name:      "spawned_total",
		Help:      "Total behaviors spawned from templates",
	}, []string{"vehicle", "template"})

	SpawnErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "behavior",
		Name:      "spawn_errors_total",
		Help:      "Total spawn or update requests rejected",
	}, []string{"vehicle"})

	FunctionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "behavior",
		Name:      "functions_total",
		Help:      "Total objective functions emitted",
	}, []string{"vehicle"})

	WarningsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "behavior",
		Name:      "warnings_total",
		Help:      "Total behavior warnings posted",
	}, []string{"vehicle"})

	EncounterEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "encounter",
		Name:      "events_total",
		Help:      "Total encounter events by kind",
	}, []string{"vehicle", "kind"})

	Relevance = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "avoidhelm",
		Subsystem: "encounter",
		Name:      "relevance",
		Help:      "Obstacle relevance of emitted functions",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	}, []string{"vehicle"})

	// Outputs
	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avoidhelm",
		Subsystem: "output",
		Name:      "publish_errors_total",
		Help:      "Total failed publishes by sink",
	}, []string{"vehicle", "sink"})
)
