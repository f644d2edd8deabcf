package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - Track event volume
var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "griefing_events_processed_total",
			Help: "Total number of events processed by type",
		},
		[]string{"event_type"},
	)

	EventsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_events_saved_total",
		Help: "Total number of events persisted",
	})

	InstancesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "griefing_instances_created_total",
			Help: "Total number of agreement instances created by factory",
		},
		[]string{"factory_id"},
	)
)

// Economic metrics - Track value moved through agreements
var (
	StakeAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_stake_added_tokens_total",
		Help: "Tokens added to agreement stakes",
	})

	StakeRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_stake_retrieved_tokens_total",
		Help: "Tokens retrieved from agreement stakes after the deadline",
	})

	PunishmentBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_punishment_burned_tokens_total",
		Help: "Tokens burned from stakes by punishments",
	})

	GriefCostBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_cost_burned_tokens_total",
		Help: "Tokens burned from punishers as grief cost",
	})
)

// Performance metrics - Track persistence latency
var (
	RepositoryWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "griefing_repository_write_duration_seconds",
			Help:    "Time taken by repository writes, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

// State metrics - Track current system state
var (
	AuthorizedFactories = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "griefing_authorized_factories",
		Help: "Number of factories currently authorized by the registry",
	})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "griefing_event_queue_depth",
		Help: "Events emitted but not yet delivered to the services",
	})

	CountdownsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griefing_countdowns_started_total",
		Help: "Number of agreements whose countdown was started",
	})
)

// Error metrics - Track failures
var (
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "griefing_errors_total",
			Help: "Total number of errors by service",
		},
		[]string{"service"},
	)
)
