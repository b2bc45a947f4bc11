package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_orders_created_total",
		Help: "Total number of orders successfully created.",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_orders_deleted_total",
		Help: "Total number of orders deleted.",
	})

	StatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackdesk_status_updates_total",
		Help: "Total number of tracking updates appended, by new status.",
	},
		[]string{"status"},
	)

	TrackingNumberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_tracking_number_collisions_total",
		Help: "Generated tracking numbers that clashed with an existing order.",
	})

	TrackingLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackdesk_tracking_lookups_total",
		Help: "Public tracking lookups, by cache result.",
	},
		[]string{"cache"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackdesk_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackdesk_admin_logins_total",
		Help: "Admin login attempts, by result.",
	},
		[]string{"result"},
	)

	ScansConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackdesk_scans_consumed_total",
		Help: "Shipment scan messages consumed, by result.",
	},
		[]string{"result"},
	)

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_outbox_published_total",
		Help: "Outbox messages published to Kafka.",
	})

	OutboxFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_outbox_failed_total",
		Help: "Outbox publish attempts that failed.",
	})

	OutboxDeadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackdesk_outbox_dead_total",
		Help: "Outbox messages given up after the maximum number of attempts.",
	})

	OutboxInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trackdesk_outbox_in_flight",
		Help: "Outbox messages currently being published.",
	})
)
