package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	outboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearway_outbox_events_published_total",
		Help: "Outbox events successfully delivered to the message log",
	})

	outboxFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearway_outbox_events_failed_total",
		Help: "Outbox delivery attempts that failed and will be retried",
	})

	outboxDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clearway_outbox_events_dead_lettered_total",
		Help: "Outbox events past max retries awaiting operator action",
	})

	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clearway_outbox_backlog",
		Help: "Unpublished outbox rows observed on the last dispatcher poll",
	})

	consumerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearway_consumer_events_total",
		Help: "Consumed events by consumer group and processing result",
	}, []string{"consumer_group", "result"})

	paymentsAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearway_payments_admitted_total",
		Help: "Admission outcomes by kind (created, duplicate)",
	}, []string{"outcome"})
)

// RecordOutboxPublished counts a successful delivery.
func RecordOutboxPublished() { outboxPublished.Inc() }

// RecordOutboxFailed counts a failed delivery attempt.
func RecordOutboxFailed() { outboxFailed.Inc() }

// RecordOutboxDeadLettered counts an event parked past max retries.
func RecordOutboxDeadLettered() { outboxDeadLettered.Inc() }

// SetOutboxBacklog records the pending backlog size.
func SetOutboxBacklog(n int) { outboxBacklog.Set(float64(n)) }

// RecordConsumerEvent counts a consumed event outcome
// (processed, duplicate, skipped, failed).
func RecordConsumerEvent(group, result string) {
	consumerEvents.WithLabelValues(group, result).Inc()
}

// RecordAdmission counts an admission outcome (created, duplicate).
func RecordAdmission(outcome string) {
	paymentsAdmitted.WithLabelValues(outcome).Inc()
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
