package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued per match and type",
		},
		[]string{"match_id", "type"},
	)

	ticketsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_expired_total",
			Help: "Tickets expired by the sweeper per match",
		},
		[]string{"match_id"},
	)

	capacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_rejections_total",
			Help: "Purchases rejected because a match class sold out",
		},
		[]string{"match_id"},
	)

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Payment gateway operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_scans_total",
			Help: "Admission scans by result",
		},
		[]string{"result"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_scan_duration_seconds",
			Help:    "Duration of admission scans",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

func TrackTicketIssued(matchID, ticketType string) {
	ticketsIssued.WithLabelValues(matchID, ticketType).Inc()
}

func TrackTicketsExpired(matchID string, n int) {
	ticketsExpired.WithLabelValues(matchID).Add(float64(n))
}

func TrackCapacityRejection(matchID string) {
	capacityRejections.WithLabelValues(matchID).Inc()
}

func TrackPurchase(outcome string) {
	purchases.WithLabelValues(outcome).Inc()
}

func TrackPayment(operation, outcome string) {
	payments.WithLabelValues(operation, outcome).Inc()
}

func TrackScan(result string, duration time.Duration) {
	scans.WithLabelValues(result).Inc()
	scanDuration.Observe(duration.Seconds())
}

// Monitor samples runtime gauges in the background until ctx is cancelled.
type Monitor struct{}

func NewMonitor(ctx context.Context) *Monitor {
	monitor := &Monitor{}

	go monitor.collectMetrics(ctx)

	return monitor
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			goroutineCount.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}
