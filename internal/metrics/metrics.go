package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salon"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls by method and status code.",
		},
		[]string{"method", "code"},
	)

	slotAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_allocations_total",
			Help:      "Same-day slot allocations by outcome (booked, conflict, no_availability).",
		},
		[]string{"outcome"},
	)

	loyaltyEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_events_total",
			Help:      "Registered visits and hair services.",
		},
		[]string{"kind"},
	)

	rewards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_total",
			Help:      "Rewards unlocked and redeemed by kind.",
		},
		[]string{"reward", "action"},
	)

	workerTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Background tasks by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	botUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_update_duration_seconds",
			Help:      "Time spent handling one Telegram update.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, slotAllocations, loyaltyEvents, rewards, workerTasks, botUpdateDuration)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func IncSlotAllocation(outcome string) {
	slotAllocations.WithLabelValues(outcome).Inc()
}

func IncLoyaltyEvent(kind string) {
	loyaltyEvents.WithLabelValues(kind).Inc()
}

func IncReward(reward, action string) {
	rewards.WithLabelValues(reward, action).Inc()
}

func IncWorkerTask(taskType, outcome string) {
	workerTasks.WithLabelValues(taskType, outcome).Inc()
}

func ObserveBotUpdate(kind string, started time.Time) {
	botUpdateDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
