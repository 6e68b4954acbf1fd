package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"parasited/internal/structures"
	"strconv"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	ObserveMutationDuration(op string, duration time.Duration)
	IncStoreErrors(op string)
	IncLockdownsOpened(atCount int)
	IncAchievementsUnlocked(id string)
	IncEvolutionChanges(direction string)
	SetQueueDepth(depth int)
	SetSubscribers(count int)
}

type MetricsProvider struct {
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	persistenceDuration  prometheus.Histogram
	mutationDuration     *prometheus.HistogramVec
	storeErrors          *prometheus.CounterVec
	lockdownsOpened      *prometheus.CounterVec
	achievementsUnlocked *prometheus.CounterVec
	evolutionChanges     *prometheus.CounterVec
	queueDepth           prometheus.Gauge
	subscribers          prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveMutationDuration(op string, duration time.Duration) {
	m.mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncStoreErrors(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *MetricsProvider) IncLockdownsOpened(atCount int) {
	m.lockdownsOpened.WithLabelValues(strconv.Itoa(atCount)).Inc()
}

func (m *MetricsProvider) IncAchievementsUnlocked(id string) {
	m.achievementsUnlocked.WithLabelValues(id).Inc()
}

func (m *MetricsProvider) IncEvolutionChanges(direction string) {
	m.evolutionChanges.WithLabelValues(direction).Inc()
}

func (m *MetricsProvider) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *MetricsProvider) SetSubscribers(count int) {
	m.subscribers.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parasite_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parasite_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parasite_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parasite_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "parasite_persistence_duration_seconds",
			Help:    "Duration of file snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		mutationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parasite_mutation_duration_seconds",
			Help:    "Time spent executing a serialized state operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		storeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parasite_store_errors_total",
			Help: "Persistent store calls that failed",
		}, []string{"op"}),
		lockdownsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parasite_lockdowns_opened_total",
			Help: "Lockdowns opened by schedule rung",
		}, []string{"at"}),
		achievementsUnlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parasite_achievements_unlocked_total",
			Help: "Achievements unlocked by id",
		}, []string{"id"}),
		evolutionChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "parasite_evolution_changes_total",
			Help: "Evolution level transitions by direction",
		}, []string{"direction"}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "parasite_queue_depth",
			Help: "Operations waiting in or executing on the mutation queue",
		}),
		subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "parasite_subscribers",
			Help: "Connected change-notification subscribers",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                  {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (n *noopMetrics) IncCacheHits()                                     {}
func (n *noopMetrics) IncCacheMisses()                                   {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)        {}
func (n *noopMetrics) ObserveMutationDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncStoreErrors(_ string)                           {}
func (n *noopMetrics) IncLockdownsOpened(_ int)                          {}
func (n *noopMetrics) IncAchievementsUnlocked(_ string)                  {}
func (n *noopMetrics) IncEvolutionChanges(_ string)                      {}
func (n *noopMetrics) SetQueueDepth(_ int)                               {}
func (n *noopMetrics) SetSubscribers(_ int)                              {}
