// Package metrics exposes queue depth, worker counts and admin API traffic
// in Prometheus format.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const namespace = "queuectl"

type StatsSource interface {
	Stats(ctx context.Context) (map[config.JobState]int, error)
}

type WorkerCounter interface {
	ActiveCount(ctx context.Context) (int, error)
}

// QueueCollector reads the store on every scrape, so the numbers reflect
// all processes sharing the data directory.
type QueueCollector struct {
	jobs    StatsSource
	workers WorkerCounter
	timeout time.Duration
	log     logrus.FieldLogger

	jobsDesc    *prometheus.Desc
	workersDesc *prometheus.Desc
	upDesc      *prometheus.Desc
}

func NewQueueCollector(jobs StatsSource, workers WorkerCounter, timeout time.Duration, log logrus.FieldLogger) *QueueCollector {
	return &QueueCollector{
		jobs:    jobs,
		workers: workers,
		timeout: timeout,
		log:     log,
		jobsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs"),
			"Number of jobs by state.",
			[]string{"state"}, nil,
		),
		workersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_workers"),
			"Number of workers with a recent heartbeat.",
			nil, nil,
		),
		upDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "up"),
			"Whether the last scrape could read the store.",
			nil, nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsDesc
	ch <- c.workersDesc
	ch <- c.upDesc
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	up := 1.0

	counts, err := c.jobs.Stats(ctx)
	if err != nil {
		c.log.WithError(err).Warn("metrics: reading job stats failed")
		up = 0
	} else {
		for _, st := range config.AllJobStates {
			ch <- prometheus.MustNewConstMetric(c.jobsDesc, prometheus.GaugeValue, float64(counts[st]), string(st))
		}
	}

	active, err := c.workers.ActiveCount(ctx)
	if err != nil {
		c.log.WithError(err).Warn("metrics: reading worker registry failed")
		up = 0
	} else {
		ch <- prometheus.MustNewConstMetric(c.workersDesc, prometheus.GaugeValue, float64(active))
	}

	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)
}

// HTTPMetrics counts admin API requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Admin API requests by route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.duration.Describe(ch)
}

func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.duration.Collect(ch)
}

func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// NewRegistry returns a registry holding the given collectors plus the
// standard Go runtime and process collectors.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(cs...)
	return reg
}
