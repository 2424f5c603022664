package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method", "endpoint"},
	)

	// 内容生成
	GenerationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Content generation calls by kind and status",
		},
		[]string{"kind", "status"},
	)

	ParseTierCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exercise_parse_tier_total",
			Help: "Exercise batches recovered per parsing strategy",
		},
		[]string{"tier"},
	)

	RejectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exercise_rejections_total",
			Help: "Exercise candidates rejected by validation",
		},
		[]string{"reason"},
	)

	AnswersScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answers_scored_total",
			Help: "Scored student answers",
		},
		[]string{"correct"},
	)

	HubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_hub_connections",
			Help: "Open websocket connections on the generation hub",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(GenerationRequests)
		prometheus.MustRegister(ParseTierCounter)
		prometheus.MustRegister(RejectionCounter)
		prometheus.MustRegister(AnswersScored)
		prometheus.MustRegister(HubConnections)
	})
}

// ObserveGeneration 记录一次生成调用的结果
func ObserveGeneration(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	GenerationRequests.WithLabelValues(kind, status).Inc()
}

func ObserveAnswer(correct bool) {
	AnswersScored.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
