// Package metrics 定義 Prometheus 指標
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meal_plan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	generationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_generation_attempts_total",
			Help: "Recipe generation attempts by outcome",
		},
		[]string{"outcome"},
	)
	poolPicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_slot_fills_total",
			Help: "Filled slots by source",
		},
		[]string{"source", "meal_type"},
	)
	jobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_job_transitions_total",
			Help: "Job status transitions",
		},
		[]string{"type", "status"},
	)
	slotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meal_plan_slot_duration_seconds",
			Help:    "Time to fill one slot",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meal_plan_job_queue_depth",
			Help: "Jobs waiting in the dispatch queue",
		},
	)
)

// RecordGenerationAttempt 記錄一次生成嘗試的結果
func RecordGenerationAttempt(outcome string) {
	generationAttempts.WithLabelValues(outcome).Inc()
}

// RecordSlotFill 記錄填入餐點的來源與耗時
func RecordSlotFill(source, mealType string, d time.Duration) {
	poolPicks.WithLabelValues(source, mealType).Inc()
	slotDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordJobTransition 記錄任務狀態變化
func RecordJobTransition(jobType, status string) {
	jobTransitions.WithLabelValues(jobType, status).Inc()
}

// SetQueueDepth 更新佇列長度
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// GinMiddleware 記錄 HTTP 請求數與耗時
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 端點
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
