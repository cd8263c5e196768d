package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はHTTPリクエスト数・処理時間・処理中リクエスト数を計測するGinミドルウェアを返す。
// メトリクスはregに登録する。サービスごとに独立したレジストリを渡すこと。
func Metrics(service string, reg prometheus.Registerer) gin.HandlerFunc {
	labels := prometheus.Labels{"service": service}
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "http_in_flight_requests",
		Help:        "In-flight HTTP requests.",
		ConstLabels: labels,
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests.",
		ConstLabels: labels,
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "http_request_duration_seconds",
		Help:        "HTTP request latencies in seconds.",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(inFlight, requests, duration)

	return func(c *gin.Context) {
		inFlight.Inc()
		start := time.Now()
		// パニック時は500として計測してから外側のRecoveryに引き継ぐ
		defer func() {
			inFlight.Dec()

			// 未登録ルートでパスごとに系列が増えないようにルートテンプレートを使う
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			status := c.Writer.Status()
			if r := recover(); r != nil {
				status = http.StatusInternalServerError
				defer panic(r)
			}
			code := strconv.Itoa(status)
			requests.WithLabelValues(c.Request.Method, route, code).Inc()
			duration.WithLabelValues(c.Request.Method, route, code).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}

// MetricsHandler はgの内容をPrometheus形式で返すハンドラを返す。
func MetricsHandler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
