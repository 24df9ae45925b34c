package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 分流指标
	EventsProcessed prometheus.Counter
	EventsSkipped   *prometheus.CounterVec
	TriageDecisions *prometheus.CounterVec
	TriageDuration  prometheus.Histogram
	ForwardFailures prometheus.Counter
	AIFallbacks     prometheus.Counter

	// 业务指标
	AddressesCreated     prometheus.Counter
	AddressesDeactivated prometheus.Counter
	UsersRegistered      prometheus.Counter

	// 错误指标
	PanicsTotal     prometheus.Counter
	RateLimitBlocks prometheus.Counter
}

// NewMetrics 创建监控指标（注册到默认注册表）。
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrouter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailrouter_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EventsProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_inbound_events_processed_total",
				Help: "Total number of inbound events fully processed",
			},
		),

		EventsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrouter_inbound_events_skipped_total",
				Help: "Total number of inbound events skipped, by reason",
			},
			[]string{"reason"},
		),

		TriageDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrouter_triage_decisions_total",
				Help: "Total number of triage decisions, by source and action",
			},
			[]string{"source", "action"},
		),

		TriageDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailrouter_triage_duration_seconds",
				Help:    "Time spent processing one inbound event",
				Buckets: prometheus.DefBuckets,
			},
		),

		ForwardFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_forward_failures_total",
				Help: "Total number of failed outbound forwards",
			},
		),

		AIFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_ai_fallbacks_total",
				Help: "Total number of AI classification failures that fell back to forward",
			},
		),

		AddressesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_addresses_created_total",
				Help: "Total number of temp addresses created",
			},
		),

		AddressesDeactivated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_addresses_deactivated_total",
				Help: "Total number of temp addresses deactivated",
			},
		),

		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrouter_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEventProcessed 记录一次完整处理的入站事件
func (m *Metrics) RecordEventProcessed(duration time.Duration) {
	m.EventsProcessed.Inc()
	m.TriageDuration.Observe(duration.Seconds())
}

// RecordEventSkipped 记录一次被跳过的入站事件
func (m *Metrics) RecordEventSkipped(reason string) {
	m.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordDecision 记录一次分流判定
func (m *Metrics) RecordDecision(source, action string) {
	m.TriageDecisions.WithLabelValues(source, action).Inc()
}

// RecordForwardFailure 记录一次外发失败
func (m *Metrics) RecordForwardFailure() {
	m.ForwardFailures.Inc()
}

// RecordAIFallback 记录一次 AI 降级
func (m *Metrics) RecordAIFallback() {
	m.AIFallbacks.Inc()
}

// RecordAddressCreated 记录地址创建
func (m *Metrics) RecordAddressCreated() {
	m.AddressesCreated.Inc()
}

// RecordAddressDeactivated 记录地址停用
func (m *Metrics) RecordAddressDeactivated() {
	m.AddressesDeactivated.Inc()
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock() {
	m.RateLimitBlocks.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
