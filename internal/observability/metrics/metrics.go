package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the voice and SMS webhook
// flows. All methods are safe on a nil receiver so handlers can run without
// metrics in tests.
type WebhookMetrics struct {
	voiceWebhookTotal *prometheus.CounterVec
	toolCallsTotal    *prometheus.CounterVec
	smsInboundTotal   *prometheus.CounterVec
	leadsCreatedTotal *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		voiceWebhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalai",
			Subsystem: "voice",
			Name:      "webhook_total",
			Help:      "Total voice platform webhooks by message type and outcome",
		}, []string{"message_type", "status"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalai",
			Subsystem: "voice",
			Name:      "tool_calls_total",
			Help:      "Total assistant tool invocations by tool and outcome",
		}, []string{"tool", "status"}),
		smsInboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalai",
			Subsystem: "sms",
			Name:      "inbound_total",
			Help:      "Total inbound SMS webhooks by detected keyword",
		}, []string{"keyword", "status"}),
		leadsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalai",
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Total auto-generated leads by source",
		}, []string{"source"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dentalai",
			Subsystem: "voice",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of voice webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"message_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.voiceWebhookTotal, m.toolCallsTotal, m.smsInboundTotal, m.leadsCreatedTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveVoiceWebhook(messageType, status string) {
	if m == nil {
		return
	}
	m.voiceWebhookTotal.WithLabelValues(messageType, status).Inc()
}

func (m *WebhookMetrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *WebhookMetrics) ObserveSMSInbound(keyword, status string) {
	if m == nil {
		return
	}
	m.smsInboundTotal.WithLabelValues(keyword, status).Inc()
}

func (m *WebhookMetrics) ObserveLeadCreated(source string) {
	if m == nil {
		return
	}
	m.leadsCreatedTotal.WithLabelValues(source).Inc()
}

func (m *WebhookMetrics) ObserveWebhookLatency(messageType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(messageType).Observe(seconds)
}
