package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 命令分发
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saykit_dispatch_total",
		Help: "Dispatched utterances by command type and outcome",
	}, []string{"type", "outcome"})

	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saykit_dispatch_latency_seconds",
		Help:    "Dispatch latency including fallback intent resolution",
		Buckets: prometheus.DefBuckets,
	})

	// 语音请求回合
	VoiceRequestOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saykit_voice_request_outcomes_total",
		Help: "Voice request turn outcomes by request kind",
	}, []string{"kind", "outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saykit_active_sessions",
		Help: "Conversation sessions currently open",
	})

	SequencesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saykit_audio_sequences_posted_total",
		Help: "Audio event sequences delivered per track",
	}, []string{"track"})

	IntentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saykit_intent_requests_total",
		Help: "Fallback intent resolution calls by result",
	}, []string{"result"})
)

// ObserveDispatch 记录一次分发
func ObserveDispatch(commandType, outcome string, elapsed time.Duration) {
	if commandType == "" {
		commandType = "none"
	}
	DispatchTotal.WithLabelValues(commandType, outcome).Inc()
	DispatchLatency.Observe(elapsed.Seconds())
}

// ObserveVoiceRequest 记录一次回合结果
func ObserveVoiceRequest(kind, outcome string) {
	VoiceRequestOutcomes.WithLabelValues(kind, outcome).Inc()
}

// ObservePosted 记录一次音轨投递
func ObservePosted(track string) {
	SequencesPosted.WithLabelValues(track).Inc()
}

// ObserveIntent 记录一次兜底意图识别调用
func ObserveIntent(result string) {
	IntentRequests.WithLabelValues(result).Inc()
}
