package metrics

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proxy-rotator/pkg/rotator/logger"
)

const (
	AttemptSuccess     = "success"
	AttemptFailure     = "failure"
	AttemptCircuitOpen = "circuit_open"
)

type Recorder interface {
	IncSelectTotal(strategy string, outcome string)
	ObserveSelectDuration(strategy string, duration float64)
	IncAttemptTotal(endpoint string, result string)
	ObserveAttemptDuration(endpoint string, duration float64)
	SetPoolGauge(status string, n float64)
}

type RecorderImpl struct {
	selectTotal     *prometheus.CounterVec
	selectDuration  *prometheus.SummaryVec
	attemptTotal    *prometheus.CounterVec
	attemptDuration *prometheus.SummaryVec
	poolSize        *prometheus.GaugeVec
}

func NewRecorder() *RecorderImpl {
	return &RecorderImpl{
		selectTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_select_total",
			Help: "The total number of strategy selections",
		}, []string{"strategy", "outcome"}),

		selectDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "rotator_select_duration",
			Help:       "The duration of strategy selection",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"strategy"}),

		attemptTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_attempt_total",
			Help: "The total number of request attempts by result",
		}, []string{"endpoint", "result"}),

		attemptDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "rotator_attempt_duration",
			Help:       "The duration of a single request attempt",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"endpoint"}),

		poolSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_pool_size",
			Help: "The number of endpoints in the pool by health status",
		}, []string{"status"}),
	}
}

func (m *RecorderImpl) IncSelectTotal(strategy string, outcome string) {
	m.selectTotal.WithLabelValues(strategy, outcome).Inc()
}

func (m *RecorderImpl) ObserveSelectDuration(strategy string, duration float64) {
	m.selectDuration.WithLabelValues(strategy).Observe(duration)
}

func (m *RecorderImpl) IncAttemptTotal(endpoint string, result string) {
	m.attemptTotal.WithLabelValues(endpoint, result).Inc()
}

func (m *RecorderImpl) ObserveAttemptDuration(endpoint string, duration float64) {
	m.attemptDuration.WithLabelValues(endpoint).Observe(duration)
}

func (m *RecorderImpl) SetPoolGauge(status string, n float64) {
	m.poolSize.WithLabelValues(status).Set(n)
}

// RecorderMock 测试和关闭监控时用
type RecorderMock struct{}

func (m *RecorderMock) IncSelectTotal(string, string)         {}
func (m *RecorderMock) ObserveSelectDuration(string, float64) {}
func (m *RecorderMock) IncAttemptTotal(string, string)        {}
func (m *RecorderMock) ObserveAttemptDuration(string, float64) {
}
func (m *RecorderMock) SetPoolGauge(string, float64) {}

// Serve 暴露 /metrics 和 pprof
func Serve(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	logger.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Errorf("metrics server: %v", err)
	}
}
