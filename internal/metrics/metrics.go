package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder リマインド送信とスケジュール監視のカウンタ
type Recorder struct {
	registry       *prometheus.Registry
	dispatchTotal  *prometheus.CounterVec
	messagesSent   prometheus.Counter
	scheduleChecks *prometheus.CounterVec
}

// NewRecorder 専用レジストリにカウンタを登録して返す
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_dispatch_total",
			Help: "Number of reminder dispatch runs by outcome.",
		}, []string{"status"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_messages_sent_total",
			Help: "Number of reminder messages delivered to channels.",
		}),
		scheduleChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_check_total",
			Help: "Number of spreadsheet schedule checks by outcome.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.dispatchTotal, r.messagesSent, r.scheduleChecks)
	return r
}

// ObserveDispatch 送信結果を記録 (status: sent/empty/failed)
func (r *Recorder) ObserveDispatch(status string, sent int) {
	r.dispatchTotal.WithLabelValues(status).Inc()
	r.messagesSent.Add(float64(sent))
}

// ObserveScheduleCheck スケジュール確認結果を記録 (status: changed/unchanged/failed)
func (r *Recorder) ObserveScheduleCheck(status string) {
	r.scheduleChecks.WithLabelValues(status).Inc()
}

// Handler /metrics 用ハンドラ
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
