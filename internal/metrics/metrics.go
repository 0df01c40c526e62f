// Package metrics регистрирует счетчики Prometheus для планировщика и вебхука.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты отправки и обработки.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

var (
	// NotificationsTotal отправки по виду уведомления, каналу и результату.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menoease",
		Name:      "notifications_total",
		Help:      "Reminder and report deliveries by kind, channel and result.",
	}, []string{"kind", "channel", "result"})

	// WebhookEventsTotal события провайдера по типу и результату.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menoease",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by type and result.",
	}, []string{"type", "result"})

	// JobDuration длительность прогона задачи.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "menoease",
		Name:      "job_duration_seconds",
		Help:      "Duration of reminder and report evaluation runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
)

// ObserveJob пишет длительность задачи job, начатой в start.
func ObserveJob(job string, start time.Time) {
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
