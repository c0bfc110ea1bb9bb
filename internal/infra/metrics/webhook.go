package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookRequestsTotal, mailSentTotal) }

var (
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Inbound webhook requests by provider and HTTP status code.",
		},
		[]string{"provider", "code"},
	)

	mailSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_sent_total",
			Help: "Outbound emails by driver and result.",
		},
		[]string{"driver", "result"},
	)
)

func IncWebhook(provider, code string) {
	webhookRequestsTotal.WithLabelValues(norm(provider), code).Inc()
}

func IncMail(driver, result string) {
	mailSentTotal.WithLabelValues(norm(driver), norm(result)).Inc()
}
