package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_transitions_consumed_total",
		Help: "Status transitions consumed from Kafka",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_emails_sent_total",
		Help: "Emails sent",
	})
	mDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_duplicates_skipped_total",
		Help: "Redelivered transitions already notified",
	})
	mErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_errors_total",
		Help: "Notifier errors by stage",
	}, []string{"stage"})
)
