package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_votes_total",
		Help: "Vote ledger writes by action and result.",
	}, []string{"action", "result"})

	ModerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_moderation_total",
		Help: "Moderation actions by action and result.",
	}, []string{"action", "result"})

	EmailTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_email_total",
		Help: "Outbound emails by kind and result.",
	}, []string{"kind", "result"})

	ListingCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_listing_cache_total",
		Help: "Listing projection cache lookups by result.",
	}, []string{"result"})

	OutboxRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_outbox_relayed_total",
		Help: "Outbox events relayed by result.",
	}, []string{"result"})

	VoteDriftCorrected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideas_vote_count_drift_corrected_total",
		Help: "Ideas whose stored vote count was corrected by the reconciler.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ideas_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result 指标标签：成功为 ok，失败为错误码
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
