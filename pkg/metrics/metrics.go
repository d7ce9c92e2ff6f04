package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "salon", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "salon", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// ContentSaves counts completed saves by the tier that ended up holding the write.
	ContentSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "salon", Name: "content_saves_total", Help: "Content saves by resulting source (remote, local)."},
		[]string{"source"},
	)
	RemotePushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "salon", Name: "remote_push_failures_total", Help: "Remote writes that failed and left the change local only."},
	)
	SyncConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "salon", Name: "sync_conflicts_total", Help: "Remote writes rejected because the remote version moved."},
	)
	RemoteChangesApplied = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "salon", Name: "remote_changes_applied_total", Help: "Remote change notifications applied to the local cache."},
	)
	RemoteOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "salon", Name: "remote_online", Help: "1 when the remote store is reachable."},
	)
	LiveViewers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "salon", Name: "live_viewers", Help: "Connected live page viewers by page."},
		[]string{"page"},
	)
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "salon", Name: "admin_login_attempts_total", Help: "Admin login attempts by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ContentSaves)
	reg.MustRegister(RemotePushFailures)
	reg.MustRegister(SyncConflicts)
	reg.MustRegister(RemoteChangesApplied)
	reg.MustRegister(RemoteOnline)
	reg.MustRegister(LiveViewers)
	reg.MustRegister(LoginAttempts)
}
