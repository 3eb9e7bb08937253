package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	authkit "github.com/readshelf/authkit"
)

type metricsSource interface {
	MetricsSnapshot() authkit.MetricsSnapshot
	MailDropped() uint64
}

type counterDef struct {
	id   authkit.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authkit.MetricSignupRequested, "authkit_signup_requested_total", "Signup attempts received."},
	{authkit.MetricSignupRejected, "authkit_signup_rejected_total", "Signup attempts rejected by validation or duplication."},
	{authkit.MetricOTPVerified, "authkit_otp_verified_total", "OTP challenges verified successfully."},
	{authkit.MetricOTPRejected, "authkit_otp_rejected_total", "OTP challenges rejected."},
	{authkit.MetricUserCreated, "authkit_user_created_total", "User records created."},
	{authkit.MetricLoginSuccess, "authkit_login_success_total", "Password logins that succeeded."},
	{authkit.MetricLoginFailure, "authkit_login_failure_total", "Password logins that failed."},
	{authkit.MetricRefreshSuccess, "authkit_refresh_success_total", "Refresh exchanges that succeeded."},
	{authkit.MetricRefreshFailure, "authkit_refresh_failure_total", "Refresh exchanges that failed."},
	{authkit.MetricRefreshReplayDetected, "authkit_refresh_replay_detected_total", "Refresh tokens redeemed after their session was already consumed."},
	{authkit.MetricLogout, "authkit_logout_total", "Logout requests received."},
	{authkit.MetricSessionCreated, "authkit_session_created_total", "Session records created."},
	{authkit.MetricSessionRevoked, "authkit_session_revoked_total", "Session records revoked."},
	{authkit.MetricFederatedLogin, "authkit_federated_login_total", "Federated logins that succeeded."},
	{authkit.MetricProviderConflict, "authkit_provider_conflict_total", "Federated logins refused due to provider binding conflicts."},
	{authkit.MetricStoreUnavailable, "authkit_store_unavailable_total", "Operations failed by backing-store unavailability."},
	{authkit.MetricMailEnqueued, "authkit_mail_enqueued_total", "OTP mails queued for delivery."},
	{authkit.MetricMailFailed, "authkit_mail_failed_total", "OTP mail deliveries that failed."},
}

// Exporter renders authkit metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an Exporter reading from the given [authkit.Engine].
func NewExporter(engine *authkit.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an Exporter from a custom source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current counters in Prometheus text exposition format.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.MailDropped()

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}
	writeCounter(&b, "authkit_mail_dropped_total", "OTP mails dropped due to dispatcher backpressure.", dropped)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
