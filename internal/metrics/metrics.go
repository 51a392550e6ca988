// Package metrics records conversation and lead outcomes in Prometheus form.
package metrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"lead-engine/internal/domain"
)

const namespace = "lead_engine"

// Recorder owns every collector. Each instance registers on its own registry
// so tests never share state.
type Recorder struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	chatRequests   *prometheus.CounterVec
	chatDuration   prometheus.Histogram
	fieldChanges   *prometheus.CounterVec
	leadScores     prometheus.Histogram
	leadsCompleted prometheus.Counter
	leadsHot       prometheus.Counter
	notifications  *prometheus.CounterVec
	liveSessions   prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns applied to the engine.",
		}, []string{"role"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome code.",
		}, []string{"outcome"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_duration_seconds",
			Help:      "End to end chat request duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		fieldChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_changes_total",
			Help:      "Extractions merged into lead records by field and outcome.",
		}, []string{"field", "outcome"}),
		leadScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lead_score",
			Help:      "Lead score observed after each chat turn.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		leadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_completed_total",
			Help:      "Conversations that reached full completeness.",
		}),
		leadsHot: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_hot_total",
			Help:      "Leads that entered the Hot category.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Lead alerts by event and delivery status.",
		}, []string{"event", "status"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions held in memory by this instance.",
		}),
	}
	r.registry.MustRegister(
		r.turns,
		r.chatRequests,
		r.chatDuration,
		r.fieldChanges,
		r.leadScores,
		r.leadsCompleted,
		r.leadsHot,
		r.notifications,
		r.liveSessions,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RecordTurn(role domain.Role) {
	r.turns.WithLabelValues(string(role)).Inc()
}

// RecordChat counts one chat request; outcome is "ok" or an error code.
func (r *Recorder) RecordChat(outcome string, d time.Duration) {
	r.chatRequests.WithLabelValues(outcome).Inc()
	r.chatDuration.Observe(d.Seconds())
}

// RecordFieldChanges counts the audit entries produced by one turn.
func (r *Recorder) RecordFieldChanges(changes []domain.FieldChange) {
	for _, c := range changes {
		r.fieldChanges.WithLabelValues(string(c.Key), string(c.Outcome)).Inc()
	}
}

// RecordLead observes the score and lead transitions of a snapshot.
func (r *Recorder) RecordLead(snap domain.Snapshot) {
	r.leadScores.Observe(float64(snap.LeadScore.TotalScore))
	if snap.CompletedThisTurn {
		r.leadsCompleted.Inc()
	}
	if snap.BecameHotThisTurn {
		r.leadsHot.Inc()
	}
}

func (r *Recorder) RecordNotification(event string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	r.notifications.WithLabelValues(event, status).Inc()
}

func (r *Recorder) SetLiveSessions(n int) {
	r.liveSessions.Set(float64(n))
}

// Render encodes every metric in the Prometheus text exposition format.
func (r *Recorder) Render() ([]byte, string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, "", fmt.Errorf("metrics: gather: %w", err)
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), string(format), nil
}
