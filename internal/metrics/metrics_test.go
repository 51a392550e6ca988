package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"lead-engine/internal/domain"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.RecordTurn(domain.RoleUser)
	r.RecordTurn(domain.RoleUser)
	r.RecordTurn(domain.RoleAssistant)
	require.Equal(t, 2.0, testutil.ToFloat64(r.turns.WithLabelValues("user")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.turns.WithLabelValues("assistant")))

	r.RecordChat("ok", 120*time.Millisecond)
	r.RecordChat("RATE_LIMITED", time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(r.chatRequests.WithLabelValues("RATE_LIMITED")))
	require.Equal(t, 2, testutil.CollectAndCount(r.chatRequests))

	r.RecordFieldChanges([]domain.FieldChange{
		{Key: domain.FieldEmail, Outcome: domain.OutcomeSet},
		{Key: domain.FieldEmail, Outcome: domain.OutcomeOverwritten},
		{Key: domain.FieldPhone, Outcome: domain.OutcomeRejected},
	})
	require.Equal(t, 1.0, testutil.ToFloat64(r.fieldChanges.WithLabelValues("email", "overwritten")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.fieldChanges.WithLabelValues("phone", "rejected")))

	r.RecordLead(domain.Snapshot{LeadScore: domain.LeadScore{TotalScore: 86}, CompletedThisTurn: true, BecameHotThisTurn: true})
	r.RecordLead(domain.Snapshot{LeadScore: domain.LeadScore{TotalScore: 90}})
	require.Equal(t, 1.0, testutil.ToFloat64(r.leadsCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(r.leadsHot))

	r.RecordNotification("lead_hot", nil)
	r.RecordNotification("lead_hot", errors.New("down"))
	require.Equal(t, 1.0, testutil.ToFloat64(r.notifications.WithLabelValues("lead_hot", "failed")))

	r.SetLiveSessions(3)
	require.Equal(t, 3.0, testutil.ToFloat64(r.liveSessions))
}

func TestRecorder_Render(t *testing.T) {
	r := New()
	r.RecordTurn(domain.RoleUser)
	r.SetLiveSessions(2)

	body, contentType, err := r.Render()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(contentType, "text/plain"))

	text := string(body)
	require.Contains(t, text, "# TYPE lead_engine_turns_total counter")
	require.Contains(t, text, `lead_engine_turns_total{role="user"} 1`)
	require.Contains(t, text, "lead_engine_live_sessions 2")
}

func TestRecorder_Isolated(t *testing.T) {
	a, b := New(), New()
	a.RecordTurn(domain.RoleUser)
	require.Equal(t, 0.0, testutil.ToFloat64(b.turns.WithLabelValues("user")))
}
