package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lead-engine/internal/domain"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func recommend(f map[domain.FieldKey]domain.ExtractedField, metrics domain.Metrics) []domain.RecommendedAction {
	r := DefaultRules()
	c := Track(f)
	score := Score(ScoreInput{Completeness: c.Percentage, Metrics: metrics, Timeline: f[domain.FieldTimeline].Value}, r)
	return Recommend(ActionInput{Fields: f, Score: score, Completion: c, Complete: c.Complete(), Now: now}, r)
}

func kinds(actions []domain.RecommendedAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestRecommend_ColdLeadWithoutContact(t *testing.T) {
	got := recommend(fields("name", "Jane"), domain.Metrics{TotalMessages: 1, UserMessages: 1, AvgUserMessageLength: 12})

	require.Equal(t, []string{ActionRecontact, ActionNurture}, kinds(got))
	require.Equal(t, domain.PriorityHigh, got[0].Priority)
	require.Equal(t, now.Add(24*time.Hour), got[0].DueDate)
	require.Contains(t, got[0].Description, "Jane")
	require.Nil(t, got[0].ContactInfo)
	require.Equal(t, domain.PriorityLow, got[1].Priority)
	require.Equal(t, now.Add(7*24*time.Hour), got[1].DueDate)
}

func TestRecommend_PartialLeadWithContact(t *testing.T) {
	got := recommend(fields("email", "jane@example.com"), domain.Metrics{TotalMessages: 2, AvgUserMessageLength: 30})

	require.Equal(t, []string{ActionProfile, ActionNurture}, kinds(got))
	profile := got[0]
	require.Equal(t, domain.PriorityMedium, profile.Priority)
	require.Equal(t, now.Add(72*time.Hour), profile.DueDate)
	require.Equal(t, "Follow up to collect: Name, Phone, Buying or selling, Property type or address.", profile.Description)
	require.Equal(t, &domain.ContactInfo{Email: "jane@example.com"}, profile.ContactInfo)
}

func TestRecommend_CompleteSeller(t *testing.T) {
	got := recommend(completeSeller(), domain.Metrics{TotalMessages: 6, AvgUserMessageLength: 40})

	require.Equal(t, []string{ActionConsultation, ActionMarketReport}, kinds(got))
	consult := got[0]
	require.Equal(t, domain.PriorityHigh, consult.Priority)
	require.Equal(t, now.Add(24*time.Hour), consult.DueDate)
	require.Equal(t, "Seller consultation with Jane Doe: property evaluation for 12 Elm Street.", consult.Description)
	require.Equal(t, &domain.ContactInfo{Email: "jane@example.com", Phone: "5558675309"}, consult.ContactInfo)
	require.Equal(t, now.Add(48*time.Hour), got[1].DueDate)
}

func TestRecommend_UrgentHotBuyer(t *testing.T) {
	f := fields(
		"name", "Sam Lee",
		"email", "sam@example.com",
		"phone", "5551112222",
		"buying_or_selling", "buying",
		"property_type", "condo",
		"bedrooms", "2",
		"timeline", domain.TimelineImmediate,
	)
	got := recommend(f, domain.Metrics{TotalMessages: 12, AvgUserMessageLength: 80})

	require.Equal(t, []string{ActionConsultation, ActionUrgent, ActionListings}, kinds(got))
	require.Equal(t, domain.PriorityUrgent, got[0].Priority)
	require.Equal(t, now.Add(2*time.Hour), got[0].DueDate)
	require.Equal(t, "Buyer consultation with Sam Lee: discuss condo, 2 bed, timeline immediate.", got[0].Description)
	require.Equal(t, domain.PriorityUrgent, got[1].Priority)
	require.Equal(t, "Sam Lee wants to move immediately. Reach out within 2 hours.", got[1].Description)
	require.Equal(t, "Send Sam Lee listings matching: condo, 2 bed, timeline immediate.", got[2].Description)
}

func TestRecommend_LatchKeepsConsultation(t *testing.T) {
	// Completeness may drop after the latch is set; the lead still counts as complete.
	f := completeSeller()
	delete(f, domain.FieldPhone)
	r := DefaultRules()
	c := Track(f)
	score := Score(ScoreInput{Completeness: c.Percentage}, r)

	got := Recommend(ActionInput{Fields: f, Score: score, Completion: c, Complete: true, Now: now}, r)
	require.Equal(t, []string{ActionConsultation, ActionMarketReport}, kinds(got))
}

func TestRecommend_UnknownDetailsDegrade(t *testing.T) {
	r := DefaultRules()
	score := domain.LeadScore{TotalScore: 90, Category: domain.CategoryHot, Priority: domain.PriorityHigh}

	got := Recommend(ActionInput{Score: score, Completion: Track(nil), Now: now}, r)
	require.Equal(t, []string{ActionRecontact, ActionConsultation}, kinds(got))
	require.Equal(t, "Consultation with unknown: confirm whether they are buying or selling.", got[1].Description)
	require.Nil(t, got[1].ContactInfo)
}

func TestRecommend_Deterministic(t *testing.T) {
	a := recommend(completeSeller(), domain.Metrics{TotalMessages: 6, AvgUserMessageLength: 40})
	b := recommend(completeSeller(), domain.Metrics{TotalMessages: 6, AvgUserMessageLength: 40})
	require.Equal(t, a, b)
}
