package lead

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lead-engine/internal/domain"
)

// Action kinds.
const (
	ActionRecontact    = "recontact"
	ActionConsultation = "consultation"
	ActionMarketReport = "market_analysis"
	ActionListings     = "curated_listings"
	ActionProfile      = "complete_profile"
	ActionUrgent       = "urgent_follow_up"
	ActionNurture      = "nurture"
)

const unknown = "unknown"

// ActionInput is the lead state the recommender works from.
type ActionInput struct {
	Fields     map[domain.FieldKey]domain.ExtractedField
	Score      domain.LeadScore
	Completion Completion
	// Complete is the conversation latch, which may stay set after fields change.
	Complete bool
	// Now anchors due dates, normally the timestamp of the last message.
	Now time.Time
}

func (in ActionInput) value(key domain.FieldKey) string {
	return strings.TrimSpace(in.Fields[key].Value)
}

func (in ActionInput) contact() *domain.ContactInfo {
	ci := domain.ContactInfo{Email: in.value(domain.FieldEmail), Phone: in.value(domain.FieldPhone)}
	if ci.Email == "" && ci.Phone == "" {
		return nil
	}
	return &ci
}

// Recommend returns the follow-up actions for a lead, most pressing first.
// Actions of equal priority keep their rule order.
func Recommend(in ActionInput, r Rules) []domain.RecommendedAction {
	var out []domain.RecommendedAction
	add := func(a domain.RecommendedAction, after time.Duration) {
		a.DueDate = in.Now.Add(after)
		out = append(out, a)
	}

	contact := in.contact()
	name := orUnknown(in.value(domain.FieldName))
	intent := in.value(domain.FieldBuyingOrSelling)
	timeline := in.value(domain.FieldTimeline)

	if contact == nil {
		add(domain.RecommendedAction{
			Kind:        ActionRecontact,
			Title:       "Attempt recontact",
			Description: fmt.Sprintf("No email or phone captured for %s. Try to re-engage through the original channel.", name),
			Priority:    domain.PriorityHigh,
		}, r.Due.Recontact)
	}

	if in.Score.Category == domain.CategoryHot || in.Complete {
		p, due := domain.PriorityHigh, r.Due.Consultation
		if in.Score.Priority == domain.PriorityUrgent {
			p, due = domain.PriorityUrgent, r.Due.Urgent
		}
		add(domain.RecommendedAction{
			Kind:        ActionConsultation,
			Title:       "Schedule consultation call",
			Description: consultationText(name, intent, in),
			Priority:    p,
			ContactInfo: contact,
		}, due)
	}

	if in.Complete {
		switch intent {
		case domain.IntentSelling:
			add(domain.RecommendedAction{
				Kind:        ActionMarketReport,
				Title:       "Prepare comparative market analysis",
				Description: fmt.Sprintf("Pull recent comparable sales for %s before the consultation.", orUnknown(in.value(domain.FieldPropertyAddress))),
				Priority:    domain.PriorityMedium,
				ContactInfo: contact,
			}, r.Due.Preparation)
		case domain.IntentBuying:
			add(domain.RecommendedAction{
				Kind:        ActionListings,
				Title:       "Send curated listings",
				Description: fmt.Sprintf("Send %s listings matching: %s.", name, buyerCriteria(in)),
				Priority:    domain.PriorityMedium,
				ContactInfo: contact,
			}, r.Due.Preparation)
		}
	}

	if !in.Complete && contact != nil && !in.Completion.Complete() {
		add(domain.RecommendedAction{
			Kind:        ActionProfile,
			Title:       "Complete lead profile",
			Description: "Follow up to collect: " + strings.Join(in.Completion.MissingLabels(), ", ") + ".",
			Priority:    domain.PriorityMedium,
			ContactInfo: contact,
		}, r.Due.Profile)
	}

	if timeline == domain.TimelineImmediate {
		add(domain.RecommendedAction{
			Kind:        ActionUrgent,
			Title:       "Urgent follow-up",
			Description: fmt.Sprintf("%s wants to move immediately. Reach out within %s.", name, humanDuration(r.Due.Urgent)),
			Priority:    domain.PriorityUrgent,
			ContactInfo: contact,
		}, r.Due.Urgent)
	}

	if in.Score.Category == domain.CategoryCold && in.Completion.Percentage < r.NurtureBelowCompleteness {
		add(domain.RecommendedAction{
			Kind:        ActionNurture,
			Title:       "Send nurture email",
			Description: "Add to the nurture sequence with general market updates.",
			Priority:    domain.PriorityLow,
			ContactInfo: contact,
		}, r.Due.Nurture)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func consultationText(name, intent string, in ActionInput) string {
	address := in.value(domain.FieldPropertyAddress)
	switch intent {
	case domain.IntentSelling:
		if address != "" {
			return fmt.Sprintf("Seller consultation with %s: property evaluation for %s.", name, address)
		}
		return fmt.Sprintf("Seller consultation with %s: property evaluation, address unknown.", name)
	case domain.IntentBuying:
		return fmt.Sprintf("Buyer consultation with %s: discuss %s.", name, buyerCriteria(in))
	}
	return fmt.Sprintf("Consultation with %s: confirm whether they are buying or selling.", name)
}

func buyerCriteria(in ActionInput) string {
	var parts []string
	if v := in.value(domain.FieldPropertyType); v != "" {
		parts = append(parts, v)
	}
	if v := in.value(domain.FieldBedrooms); v != "" {
		parts = append(parts, v+" bed")
	}
	if v := in.value(domain.FieldBathrooms); v != "" {
		parts = append(parts, v+" bath")
	}
	if v := in.value(domain.FieldTimeline); v != "" {
		parts = append(parts, "timeline "+v)
	}
	if len(parts) == 0 {
		return "requirements " + unknown
	}
	return strings.Join(parts, ", ")
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
