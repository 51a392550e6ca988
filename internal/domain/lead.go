package domain

import (
	"strings"
	"time"
)

// Category buckets a lead by total score.
type Category string

const (
	CategoryHot       Category = "Hot"
	CategoryWarm      Category = "Warm"
	CategoryQualified Category = "Qualified"
	CategoryCold      Category = "Cold"
)

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryHot, CategoryWarm, CategoryQualified, CategoryCold} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// Priority orders follow-up work.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns 0 for the most pressing priority; unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// ScoreBreakdown shows how each component contributed to the total score.
type ScoreBreakdown struct {
	Completeness float64 `json:"completeness"`
	Engagement   float64 `json:"engagement"`
	Timeline     float64 `json:"timeline"`
}

// LeadScore is the derived score of a conversation.
type LeadScore struct {
	TotalScore int            `json:"total_score"`
	Category   Category       `json:"category"`
	Priority   Priority       `json:"priority"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}

// ContactInfo holds whatever contact channels are known for a lead.
type ContactInfo struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// RecommendedAction is a follow-up task for the sales team.
type RecommendedAction struct {
	Kind        string       `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    Priority     `json:"priority"`
	DueDate     time.Time    `json:"due_date"`
	ContactInfo *ContactInfo `json:"contact_info,omitempty"`
}

// LeadSummary is the listing view of a stored lead.
type LeadSummary struct {
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Intent       string    `json:"buying_or_selling,omitempty"`
	Completeness float64   `json:"completeness_percentage"`
	Complete     bool      `json:"conversation_complete"`
	LeadScore    LeadScore `json:"lead_score"`
	LastActivity time.Time `json:"last_activity"`
}
