package lead

import (
	"math"

	"lead-engine/internal/domain"
)

// ScoreInput is everything the scorer looks at.
type ScoreInput struct {
	Completeness float64
	Metrics      domain.Metrics
	Timeline     string
}

// Score computes the weighted total, its category and the follow-up priority.
func Score(in ScoreInput, r Rules) domain.LeadScore {
	completeness := r.Weights.Completeness * clamp(in.Completeness, 0, 100) / 100

	e := r.Engagement
	messages := saturate(float64(in.Metrics.TotalMessages), float64(e.MessageSaturation))
	length := saturate(in.Metrics.AvgUserMessageLength, e.LengthSaturation)
	engagement := r.Weights.Engagement * (e.MessageShare*messages + (1-e.MessageShare)*length)

	timeline := math.Min(r.TimelinePoints[in.Timeline], r.Weights.Timeline)

	total := int(clamp(math.Round(completeness+engagement+timeline), 0, 100))
	category := Categorize(total, r.Thresholds)
	return domain.LeadScore{
		TotalScore: total,
		Category:   category,
		Priority:   PriorityFor(category, in.Timeline == domain.TimelineImmediate),
		Breakdown: domain.ScoreBreakdown{
			Completeness: round2(completeness),
			Engagement:   round2(engagement),
			Timeline:     round2(timeline),
		},
	}
}

// Categorize maps a total score to its category bucket.
func Categorize(total int, t Thresholds) domain.Category {
	switch {
	case total >= t.Hot:
		return domain.CategoryHot
	case total >= t.Warm:
		return domain.CategoryWarm
	case total >= t.Qualified:
		return domain.CategoryQualified
	}
	return domain.CategoryCold
}

// PriorityFor derives follow-up priority. An urgent timeline never drops
// below medium.
func PriorityFor(c domain.Category, urgentTimeline bool) domain.Priority {
	var p domain.Priority
	switch c {
	case domain.CategoryHot:
		if urgentTimeline {
			return domain.PriorityUrgent
		}
		p = domain.PriorityHigh
	case domain.CategoryWarm:
		p = domain.PriorityMedium
	default:
		p = domain.PriorityLow
	}
	if urgentTimeline && p.Rank() > domain.PriorityMedium.Rank() {
		p = domain.PriorityMedium
	}
	return p
}

// saturate maps v onto [0,1], reaching 1 at limit.
func saturate(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return clamp(v, 0, limit) / limit
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
