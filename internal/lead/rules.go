// Package lead derives completeness, score and follow-up actions from a lead
// record. Everything here is a pure function of its inputs and a Rules table.
package lead

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lead-engine/internal/domain"
)

// Weights are the maximum points each score component can contribute.
type Weights struct {
	Completeness float64 `yaml:"completeness"`
	Engagement   float64 `yaml:"engagement"`
	Timeline     float64 `yaml:"timeline"`
}

// EngagementRule controls how conversation activity saturates.
type EngagementRule struct {
	MessageSaturation int     `yaml:"message_saturation"`
	LengthSaturation  float64 `yaml:"length_saturation"`
	// MessageShare is the fraction of the engagement weight driven by message
	// count; the remainder comes from average user message length.
	MessageShare float64 `yaml:"message_share"`
}

// Thresholds are the minimum total scores of each category.
type Thresholds struct {
	Hot       int `yaml:"hot"`
	Warm      int `yaml:"warm"`
	Qualified int `yaml:"qualified"`
}

// DueOffsets set how far after the last message each action falls due.
type DueOffsets struct {
	Urgent       time.Duration `yaml:"urgent"`
	Recontact    time.Duration `yaml:"recontact"`
	Consultation time.Duration `yaml:"consultation"`
	Preparation  time.Duration `yaml:"preparation"`
	Profile      time.Duration `yaml:"profile"`
	Nurture      time.Duration `yaml:"nurture"`
}

// Rules is the single tunable table behind scoring and recommendations.
type Rules struct {
	Weights        Weights            `yaml:"weights"`
	Engagement     EngagementRule     `yaml:"engagement"`
	TimelinePoints map[string]float64 `yaml:"timeline_points"`
	Thresholds     Thresholds         `yaml:"thresholds"`
	Due            DueOffsets         `yaml:"due"`
	// Cold leads below this completeness get a nurture action.
	NurtureBelowCompleteness float64 `yaml:"nurture_below_completeness"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		Weights: Weights{Completeness: 50, Engagement: 30, Timeline: 20},
		Engagement: EngagementRule{
			MessageSaturation: 12,
			LengthSaturation:  80,
			MessageShare:      0.5,
		},
		TimelinePoints: map[string]float64{
			domain.TimelineImmediate: 20,
			domain.TimelineShortTerm: 14,
			domain.TimelineMidTerm:   8,
			domain.TimelineExploring: 3,
		},
		Thresholds: Thresholds{Hot: 80, Warm: 60, Qualified: 40},
		Due: DueOffsets{
			Urgent:       2 * time.Hour,
			Recontact:    24 * time.Hour,
			Consultation: 24 * time.Hour,
			Preparation:  48 * time.Hour,
			Profile:      72 * time.Hour,
			Nurture:      7 * 24 * time.Hour,
		},
		NurtureBelowCompleteness: 50,
	}
}

// ParseRules overlays a YAML document on the default table and validates the
// result. An empty document yields the defaults.
func ParseRules(data []byte) (Rules, error) {
	r := DefaultRules()
	if strings.TrimSpace(string(data)) == "" {
		return r, nil
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("lead: parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate reports every problem with the table at once.
func (r Rules) Validate() error {
	var problems []string

	w := r.Weights
	if w.Completeness < 0 || w.Engagement < 0 || w.Timeline < 0 {
		problems = append(problems, "weights must not be negative")
	}
	if math.Abs(w.Completeness+w.Engagement+w.Timeline-100) > 1e-9 {
		problems = append(problems, "weights must sum to 100")
	}
	if r.Engagement.MessageSaturation <= 0 {
		problems = append(problems, "engagement.message_saturation must be positive")
	}
	if r.Engagement.LengthSaturation <= 0 {
		problems = append(problems, "engagement.length_saturation must be positive")
	}
	if r.Engagement.MessageShare < 0 || r.Engagement.MessageShare > 1 {
		problems = append(problems, "engagement.message_share must be within [0,1]")
	}
	for bucket, pts := range r.TimelinePoints {
		if !knownTimeline(bucket) {
			problems = append(problems, fmt.Sprintf("timeline_points: unknown bucket %q", bucket))
			continue
		}
		if pts < 0 || pts > w.Timeline {
			problems = append(problems, fmt.Sprintf("timeline_points.%s must be within [0,%g]", bucket, w.Timeline))
		}
	}
	t := r.Thresholds
	if !(0 < t.Qualified && t.Qualified < t.Warm && t.Warm < t.Hot && t.Hot <= 100) {
		problems = append(problems, "thresholds must satisfy 0 < qualified < warm < hot <= 100")
	}
	d := r.Due
	for name, v := range map[string]time.Duration{
		"urgent": d.Urgent, "recontact": d.Recontact, "consultation": d.Consultation,
		"preparation": d.Preparation, "profile": d.Profile, "nurture": d.Nurture,
	} {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("due.%s must be positive", name))
		}
	}
	if r.NurtureBelowCompleteness < 0 || r.NurtureBelowCompleteness > 100 {
		problems = append(problems, "nurture_below_completeness must be within [0,100]")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.New("lead: invalid rules: " + strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a copy that shares no maps with r.
func (r Rules) Clone() Rules {
	out := r
	out.TimelinePoints = make(map[string]float64, len(r.TimelinePoints))
	for k, v := range r.TimelinePoints {
		out.TimelinePoints[k] = v
	}
	return out
}

func knownTimeline(bucket string) bool {
	switch bucket {
	case domain.TimelineImmediate, domain.TimelineShortTerm, domain.TimelineMidTerm, domain.TimelineExploring:
		return true
	}
	return false
}
