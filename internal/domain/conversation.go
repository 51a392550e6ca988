package domain

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single appended conversation turn. Seq is the 1-based position
// of the message within its session.
type Message struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics summarises conversation engagement.
type Metrics struct {
	TotalMessages        int     `json:"total_messages"`
	UserMessages         int     `json:"user_messages"`
	AssistantMessages    int     `json:"assistant_messages"`
	AvgUserMessageLength float64 `json:"avg_user_message_length"`
}

// Snapshot is an immutable copy of a session's conversation state, handed to
// callers for display, persistence and notification decisions.
type Snapshot struct {
	SessionID              string                      `json:"session_id"`
	Messages               []Message                   `json:"messages"`
	Fields                 map[FieldKey]ExtractedField `json:"fields"`
	FieldHistory           []FieldChange               `json:"field_history"`
	SolicitedField         *FieldKey                   `json:"solicited_field,omitempty"`
	NextField              *FieldKey                   `json:"next_field,omitempty"`
	MissingSlots           []string                    `json:"missing_slots"`
	CompletenessPercentage float64                     `json:"completeness_percentage"`
	ConversationComplete   bool                        `json:"conversation_complete"`
	CompletedAtTurn        int                         `json:"completed_at_turn,omitempty"`
	LeadScore              LeadScore                   `json:"lead_score"`
	RecommendedActions     []RecommendedAction         `json:"recommended_actions"`
	Metrics                Metrics                     `json:"metrics"`
	CompletedThisTurn      bool                        `json:"completed_this_turn"`
	BecameHotThisTurn      bool                        `json:"became_hot_this_turn"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

// Value returns the value of a set field, or "" when the field is unset.
func (s Snapshot) Value(key FieldKey) string {
	f, ok := s.Fields[key]
	if !ok {
		return ""
	}
	return f.Value
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.FieldHistory = append([]FieldChange(nil), s.FieldHistory...)
	out.MissingSlots = append([]string(nil), s.MissingSlots...)
	out.Fields = make(map[FieldKey]ExtractedField, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.SolicitedField = cloneKey(s.SolicitedField)
	out.NextField = cloneKey(s.NextField)
	out.RecommendedActions = make([]RecommendedAction, len(s.RecommendedActions))
	for i, a := range s.RecommendedActions {
		if a.ContactInfo != nil {
			ci := *a.ContactInfo
			a.ContactInfo = &ci
		}
		out.RecommendedActions[i] = a
	}
	return out
}

func cloneKey(k *FieldKey) *FieldKey {
	if k == nil {
		return nil
	}
	v := *k
	return &v
}
