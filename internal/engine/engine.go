// Package engine turns a stream of conversation turns into a lead record.
//
// Each session is owned by a slot with its own mutex, so turns for one session
// are applied strictly one at a time while different sessions run in parallel.
// The engine performs no I/O.
package engine

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"lead-engine/internal/domain"
	"lead-engine/internal/extract"
	"lead-engine/internal/lead"
)

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,127}$`)

// Engine processes conversation turns. The zero value is not usable; call New.
type Engine struct {
	rules  lead.Rules
	now    func() time.Time
	logger *slog.Logger
	store  *store
}

type Option func(*Engine)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine using rules for scoring and recommendations.
func New(rules lead.Rules, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules.Clone(),
		now:    time.Now,
		logger: slog.Default(),
		store:  newStore(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn appends one message to the session, creating the session on
// its first message, and returns the updated state. Invalid input is rejected
// with a *ValidationError and leaves the session untouched.
func (e *Engine) ProcessTurn(sessionID string, role domain.Role, content string) (domain.Snapshot, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return domain.Snapshot{}, err
	}
	if !role.Valid() {
		return domain.Snapshot{}, invalid("role", "must be user or assistant")
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return domain.Snapshot{}, invalid("content", "must not be empty")
	}

	sl := e.store.get(sessionID, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := e.now().UTC()
	if sl.state == nil {
		sl.state = newSession(sessionID, now)
	}
	s := sl.state

	msg := domain.Message{Seq: len(s.messages) + 1, Role: role, Content: content, Timestamp: now}
	s.messages = append(s.messages, msg)
	s.updatedAt = now

	switch role {
	case domain.RoleAssistant:
		s.solicited = extract.Solicited(text)
	case domain.RoleUser:
		ctx := extract.Context{Solicited: s.solicited, Fields: s.fields}
		for _, f := range extract.All(text, ctx) {
			e.merge(s, f, msg.Seq)
		}
	}

	e.derive(s, true)
	return s.view.Clone(), nil
}

// GetState returns the current state of a session without changing it.
func (e *Engine) GetState(sessionID string) (domain.Snapshot, bool) {
	sl := e.store.get(sessionID, false)
	if sl == nil {
		return domain.Snapshot{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state == nil {
		return domain.Snapshot{}, false
	}
	return sl.state.view.Clone(), true
}

// Restore seeds a session from a persisted snapshot, typically when a
// conversation resumes on a fresh process. Sessions already live are rejected
// so persisted state can never overwrite newer in-memory turns.
func (e *Engine) Restore(snap domain.Snapshot) error {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return err
	}
	for key := range snap.Fields {
		if !key.Valid() {
			return invalid("fields", "unknown field key "+string(key))
		}
	}
	for i, m := range snap.Messages {
		if !m.Role.Valid() {
			return invalid("messages", "unknown role "+string(m.Role))
		}
		if m.Seq != i+1 {
			return invalid("messages", "sequence is not contiguous")
		}
	}

	sl := e.store.get(snap.SessionID, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state != nil {
		return invalid("session_id", "session is already live")
	}

	c := snap.Clone()
	s := newSession(c.SessionID, c.CreatedAt)
	s.messages = c.Messages
	for k, f := range c.Fields {
		f.Key = k
		s.fields[k] = f
	}
	s.history = c.FieldHistory
	s.solicited = c.SolicitedField
	s.complete = c.ConversationComplete
	s.completedAt = c.CompletedAtTurn
	s.category = c.LeadScore.Category
	s.updatedAt = c.UpdatedAt

	e.derive(s, false)
	sl.state = s
	return nil
}

// Sessions returns the number of live sessions.
func (e *Engine) Sessions() int {
	return e.store.live()
}

// merge applies one extraction to the lead and records the outcome.
func (e *Engine) merge(s *session, f domain.ExtractedField, turn int) {
	change := domain.FieldChange{Key: f.Key, Value: f.Value, Turn: turn, Confidence: f.Confidence}
	prev, ok := s.fields[f.Key]

	switch {
	case !ok || prev.Value == "":
		change.Outcome = domain.OutcomeSet
		f.SetAtTurn = turn
		s.fields[f.Key] = f
	case prev.Value == f.Value:
		change.Previous = prev.Value
		change.Outcome = domain.OutcomeConfirmed
		if f.Confidence.Outranks(prev.Confidence) {
			prev.Confidence = f.Confidence
			s.fields[f.Key] = prev
		}
	case prev.Confidence.Outranks(f.Confidence):
		change.Previous = prev.Value
		change.Outcome = domain.OutcomeRejected
		e.logger.Debug("merge conflict: low confidence value rejected",
			"session_id", s.id,
			"field", f.Key,
			"kept", prev.Value,
			"rejected", f.Value,
			"turn", turn,
		)
	default:
		change.Previous = prev.Value
		change.Outcome = domain.OutcomeOverwritten
		f.SetAtTurn = turn
		s.fields[f.Key] = f
		e.logger.Debug("merge conflict: field overwritten",
			"session_id", s.id,
			"field", f.Key,
			"previous", prev.Value,
			"value", f.Value,
			"turn", turn,
		)
	}
	s.history = append(s.history, change)
}

// derive recomputes every derived view of s. Transition flags are only raised
// for live turns, never for a restore.
func (e *Engine) derive(s *session, turn bool) {
	completion := lead.Track(s.fields)
	metrics := metricsOf(s.messages)

	completedNow := false
	if !s.complete && completion.Complete() {
		s.complete = true
		s.completedAt = len(s.messages)
		completedNow = turn
	}

	score := lead.Score(lead.ScoreInput{
		Completeness: completion.Percentage,
		Metrics:      metrics,
		Timeline:     s.fields[domain.FieldTimeline].Value,
	}, e.rules)
	becameHot := turn && score.Category == domain.CategoryHot && s.category != domain.CategoryHot
	s.category = score.Category

	ref := s.updatedAt
	if n := len(s.messages); n > 0 {
		ref = s.messages[n-1].Timestamp
	}
	actions := lead.Recommend(lead.ActionInput{
		Fields:     s.fields,
		Score:      score,
		Completion: completion,
		Complete:   s.complete,
		Now:        ref,
	}, e.rules)

	s.view = domain.Snapshot{
		SessionID:              s.id,
		Messages:               s.messages,
		Fields:                 s.fields,
		FieldHistory:           s.history,
		SolicitedField:         s.solicited,
		NextField:              lead.NextField(s.fields),
		MissingSlots:           completion.MissingNames(),
		CompletenessPercentage: completion.Percentage,
		ConversationComplete:   s.complete,
		CompletedAtTurn:        s.completedAt,
		LeadScore:              score,
		RecommendedActions:     actions,
		Metrics:                metrics,
		CompletedThisTurn:      completedNow,
		BecameHotThisTurn:      becameHot,
		CreatedAt:              s.createdAt,
		UpdatedAt:              s.updatedAt,
	}
}

func metricsOf(messages []domain.Message) domain.Metrics {
	var m domain.Metrics
	userChars := 0
	for _, msg := range messages {
		m.TotalMessages++
		switch msg.Role {
		case domain.RoleUser:
			m.UserMessages++
			userChars += utf8.RuneCountInString(strings.TrimSpace(msg.Content))
		case domain.RoleAssistant:
			m.AssistantMessages++
		}
	}
	if m.UserMessages > 0 {
		m.AvgUserMessageLength = float64(userChars) / float64(m.UserMessages)
	}
	return m
}

// ValidateSessionID reports whether id is an acceptable session identifier.
func ValidateSessionID(id string) error {
	if id == "" {
		return invalid("session_id", "must not be empty")
	}
	if !sessionIDRe.MatchString(id) {
		return invalid("session_id", "must be 1-128 letters, digits, '-' or '_' starting with a letter or digit")
	}
	return nil
}
