package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"lead-engine/internal/domain"
	"lead-engine/internal/engine"
	"lead-engine/internal/extract"
	"lead-engine/internal/integrations/webhook"
)

const (
	defaultLeadsLimit = 25
	maxLeadsLimit     = 100
)

// Lead types accepted from the contact form.
var leadTypeIntents = map[string]string{
	"buyer":   domain.IntentBuying,
	"buying":  domain.IntentBuying,
	"buy":     domain.IntentBuying,
	"seller":  domain.IntentSelling,
	"selling": domain.IntentSelling,
	"sell":    domain.IntentSelling,
}

var intentVerbs = map[string]string{
	domain.IntentBuying:  "buy",
	domain.IntentSelling: "sell",
}

// ContactInput is a contact form submission. SessionID is optional and
// attaches the form to an existing conversation.
type ContactInput struct {
	Name      string
	Email     string
	Phone     string
	Message   string
	LeadType  string
	SessionID string
}

type ContactOutput struct {
	SessionID string
	Snapshot  domain.Snapshot
}

type LeadsInput struct {
	Category string
	Limit    int
}

// Health reports the state of this instance.
type Health struct {
	ActiveConversations int
	CheckedAt           time.Time
}

// SubmitContact records a contact form as lead messages on a conversation and
// alerts the team. The form's details go through the same extraction as chat
// messages, so the lead record and score stay consistent with chat leads.
func (s *ChatService) SubmitContact(ctx context.Context, in ContactInput) (ContactOutput, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	phone := strings.TrimSpace(in.Phone)
	message := strings.TrimSpace(in.Message)
	intent, knownType := leadTypeIntents[strings.ToLower(strings.TrimSpace(in.LeadType))]
	switch {
	case name == "":
		return ContactOutput{}, newError(ErrorInvalidInput, "invalid_name", nil)
	case !validEmail(email):
		return ContactOutput{}, newError(ErrorInvalidInput, "invalid_email", nil)
	case phone != "" && !validPhone(phone):
		return ContactOutput{}, newError(ErrorInvalidInput, "invalid_phone", nil)
	case !knownType:
		return ContactOutput{}, newError(ErrorInvalidInput, "invalid_lead_type", nil)
	case utf8.RuneCountInString(message) > s.limits.MaxMessageLength:
		return ContactOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	resuming := sessionID != ""
	if !resuming {
		sessionID = newUUID()
	} else if err := engine.ValidateSessionID(sessionID); err != nil {
		return ContactOutput{}, newError(ErrorInvalidInput, "invalid_session_id", err)
	}

	cs := s.lockSession(sessionID)
	defer cs.mu.Unlock()

	prev, live := s.engine.GetState(sessionID)
	if !live && resuming {
		var err error
		prev, err = s.resume(ctx, cs, sessionID)
		if err != nil {
			return ContactOutput{}, err
		}
	}
	if prev.Metrics.UserMessages >= s.limits.MaxConversationTurns {
		return ContactOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
	}

	if message != "" {
		flagged, err := s.llm.Moderate(ctx, message)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return ContactOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
			}
			return ContactOutput{}, newError(ErrorUpstream, "moderation_error", err)
		}
		if flagged {
			return ContactOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
		}
	}

	turns := []string{contactDetails(name, email, phone, intentVerbs[intent])}
	if message != "" {
		turns = append(turns, message)
	}
	snap := prev
	for _, text := range turns {
		before := len(snap.FieldHistory)
		next, err := s.engine.ProcessTurn(sessionID, domain.RoleUser, text)
		if err != nil {
			return ContactOutput{}, turnError(err)
		}
		s.recorder.RecordTurn(domain.RoleUser)
		s.recorder.RecordFieldChanges(next.FieldHistory[before:])
		snap = cs.carry(next)
	}

	if err := s.save(ctx, cs, snap); err != nil {
		return ContactOutput{}, err
	}

	s.recorder.RecordLead(snap)
	s.recorder.SetLiveSessions(s.engine.Sessions())
	alert := webhook.NewAlert(webhook.EventContactSubmitted, snap)
	alert.Name = name
	alert.Email = strings.ToLower(email)
	if phone != "" {
		alert.Phone = extract.NormalizePhone(phone)
	}
	alert.Intent = intent
	alert.Message = message
	s.deliver(ctx, sessionID, append([]webhook.Alert{alert}, webhook.Alerts(snap)...))
	cs.delivered()

	s.logger.Info("contact form submitted", "session_id", sessionID, "score", snap.LeadScore.TotalScore)
	return ContactOutput{SessionID: sessionID, Snapshot: snap}, nil
}

// Leads lists stored leads with an email address for one category, Hot by
// default, highest score first.
func (s *ChatService) Leads(ctx context.Context, in LeadsInput) ([]domain.LeadSummary, error) {
	category := domain.CategoryHot
	if strings.TrimSpace(in.Category) != "" {
		c, ok := domain.ParseCategory(in.Category)
		if !ok {
			return nil, newError(ErrorInvalidInput, "invalid_category", nil)
		}
		category = c
	}
	limit := in.Limit
	if limit == 0 {
		limit = defaultLeadsLimit
	}
	if limit < 0 || limit > maxLeadsLimit {
		return nil, newError(ErrorInvalidInput, "invalid_limit", nil)
	}
	leads, err := s.store.ListLeads(ctx, category, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	return leads, nil
}

func (s *ChatService) Health() Health {
	return Health{ActiveConversations: s.engine.Sessions(), CheckedAt: s.now()}
}

// contactDetails states the form fields the way a lead would in chat.
func contactDetails(name, email, phone, verb string) string {
	parts := []string{"My name is " + name + ".", "My email is " + email + "."}
	if phone != "" {
		parts = append(parts, "My phone is "+phone+".")
	}
	parts = append(parts, "I'm looking to "+verb+".")
	return strings.Join(parts, " ")
}

func validEmail(email string) bool {
	f, ok := extract.Extract(domain.FieldEmail, email, extract.Context{})
	return ok && f.Value == strings.ToLower(email)
}

func validPhone(phone string) bool {
	_, ok := extract.Extract(domain.FieldPhone, phone, extract.Context{})
	return ok && strings.Trim(phone, "0123456789+()-. ") == ""
}
