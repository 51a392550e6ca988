package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"lead-engine/internal/domain"
	"lead-engine/internal/engine"
	"lead-engine/internal/integrations/webhook"
	"lead-engine/internal/repository"
)

const (
	defaultMaxContext    = 20
	defaultMaxMessage    = 1000
	defaultMaxUserTurns  = 40
	outcomeOK            = "ok"
	notificationsTimeout = 5 * time.Second
)

// ParamGetter fetches SSM parameters in bulk. Missing names are absent from
// the result.
type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// Engine is the in-memory conversation engine.
type Engine interface {
	ProcessTurn(sessionID string, role domain.Role, content string) (domain.Snapshot, error)
	GetState(sessionID string) (domain.Snapshot, bool)
	Restore(snap domain.Snapshot) error
	Sessions() int
}

type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot, persisted int) error
	LoadSnapshot(ctx context.Context, sessionID string) (domain.Snapshot, bool, error)
	ListLeads(ctx context.Context, category domain.Category, limit int) ([]domain.LeadSummary, error)
}

type Notifier interface {
	Notify(ctx context.Context, alert webhook.Alert) error
}

type Recorder interface {
	RecordTurn(role domain.Role)
	RecordChat(outcome string, d time.Duration)
	RecordFieldChanges(changes []domain.FieldChange)
	RecordLead(snap domain.Snapshot)
	RecordNotification(event string, err error)
	SetLiveSessions(n int)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Limits bound the size of a conversation and of the prompt sent upstream.
type Limits struct {
	MaxContextItems      int
	MaxMessageLength     int
	MaxConversationTurns int
}

type ChatService struct {
	params      ParamGetter
	llm         LLMClient
	engine      Engine
	store       SnapshotStore
	paramPrefix string
	limits      Limits
	notifier    Notifier
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	pinnedPrompt string
	openaiModel  string

	// Each session's chats run one at a time so the transcript alternates
	// user and assistant turns and persisted stays accurate.
	sessionsMu sync.Mutex
	sessions   map[string]*chatSession
}

type chatSession struct {
	mu        sync.Mutex
	persisted int

	// Transitions seen by an exchange that failed later on. They are carried
	// to the next successful exchange so no alert is lost.
	pendingCompleted bool
	pendingHot       bool
}

// carry folds the transitions of snap into the pending ones and returns snap
// with every pending transition raised.
func (cs *chatSession) carry(snap domain.Snapshot) domain.Snapshot {
	cs.pendingCompleted = cs.pendingCompleted || snap.CompletedThisTurn
	cs.pendingHot = cs.pendingHot || snap.BecameHotThisTurn
	snap.CompletedThisTurn = cs.pendingCompleted
	snap.BecameHotThisTurn = cs.pendingHot
	return snap
}

func (cs *chatSession) delivered() {
	cs.pendingCompleted = false
	cs.pendingHot = false
}

type ChatInput struct {
	Message   string
	SessionID string
}

type ChatOutput struct {
	Reply     string
	SessionID string
	Snapshot  domain.Snapshot
}

type Option func(*ChatService)

// WithNotifier enables lead alerts.
func WithNotifier(n Notifier) Option {
	return func(s *ChatService) {
		s.notifier = n
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *ChatService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ChatService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewChatService(p ParamGetter, llm LLMClient, eng Engine, store SnapshotStore, paramPrefix string, limits Limits, opts ...Option) (*ChatService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if eng == nil {
		return nil, errors.New("usecase: engine must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: snapshot store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if limits.MaxContextItems <= 0 {
		limits.MaxContextItems = defaultMaxContext
	}
	if limits.MaxMessageLength <= 0 {
		limits.MaxMessageLength = defaultMaxMessage
	}
	if limits.MaxConversationTurns <= 0 {
		limits.MaxConversationTurns = defaultMaxUserTurns
	}
	s := &ChatService{
		params:      p,
		llm:         llm,
		engine:      eng,
		store:       store,
		paramPrefix: paramPrefix,
		limits:      limits,
		recorder:    nopRecorder{},
		logger:      slog.Default(),
		now:         time.Now,
		sessions:    make(map[string]*chatSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Chat runs one exchange: the lead's message is applied to the conversation,
// the assistant replies, and the updated state is persisted.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (out ChatOutput, err error) {
	start := s.now()
	defer func() {
		outcome := outcomeOK
		var ucErr *Error
		if errors.As(err, &ucErr) {
			outcome = string(ucErr.Code)
		} else if err != nil {
			outcome = string(ErrorInternal)
		}
		s.recorder.RecordChat(outcome, s.now().Sub(start))
	}()

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.limits.MaxMessageLength {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	resuming := sessionID != ""
	if !resuming {
		sessionID = newUUID()
	} else if err := engine.ValidateSessionID(sessionID); err != nil {
		return ChatOutput{}, newError(ErrorInvalidInput, "invalid_session_id", err)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	cs := s.lockSession(sessionID)
	defer cs.mu.Unlock()

	prev, live := s.engine.GetState(sessionID)
	if !live && resuming {
		prev, err = s.resume(ctx, cs, sessionID)
		if err != nil {
			return ChatOutput{}, err
		}
	}
	if prev.Metrics.UserMessages >= s.limits.MaxConversationTurns {
		return ChatOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
	}

	flagged, err := s.llm.Moderate(ctx, message)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ChatOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return ChatOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
	}

	userSnap, err := s.engine.ProcessTurn(sessionID, domain.RoleUser, message)
	if err != nil {
		return ChatOutput{}, turnError(err)
	}
	s.recorder.RecordTurn(domain.RoleUser)
	s.recorder.RecordFieldChanges(userSnap.FieldHistory[len(prev.FieldHistory):])
	userSnap = cs.carry(userSnap)

	raw, err := s.llm.Chat(ctx, s.openaiModel, buildPromptMessages(s.pinnedPrompt, userSnap, s.limits.MaxContextItems))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ChatOutput{}, newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "openai_error", err)
	}
	decision, err := parseAssistantReply(raw)
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "openai_malformed_response", err)
	}
	if !decision.InScope {
		return ChatOutput{}, newError(ErrorInvalidQuestion, "relevance_off_topic", nil)
	}

	final, err := s.engine.ProcessTurn(sessionID, domain.RoleAssistant, decision.Reply)
	if err != nil {
		return ChatOutput{}, turnError(err)
	}
	s.recorder.RecordTurn(domain.RoleAssistant)
	final = cs.carry(final)

	if err := s.save(ctx, cs, final); err != nil {
		return ChatOutput{}, err
	}

	s.recorder.RecordLead(final)
	s.recorder.SetLiveSessions(s.engine.Sessions())
	s.notify(ctx, final)
	cs.delivered()

	return ChatOutput{
		Reply:     decision.Reply,
		SessionID: sessionID,
		Snapshot:  final,
	}, nil
}

// Conversation returns the current state of a session, loading it from the
// store when this instance has not seen it yet.
func (s *ChatService) Conversation(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if err := engine.ValidateSessionID(sessionID); err != nil {
		return domain.Snapshot{}, newError(ErrorInvalidInput, "invalid_session_id", err)
	}
	if snap, ok := s.engine.GetState(sessionID); ok {
		return snap, nil
	}

	cs := s.lockSession(sessionID)
	defer cs.mu.Unlock()
	if snap, ok := s.engine.GetState(sessionID); ok {
		return snap, nil
	}
	snap, err := s.resume(ctx, cs, sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snap.Messages) == 0 {
		return domain.Snapshot{}, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	return snap, nil
}

// resume restores a stored session into the engine. An unknown session yields
// an empty snapshot. The caller holds cs.mu.
func (s *ChatService) resume(ctx context.Context, cs *chatSession, sessionID string) (domain.Snapshot, error) {
	stored, found, err := s.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return domain.Snapshot{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if !found {
		return domain.Snapshot{}, nil
	}
	if err := s.engine.Restore(stored); err != nil {
		return domain.Snapshot{}, newError(ErrorInternal, "restore_error", err)
	}
	cs.persisted = len(stored.Messages)
	snap, _ := s.engine.GetState(sessionID)
	s.recorder.SetLiveSessions(s.engine.Sessions())
	s.logger.Debug("conversation restored", "session_id", sessionID, "messages", len(stored.Messages))
	return snap, nil
}

// save writes the messages of snap that are not stored yet. The caller holds
// cs.mu.
func (s *ChatService) save(ctx context.Context, cs *chatSession, snap domain.Snapshot) error {
	if err := s.store.SaveSnapshot(ctx, snap, cs.persisted); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return newError(ErrorInternal, "dynamodb_conflict", err)
		}
		return newError(ErrorInternal, "dynamodb_write_error", err)
	}
	cs.persisted = len(snap.Messages)
	return nil
}

func (s *ChatService) lockSession(sessionID string) *chatSession {
	s.sessionsMu.Lock()
	cs, ok := s.sessions[sessionID]
	if !ok {
		cs = &chatSession{}
		s.sessions[sessionID] = cs
	}
	s.sessionsMu.Unlock()
	cs.mu.Lock()
	return cs
}

// notify delivers alerts for the transitions of this exchange.
func (s *ChatService) notify(ctx context.Context, snap domain.Snapshot) {
	s.deliver(ctx, snap.SessionID, webhook.Alerts(snap))
}

// deliver posts alerts to the notifier. Delivery failures are logged and
// never fail the request.
func (s *ChatService) deliver(ctx context.Context, sessionID string, alerts []webhook.Alert) {
	if s.notifier == nil || len(alerts) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationsTimeout)
	defer cancel()
	for _, alert := range alerts {
		err := s.notifier.Notify(ctx, alert)
		s.recorder.RecordNotification(string(alert.Event), err)
		if err != nil {
			s.logger.Warn("lead alert failed", "session_id", sessionID, "event", alert.Event, "error", err)
		}
	}
}

func (s *ChatService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	pinnedPrompt, openaiModel, err := s.loadSSMParams(ctx)
	if err != nil {
		return err
	}

	s.pinnedPrompt = pinnedPrompt
	s.openaiModel = openaiModel
	s.cacheLoaded = true
	return nil
}

func (s *ChatService) loadSSMParams(ctx context.Context) (pinnedPrompt, openaiModel string, err error) {
	promptName := s.paramPrefix + "/pinned_prompt"
	modelName := s.paramPrefix + "/config/openai_model"

	values, err := s.params.GetParameters(ctx, promptName, modelName)
	if err != nil {
		return "", "", fmt.Errorf("usecase: load parameters: %w", err)
	}
	pinnedPrompt, ok := values[promptName]
	if !ok {
		return "", "", fmt.Errorf("usecase: load pinned prompt: %s not found", promptName)
	}
	openaiModel, ok = values[modelName]
	if !ok || strings.TrimSpace(openaiModel) == "" {
		return "", "", fmt.Errorf("usecase: load openai model: %s not found", modelName)
	}
	return pinnedPrompt, strings.TrimSpace(openaiModel), nil
}

func turnError(err error) error {
	if errors.Is(err, engine.ErrValidation) {
		return newError(ErrorInvalidInput, "invalid_turn", err)
	}
	return newError(ErrorInternal, "engine_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(domain.Role) {}
func (nopRecorder) RecordChat(string, time.Duration) {}
func (nopRecorder) RecordFieldChanges([]domain.FieldChange) {}
func (nopRecorder) RecordLead(domain.Snapshot) {}
func (nopRecorder) RecordNotification(string, error) {}
func (nopRecorder) SetLiveSessions(int) {}
