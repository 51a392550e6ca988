// Package handler adapts API Gateway proxy events to the chat use case.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"lead-engine/internal/domain"
	"lead-engine/internal/usecase"
)

const (
	correlationHeader  = "X-Correlation-Id"
	conversationsRoute = "/conversations/"
	errorNotAllowed    = "METHOD_NOT_ALLOWED"
)

type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Conversation(ctx context.Context, sessionID string) (domain.Snapshot, error)
	SubmitContact(ctx context.Context, in usecase.ContactInput) (usecase.ContactOutput, error)
	Leads(ctx context.Context, in usecase.LeadsInput) ([]domain.LeadSummary, error)
	Health() usecase.Health
}

// MetricsRenderer exposes collected metrics in a text format.
type MetricsRenderer interface {
	Render() ([]byte, string, error)
}

type Handler struct {
	uc      UseCase
	metrics MetricsRenderer
	logger  *slog.Logger
}

type Option func(*Handler)

func WithMetrics(m MetricsRenderer) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID string          `json:"session_id"`
	Reply     string          `json:"reply"`
	State     domain.Snapshot `json:"state"`
}

type contactRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	LeadType  string `json:"lead_type"`
	SessionID string `json:"session_id"`
}

type contactResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"session_id"`
	State     domain.Snapshot `json:"state"`
}

type leadsResponse struct {
	Leads []domain.LeadSummary `json:"leads"`
}

type healthResponse struct {
	Status              string    `json:"status"`
	Timestamp           time.Time `json:"timestamp"`
	ActiveConversations int       `json:"active_conversations"`
}

type errorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func NewHandler(uc UseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes POST /chat, POST /contact, GET /conversations/{id},
// GET /leads, GET /health and GET /metrics.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	path := strings.TrimRight(req.Path, "/")
	switch {
	case path == "/chat":
		if req.HTTPMethod != http.MethodPost {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		return h.chat(ctx, req, corrID, logger), nil
	case path == "/contact":
		if req.HTTPMethod != http.MethodPost {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		return h.contact(ctx, req, corrID, logger), nil
	case path == "/leads":
		if req.HTTPMethod != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		return h.leads(ctx, req, corrID, logger), nil
	case path == "/health":
		if req.HTTPMethod != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		hs := h.uc.Health()
		return okJSON(healthResponse{Status: "healthy", Timestamp: hs.CheckedAt, ActiveConversations: hs.ActiveConversations}, corrID), nil
	case strings.HasPrefix(path, conversationsRoute):
		if req.HTTPMethod != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		id := req.PathParameters["id"]
		if id == "" {
			id = strings.TrimPrefix(path, conversationsRoute)
		}
		return h.conversation(ctx, id, corrID, logger), nil
	case path == "/metrics" && h.metrics != nil:
		if req.HTTPMethod != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errorNotAllowed, "", corrID), nil
		}
		return h.renderMetrics(corrID, logger), nil
	}
	return errorJSON(http.StatusNotFound, string(usecase.ErrorNotFound), "route_not_found", corrID), nil
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	var body chatRequest
	if err := decodeBody(req, &body); err != nil {
		logger.Warn("invalid request body", "err", err)
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_body", corrID)
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Message: body.Message, SessionID: body.SessionID})
	if err != nil {
		return h.failure(err, corrID, logger)
	}
	logger.Info("chat handled",
		"session_id", out.SessionID,
		"completeness", out.Snapshot.CompletenessPercentage,
		"score", out.Snapshot.LeadScore.TotalScore,
		"category", out.Snapshot.LeadScore.Category,
	)
	return okJSON(chatResponse{SessionID: out.SessionID, Reply: out.Reply, State: out.Snapshot}, corrID)
}

func (h *Handler) contact(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	var body contactRequest
	if err := decodeBody(req, &body); err != nil {
		logger.Warn("invalid request body", "err", err)
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_body", corrID)
	}

	out, err := h.uc.SubmitContact(ctx, usecase.ContactInput{
		Name:      body.Name,
		Email:     body.Email,
		Phone:     body.Phone,
		Message:   body.Message,
		LeadType:  body.LeadType,
		SessionID: body.SessionID,
	})
	if err != nil {
		return h.failure(err, corrID, logger)
	}
	logger.Info("contact handled", "session_id", out.SessionID, "category", out.Snapshot.LeadScore.Category)
	return okJSON(contactResponse{Success: true, SessionID: out.SessionID, State: out.Snapshot}, corrID)
}

func (h *Handler) leads(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	in := usecase.LeadsInput{Category: req.QueryStringParameters["category"]}
	if raw := strings.TrimSpace(req.QueryStringParameters["limit"]); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_limit", corrID)
		}
		in.Limit = limit
	}
	leads, err := h.uc.Leads(ctx, in)
	if err != nil {
		return h.failure(err, corrID, logger)
	}
	if leads == nil {
		leads = []domain.LeadSummary{}
	}
	return okJSON(leadsResponse{Leads: leads}, corrID)
}

func (h *Handler) conversation(ctx context.Context, sessionID, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	snap, err := h.uc.Conversation(ctx, sessionID)
	if err != nil {
		return h.failure(err, corrID, logger)
	}
	return okJSON(snap, corrID)
}

func (h *Handler) renderMetrics(corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	body, contentType, err := h.metrics.Render()
	if err != nil {
		logger.Error("render metrics", "err", err)
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "metrics_error", corrID)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": contentType, correlationHeader: corrID},
		Body:       string(body),
	}
}

func (h *Handler) failure(err error, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("unexpected error", "err", err)
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "", corrID)
	}
	status := statusFor(ucErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	} else {
		logger.Warn("request rejected", "code", ucErr.Code, "reason", ucErr.Reason)
	}
	return errorJSON(status, string(ucErr.Code), ucErr.Reason, corrID)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidQuestion:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return err
		}
		raw = decoded
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return newCorrelationID()
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

func okJSON(v any, corrID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "encode_error", corrID)
	}
	return jsonResponse(http.StatusOK, body, corrID)
}

func errorJSON(status int, code, reason, corrID string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: code, Reason: reason, CorrelationID: corrID})
	return jsonResponse(status, body, corrID)
}

func jsonResponse(status int, body []byte, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}
