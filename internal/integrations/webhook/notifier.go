// Package webhook delivers lead alerts to the sales team's webhook endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead-engine/internal/domain"
)

// Event names the lead transition that triggered an alert.
type Event string

const (
	EventConversationCompleted Event = "conversation_completed"
	EventLeadHot               Event = "lead_hot"
	EventContactSubmitted      Event = "contact_submitted"
)

// Alert is the JSON body posted to the webhook.
type Alert struct {
	Event        Event                      `json:"event"`
	SessionID    string                     `json:"session_id"`
	Name         string                     `json:"name,omitempty"`
	Email        string                     `json:"email,omitempty"`
	Phone        string                     `json:"phone,omitempty"`
	Intent       string                     `json:"buying_or_selling,omitempty"`
	PropertyType string                     `json:"property_type,omitempty"`
	Address      string                     `json:"property_address,omitempty"`
	Timeline     string                     `json:"timeline,omitempty"`
	Message      string                     `json:"message,omitempty"`
	Completeness float64                    `json:"completeness_percentage"`
	Score        domain.LeadScore           `json:"lead_score"`
	Actions      []domain.RecommendedAction `json:"recommended_actions"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}

// NewAlert summarises a snapshot for the given event.
func NewAlert(event Event, snap domain.Snapshot) Alert {
	return Alert{
		Event:        event,
		SessionID:    snap.SessionID,
		Name:         snap.Value(domain.FieldName),
		Email:        snap.Value(domain.FieldEmail),
		Phone:        snap.Value(domain.FieldPhone),
		Intent:       snap.Value(domain.FieldBuyingOrSelling),
		PropertyType: snap.Value(domain.FieldPropertyType),
		Address:      snap.Value(domain.FieldPropertyAddress),
		Timeline:     snap.Value(domain.FieldTimeline),
		Completeness: snap.CompletenessPercentage,
		Score:        snap.LeadScore,
		Actions:      snap.RecommendedActions,
		OccurredAt:   snap.UpdatedAt,
	}
}

// Alerts returns one alert per transition observed on the snapshot's turn.
func Alerts(snap domain.Snapshot) []Alert {
	var out []Alert
	if snap.CompletedThisTurn {
		out = append(out, NewAlert(EventConversationCompleted, snap))
	}
	if snap.BecameHotThisTurn {
		out = append(out, NewAlert(EventLeadHot, snap))
	}
	return out
}

// Notifier POSTs alerts to a single webhook URL.
type Notifier struct {
	url    string
	client *http.Client
}

type Option func(*Notifier)

func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// New creates a Notifier for rawURL, which must be an absolute http(s) URL.
func New(rawURL string, opts ...Option) (*Notifier, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New("webhook: url must be an absolute http(s) URL")
	}
	n := &Notifier{
		url:    rawURL,
		client: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify delivers one alert. Any non-2xx response is an error.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("webhook: encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lead-Event", string(alert.Event))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
