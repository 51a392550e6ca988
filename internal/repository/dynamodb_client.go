package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"lead-engine/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// One slot of every transaction is taken by the META# item.
	maxTransactItems = 100

	// DefaultLeadsIndex is the GSI over META# items keyed by category and
	// sorted by score.
	DefaultLeadsIndex = "category-score-index"
)

// ErrConflict reports that the stored conversation moved on since it was
// loaded, so the write was discarded.
var ErrConflict = errors.New("repository: conversation was modified concurrently")

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table for conversation state.
type Client struct {
	api        dynamodbAPI
	tableName  string
	leadsIndex string
	now        func() time.Time
}

type Option func(*Client)

// WithLeadsIndex overrides the GSI used by ListLeads.
func WithLeadsIndex(name string) Option {
	return func(c *Client) {
		if name = strings.TrimSpace(name); name != "" {
			c.leadsIndex = name
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, leadsIndex: DefaultLeadsIndex, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// leadRecord is the part of a snapshot that cannot be rebuilt from the
// message log. It is stored as JSON on the META# item.
type leadRecord struct {
	Fields          map[domain.FieldKey]domain.ExtractedField `json:"fields"`
	FieldHistory    []domain.FieldChange                      `json:"field_history"`
	SolicitedField  *domain.FieldKey                          `json:"solicited_field,omitempty"`
	Complete        bool                                      `json:"conversation_complete"`
	CompletedAtTurn int                                       `json:"completed_at_turn,omitempty"`
	LeadScore       domain.LeadScore                          `json:"lead_score"`
	CreatedAt       time.Time                                 `json:"created_at"`
	UpdatedAt       time.Time                                 `json:"updated_at"`
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(sessionID string) string {
	return "CONV#" + sessionID
}

// msgSK orders messages by sequence number.
func msgSK(seq int) string {
	return fmt.Sprintf("%s%06d", skPrefixMsg, seq)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// SaveSnapshot persists the messages appended since persisted and replaces the
// META# lead record in one transaction. The write only succeeds while the
// stored turn count still equals persisted; otherwise ErrConflict is returned.
func (c *Client) SaveSnapshot(ctx context.Context, snap domain.Snapshot, persisted int) error {
	if strings.TrimSpace(snap.SessionID) == "" {
		return errors.New("repository: SaveSnapshot: session id is required")
	}
	if persisted < 0 || persisted > len(snap.Messages) {
		return fmt.Errorf("repository: SaveSnapshot: persisted count %d out of range", persisted)
	}
	fresh := snap.Messages[persisted:]
	if len(fresh)+1 > maxTransactItems {
		return fmt.Errorf("repository: SaveSnapshot: %d new messages exceed a single transaction", len(fresh))
	}

	ttl := c.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(fresh)+1)
	for _, msg := range fresh {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                messageItem(snap.SessionID, msg, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	meta, err := metaItem(snap, ttl)
	if err != nil {
		return fmt.Errorf("repository: SaveSnapshot: %w", err)
	}
	put := &types.Put{
		TableName: aws.String(c.tableName),
		Item:      meta,
	}
	if persisted == 0 {
		put.ConditionExpression = aws.String("attribute_not_exists(PK) OR turns = :prev")
	} else {
		put.ConditionExpression = aws.String("turns = :prev")
	}
	put.ExpressionAttributeValues = map[string]types.AttributeValue{
		":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(persisted)},
	}
	items = append(items, types.TransactWriteItem{Put: put})

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("repository: SaveSnapshot: %w: %v", ErrConflict, err)
		}
		return fmt.Errorf("repository: SaveSnapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds the stored state of a session. Derived views (score,
// actions, completeness) are left for the engine to recompute. ok is false
// when nothing is stored for the session.
func (c *Client) LoadSnapshot(ctx context.Context, sessionID string) (domain.Snapshot, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("repository: LoadSnapshot get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Snapshot{}, false, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("repository: LoadSnapshot decode turns: %w", err)
	}
	blob, err := strAttr(out.Item, "lead")
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("repository: LoadSnapshot decode lead: %w", err)
	}
	var rec leadRecord
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("repository: LoadSnapshot decode lead: %w", err)
	}

	msgs, err := c.messages(ctx, sessionID)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	if len(msgs) != turns {
		return domain.Snapshot{}, false, fmt.Errorf("repository: LoadSnapshot: found %d messages, META# records %d", len(msgs), turns)
	}

	return domain.Snapshot{
		SessionID:            sessionID,
		Messages:             msgs,
		Fields:               rec.Fields,
		FieldHistory:         rec.FieldHistory,
		SolicitedField:       rec.SolicitedField,
		ConversationComplete: rec.Complete,
		CompletedAtTurn:      rec.CompletedAtTurn,
		LeadScore:            rec.LeadScore,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}, true, nil
}

// ListLeads returns up to limit stored leads of one category that have an
// email address, highest score first.
func (c *Client) ListLeads(ctx context.Context, category domain.Category, limit int) ([]domain.LeadSummary, error) {
	if limit <= 0 {
		return nil, errors.New("repository: ListLeads: limit must be positive")
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(c.leadsIndex),
		KeyConditionExpression: aws.String("#category = :category"),
		ExpressionAttributeNames: map[string]string{
			"#category": "category",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":category": &types.AttributeValueMemberS{Value: string(category)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out := make([]domain.LeadSummary, 0, limit)
	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListLeads query: %w", err)
		}
		for _, item := range page.Items {
			lead, err := itemToLeadSummary(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListLeads unmarshal: %w", err)
			}
			if lead.Email == "" {
				continue
			}
			out = append(out, lead)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func itemToLeadSummary(item map[string]types.AttributeValue) (domain.LeadSummary, error) {
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.LeadSummary{}, err
	}
	blob, err := strAttr(item, "lead")
	if err != nil {
		return domain.LeadSummary{}, err
	}
	var rec leadRecord
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return domain.LeadSummary{}, fmt.Errorf("repository: decode lead: %w", err)
	}
	var completeness float64
	if n, ok := item["completeness"].(*types.AttributeValueMemberN); ok {
		completeness, err = strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return domain.LeadSummary{}, fmt.Errorf("repository: parse attribute %q: %w", "completeness", err)
		}
	}
	snap := domain.Snapshot{Fields: rec.Fields}
	return domain.LeadSummary{
		SessionID:    sessionID,
		Name:         snap.Value(domain.FieldName),
		Email:        snap.Value(domain.FieldEmail),
		Phone:        snap.Value(domain.FieldPhone),
		Intent:       snap.Value(domain.FieldBuyingOrSelling),
		Completeness: completeness,
		Complete:     rec.Complete,
		LeadScore:    rec.LeadScore,
		LastActivity: rec.UpdatedAt,
	}, nil
}

// messages pages through every MSG# item of a session in sequence order.
func (c *Client) messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var msgs []domain.Message
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: LoadSnapshot query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: LoadSnapshot unmarshal: %w", err)
			}
			msgs = append(msgs, msg)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return msgs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	seq, err := intAttr(item, "seq")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	ts, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.Message{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: parse attribute %q: %w", "timestamp", err)
	}

	return domain.Message{
		Seq:       seq,
		Role:      domain.Role(role),
		Content:   content,
		Timestamp: parsed,
	}, nil
}

func messageItem(sessionID string, msg domain.Message, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: convPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(msg.Seq)},
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		"seq":       &types.AttributeValueMemberN{Value: strconv.Itoa(msg.Seq)},
		"role":      &types.AttributeValueMemberS{Value: string(msg.Role)},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"timestamp": &types.AttributeValueMemberS{Value: msg.Timestamp.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func metaItem(snap domain.Snapshot, ttl int64) (map[string]types.AttributeValue, error) {
	blob, err := json.Marshal(leadRecord{
		Fields:          snap.Fields,
		FieldHistory:    snap.FieldHistory,
		SolicitedField:  snap.SolicitedField,
		Complete:        snap.ConversationComplete,
		CompletedAtTurn: snap.CompletedAtTurn,
		LeadScore:       snap.LeadScore,
		CreatedAt:       snap.CreatedAt,
		UpdatedAt:       snap.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode lead: %w", err)
	}
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: convPK(snap.SessionID)},
		"SK":           &types.AttributeValueMemberS{Value: skMeta},
		"sessionId":    &types.AttributeValueMemberS{Value: snap.SessionID},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(len(snap.Messages))},
		"lastActivity": &types.AttributeValueMemberS{Value: snap.UpdatedAt.UTC().Format(time.RFC3339)},
		"completeness": &types.AttributeValueMemberN{Value: strconv.FormatFloat(snap.CompletenessPercentage, 'f', -1, 64)},
		"complete":     &types.AttributeValueMemberBOOL{Value: snap.ConversationComplete},
		"score":        &types.AttributeValueMemberN{Value: strconv.Itoa(snap.LeadScore.TotalScore)},
		"category":     &types.AttributeValueMemberS{Value: string(snap.LeadScore.Category)},
		"lead":         &types.AttributeValueMemberS{Value: string(blob)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
