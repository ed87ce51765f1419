package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hirepal/internal/domain"
	"hirepal/internal/session"
)

const (
	skPrefixTurn       = "TURN#"
	skMeta             = "META#"
	defaultTTL         = 30 * 24 * time.Hour
	maxTurnsPerAppend  = 50
	turnSequenceDigits = 10
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoRegistry.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// sessionMeta is the META# record of a session. Its presence is what makes a
// session id valid.
type sessionMeta struct {
	SessionID    string
	CreatedAt    string
	LastActivity string
	Turns        int
	TTL          int64
}

// DynamoRegistry stores session logs in a single DynamoDB table:
// PK=SESSION#<id>, SK=META# for the session record and SK=TURN#<seq> per turn.
type DynamoRegistry struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ session.Registry = (*DynamoRegistry)(nil)

// New creates a DynamoDB backed registry. Items expire through the table TTL
// attribute "ttl"; a non-positive ttl selects 30 days.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoRegistry, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DynamoRegistry{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// turnSK zero-pads the sequence so lexical order equals append order.
func turnSK(seq int) string {
	return fmt.Sprintf("%s%0*d", skPrefixTurn, turnSequenceDigits, seq)
}

func (c *DynamoRegistry) ttlValue() int64 {
	return c.now().Add(c.ttl).Unix()
}

func (c *DynamoRegistry) metaKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// Create writes a fresh META# record for a new session id.
func (c *DynamoRegistry) Create(ctx context.Context) (string, error) {
	id := session.NewID()
	now := c.now().UTC().Format(time.RFC3339Nano)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: metaItem(sessionMeta{
			SessionID:    id,
			CreatedAt:    now,
			LastActivity: now,
			TTL:          c.ttlValue(),
		}),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("repository: Create: %w", err)
	}
	return id, nil
}

// Append writes the turns and bumps the META# turn counter in one transaction.
// The counter condition rejects writers that raced on a stale count.
func (c *DynamoRegistry) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	if len(turns) > maxTurnsPerAppend {
		return fmt.Errorf("repository: Append: at most %d turns per call", maxTurnsPerAppend)
	}
	meta, err := c.getMeta(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}

	ttl := c.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(turns)+1)
	for i, t := range turns {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                turnItem(sessionID, meta.Turns+i+1, t, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(c.tableName),
			Key:                 c.metaKey(sessionID),
			UpdateExpression:    aws.String("SET turns = :next, lastActivity = :now, #ttl = :ttl"),
			ConditionExpression: aws.String("attribute_exists(PK) AND turns = :prev"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":next": &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns + len(turns))},
				":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
				":now":  &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339Nano)},
				":ttl":  &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
			},
		},
	})

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("repository: Append: concurrent write on session %s: %w", sessionID, err)
		}
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// History returns every turn of the session in append order.
func (c *DynamoRegistry) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if _, err := c.getMeta(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("repository: History: %w", err)
	}

	var (
		turns []domain.Turn
		start map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ScanIndexForward:  aws.Bool(true),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: History query: %w", err)
		}
		for _, item := range out.Items {
			t, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: History unmarshal: %w", err)
			}
			turns = append(turns, t)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

// Expire removes the META# record. Orphaned turns are left to the table TTL.
func (c *DynamoRegistry) Expire(ctx context.Context, sessionID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.metaKey(sessionID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("repository: Expire: %w", session.ErrNotFound)
		}
		return fmt.Errorf("repository: Expire: %w", err)
	}
	return nil
}

func (c *DynamoRegistry) getMeta(ctx context.Context, sessionID string) (sessionMeta, error) {
	if strings.TrimSpace(sessionID) == "" {
		return sessionMeta{}, session.ErrNotFound
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.metaKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return sessionMeta{}, fmt.Errorf("get meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return sessionMeta{}, session.ErrNotFound
	}
	meta, err := itemToMeta(out.Item)
	if err != nil {
		return sessionMeta{}, fmt.Errorf("decode meta: %w", err)
	}
	// DynamoDB TTL deletion lags; treat expired records as gone.
	if meta.TTL > 0 && meta.TTL < c.now().Unix() {
		return sessionMeta{}, session.ErrNotFound
	}
	return meta, nil
}

func itemToMeta(item map[string]types.AttributeValue) (sessionMeta, error) {
	id, err := strAttr(item, "sessionId")
	if err != nil {
		return sessionMeta{}, err
	}
	turns, err := intAttr(item, "turns")
	if err != nil {
		return sessionMeta{}, err
	}
	created, _ := strAttr(item, "createdAt")         // allow empty
	lastActivity, _ := strAttr(item, "lastActivity") // allow empty
	ttl, _ := intAttr(item, "ttl")                   // allow empty
	return sessionMeta{
		SessionID:    id,
		CreatedAt:    created,
		LastActivity: lastActivity,
		Turns:        turns,
		TTL:          int64(ttl),
	}, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	t := domain.Turn{Role: role, Text: text}
	if created, err := strAttr(item, "createdAt"); err == nil {
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	}
	return t, nil
}

func metaItem(meta sessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: sessionPK(meta.SessionID)},
		"SK":           &types.AttributeValueMemberS{Value: skMeta},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"createdAt":    &types.AttributeValueMemberS{Value: meta.CreatedAt},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func turnItem(sessionID string, seq int, t domain.Turn, ttl int64) map[string]types.AttributeValue {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(seq)},
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		"role":      &types.AttributeValueMemberS{Value: t.Role},
		"text":      &types.AttributeValueMemberS{Value: t.Text},
		"createdAt": &types.AttributeValueMemberS{Value: created.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
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
