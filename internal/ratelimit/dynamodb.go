package ratelimit

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
)

const (
	pkPrefixClient = "CLIENT#"
	skPrefixWindow = "WINDOW#"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoDB.
type dynamodbAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDB keeps one counter item per client and window. Items carry a
// ttl attribute so the table's TTL setting removes spent windows.
type DynamoDB struct {
	api       dynamodbAPI
	tableName string
	limit     int
	window    time.Duration
	now       func() time.Time
}

func NewDynamoDB(api dynamodbAPI, tableName string, limit int, window time.Duration) (*DynamoDB, error) {
	if api == nil {
		return nil, errors.New("ratelimit: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("ratelimit: table name must not be empty")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &DynamoDB{api: api, tableName: tableName, limit: limit, window: window, now: time.Now}, nil
}

func clientPK(key string) string {
	return pkPrefixClient + key
}

func windowSK(start time.Time) string {
	return skPrefixWindow + start.UTC().Format(time.RFC3339)
}

// Allow atomically increments the window counter and reads it back.
func (d *DynamoDB) Allow(ctx context.Context, key string) (bool, error) {
	start := windowStart(d.now(), d.window)
	expires := start.Add(2 * d.window).Unix()

	out, err := d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: clientPK(key)},
			"SK": &types.AttributeValueMemberS{Value: windowSK(start)},
		},
		UpdateExpression: aws.String("ADD #count :one SET #ttl = if_not_exists(#ttl, :ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#count": "requests",
			"#ttl":   "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: UpdateItem: %w", err)
	}
	if out == nil {
		return false, errors.New("ratelimit: UpdateItem returned no output")
	}

	count, err := intAttr(out.Attributes, "requests")
	if err != nil {
		return false, fmt.Errorf("ratelimit: decode counter: %w", err)
	}
	return count <= d.limit, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("ratelimit: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("ratelimit: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
