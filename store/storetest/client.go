// Package storetest provides an in-memory DynamoDB client for testing code
// built on the store package.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the table and index keys, mirroring the store layout.
const (
	PK  = "pk"
	SK  = "sk"
	PK1 = "pk_1"
	SK1 = "sk_1"
)

// Client is an in-memory implementation of store.DDBClient for a single table
// with one global secondary index. Writes are serialised under a mutex, so
// conditional writes race the way they do against DynamoDB: one wins. Written
// items are copied with numbers in DynamoDB's canonical form, so "2.0" is
// read back as "2".
type Client struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	errs  map[string][]error

	// Calls counts invocations per operation name ("PutItem", "Query", ...).
	Calls map[string]int
}

// NewClient creates an empty Client.
func NewClient() *Client {
	return &Client{
		items: make(map[string]map[string]types.AttributeValue),
		errs:  make(map[string][]error),
		Calls: make(map[string]int),
	}
}

// FailNext makes the next call of op return err without touching state.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[op] = append(c.errs[op], err)
}

// Len returns the number of stored items.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Item returns a stored item by partition and sort key, or nil.
func (c *Client) Item(pk, sk string) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[itemKey(pk, sk)]
}

// Put stores an item unconditionally and verbatim, bypassing call accounting
// and number canonicalisation.
func (c *Client) Put(item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[itemKeyOf(item)] = item
}

// PutItem implements store.DDBClient.
func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, "PutItem"); err != nil {
		return nil, err
	}

	item, err := canonicalItem(params.Item)
	if err != nil {
		return nil, err
	}
	key := itemKeyOf(item)
	ok, err := check(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, c.items[key])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	c.items[key] = item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements store.DDBClient.
func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, "DeleteItem"); err != nil {
		return nil, err
	}

	key := itemKeyOf(params.Key)
	ok, err := check(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, c.items[key])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(c.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// TransactWriteItems implements store.DDBClient for Put and Delete items.
// All conditions are evaluated before anything is applied.
func (c *Client) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, "TransactWriteItems"); err != nil {
		return nil, err
	}

	puts := make([]map[string]types.AttributeValue, len(params.TransactItems))
	for i, ti := range params.TransactItems {
		if ti.Put == nil {
			continue
		}
		item, err := canonicalItem(ti.Put.Item)
		if err != nil {
			return nil, err
		}
		puts[i] = item
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false
	for i, ti := range params.TransactItems {
		var (
			ok  bool
			err error
		)
		switch {
		case ti.Put != nil:
			ok, err = check(ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues, c.items[itemKeyOf(puts[i])])
		case ti.Delete != nil:
			ok, err = check(ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues, c.items[itemKeyOf(ti.Delete.Key)])
		default:
			return nil, fmt.Errorf("storetest: unsupported transaction item %d", i)
		}
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			cancelled = true
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for i, ti := range params.TransactItems {
		if ti.Put != nil {
			c.items[itemKeyOf(puts[i])] = puts[i]
		} else {
			delete(c.items, itemKeyOf(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// Query implements store.DDBClient. Items are returned in sort key order of
// the table or of the index named by IndexName; Limit bounds the items
// evaluated, and a LastEvaluatedKey is reported whenever the limit is reached.
func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, "Query"); err != nil {
		return nil, err
	}

	hashAttr, rangeAttr := PK, SK
	if aws.ToString(params.IndexName) != "" {
		hashAttr, rangeAttr = PK1, SK1
	}

	keyCond, err := compile(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	var filter predicate
	if params.FilterExpression != nil {
		if filter, err = compile(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}

	var candidates []map[string]types.AttributeValue
	for _, item := range c.items {
		if _, ok := item[hashAttr]; ok && keyCond(item) {
			candidates = append(candidates, item)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return orderKey(candidates[i], rangeAttr) < orderKey(candidates[j], rangeAttr)
	})

	if params.ExclusiveStartKey != nil {
		start := orderKey(params.ExclusiveStartKey, rangeAttr)
		i := sort.Search(len(candidates), func(i int) bool {
			return orderKey(candidates[i], rangeAttr) > start
		})
		candidates = candidates[i:]
	}

	out := &dynamodb.QueryOutput{}
	limit := len(candidates)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}
	for _, item := range candidates[:limit] {
		out.ScannedCount++
		if filter != nil && !filter(item) {
			continue
		}
		out.Count++
		if params.Select != types.SelectCount {
			out.Items = append(out.Items, item)
		}
	}
	if params.Limit != nil && limit == int(*params.Limit) && limit > 0 {
		last := candidates[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{}
		for _, name := range []string{PK, SK, hashAttr, rangeAttr} {
			if v, ok := last[name]; ok {
				out.LastEvaluatedKey[name] = v
			}
		}
	}
	return out, nil
}

// begin records the call and returns an injected or context error.
func (c *Client) begin(ctx context.Context, op string) error {
	c.Calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := c.errs[op]; len(errs) > 0 {
		c.errs[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func check(cond *string, names map[string]string, values map[string]types.AttributeValue, existing map[string]types.AttributeValue) (bool, error) {
	if cond == nil {
		return true, nil
	}
	p, err := compile(*cond, names, values)
	if err != nil {
		return false, err
	}
	if existing == nil {
		existing = map[string]types.AttributeValue{}
	}
	return p(existing), nil
}

func itemKey(pk, sk string) string {
	return pk + "\x00" + sk
}

func itemKeyOf(item map[string]types.AttributeValue) string {
	return itemKey(stringAttr(item, PK), stringAttr(item, SK))
}

// orderKey sorts by the range attribute, then by primary key for ties.
func orderKey(item map[string]types.AttributeValue, rangeAttr string) string {
	return stringAttr(item, rangeAttr) + "\x00" + stringAttr(item, PK) + "\x00" + stringAttr(item, SK)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
