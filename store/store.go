package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Repository is the set of operations over document pointers.
type Repository interface {
	Create(ctx context.Context, r Record) error
	Read(ctx context.Context, key Key, opts ReadOptions) (*Record, error)
	Update(ctx context.Context, r Record) error
	HardDelete(ctx context.Context, key Key) error
	Supersede(ctx context.Context, r Record, oldKey Key) error
	Search(ctx context.Context, f SearchFilter) (*Page, error)
	Count(ctx context.Context, f SearchFilter) (int, error)
}

// Page is one page of search results. An empty Cursor means the results are exhausted.
type Page struct {
	Records []Record
	Cursor  string
}

// Conditions on the id attribute, which every stored pointer has.
const (
	condIDAbsent  = "attribute_not_exists(id)"
	condIDPresent = "attribute_exists(id)"
)

// Store provides DynamoDB operations over document pointers.
// It holds no data between calls and is safe for concurrent use.
type Store struct {
	client   DDBClient
	config   Config
	registry *TypeRegistry
}

var _ Repository = (*Store)(nil)

// New creates a new Store instance.
func New(client DDBClient, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewWithRegistry creates a new Store that rejects searches for unregistered types.
func NewWithRegistry(client DDBClient, config Config, registry *TypeRegistry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) table() *string {
	return aws.String(s.config.QualifiedTableName())
}

// Create writes a new pointer. It fails with ErrConflict if the id already exists.
func (s *Store) Create(ctx context.Context, r Record) error {
	item, err := MarshalRecord(r)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           s.table(),
		Item:                item,
		ConditionExpression: aws.String(condIDAbsent),
	})
	return translateError(OpCreate, err, ErrConflict)
}

// Read returns the pointer at key, optionally restricted to a set of types.
// It fails with ErrNotFound if nothing matches.
func (s *Store) Read(ctx context.Context, key Key, opts ReadOptions) (*Record, error) {
	if opts.Types.matchesNothing() {
		return nil, fmt.Errorf("read: %w", ErrNotFound)
	}
	expr, err := buildRead(key, opts)
	if err != nil {
		return nil, err
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 s.table(),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, translateError(OpRead, err, ErrNotFound)
	}
	if err := checkUnpaginated(len(out.Items), out.LastEvaluatedKey, s.config.ResultCeiling); err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("read: %w", ErrNotFound)
	}
	return UnmarshalRecord(out.Items[0])
}

// Update replaces an existing pointer in full. It fails with ErrNotFound if
// no pointer with the record's id exists.
func (s *Store) Update(ctx context.Context, r Record) error {
	item, err := MarshalRecord(r)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           s.table(),
		Item:                item,
		ConditionExpression: aws.String(condIDPresent),
	})
	return translateError(OpUpdate, err, ErrNotFound)
}

// HardDelete permanently removes the pointer at key. It fails with
// ErrNotFound if the pointer does not exist.
func (s *Store) HardDelete(ctx context.Context, key Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           s.table(),
		Key:                 key.Item(),
		ConditionExpression: aws.String(condIDPresent),
	})
	return translateError(OpHardDelete, err, ErrNotFound)
}

// Supersede atomically inserts r and deletes the pointer at oldKey.
// If r's id already exists or oldKey does not, the transaction is rejected as a
// whole with ErrConflict. It is not retried.
func (s *Store) Supersede(ctx context.Context, r Record, oldKey Key) error {
	item, err := MarshalRecord(r)
	if err != nil {
		return err
	}
	if r.Key().Equal(oldKey) {
		return fmt.Errorf("supersede: %w: new and old pointer share key %q", ErrConflict, oldKey.Hash)
	}

	items := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           s.table(),
				Item:                item,
				ConditionExpression: aws.String(condIDAbsent),
			},
		},
		{
			Delete: &types.Delete{
				TableName:           s.table(),
				Key:                 oldKey.Item(),
				ConditionExpression: aws.String(condIDPresent),
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return translateError(OpSupersede, err, ErrConflict)
}

// Search returns one page of pointers for the filter's subject in index order.
//
// Each fetch asks for one item more than still fits on the page so that the
// returned cursor is empty exactly when no further matches exist.
func (s *Store) Search(ctx context.Context, f SearchFilter) (*Page, error) {
	if err := s.checkTypes(f.Types); err != nil {
		return nil, err
	}
	var startKey map[string]types.AttributeValue
	if f.Cursor != "" {
		var err error
		if startKey, err = s.decodeSearchCursor(f); err != nil {
			return nil, err
		}
	}
	if f.NHSNumber != "" && f.Types.matchesNothing() {
		return &Page{}, nil
	}
	expr, err := BuildQuery(f)
	if err != nil {
		return nil, err
	}

	limit := s.config.pageLimit(f.Limit)
	page := &Page{Records: make([]Record, 0, limit)}

	for {
		remaining := limit - len(page.Records)
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 s.table(),
			IndexName:                 aws.String(s.config.IndexName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
			Limit:                     aws.Int32(int32(remaining + 1)),
		})
		if err != nil {
			return nil, translateError(OpSearch, err, ErrNotFound)
		}
		if err := checkWithinCeiling(max(int(out.Count), len(out.Items)), s.config.ResultCeiling); err != nil {
			return nil, err
		}

		for i, raw := range out.Items {
			if i == remaining {
				// A further match exists beyond this page.
				page.Cursor, err = EncodeCursor(cursorFromItem(out.Items[i-1]))
				if err != nil {
					return nil, err
				}
				return page, nil
			}
			r, err := UnmarshalRecord(raw)
			if err != nil {
				return nil, err
			}
			page.Records = append(page.Records, *r)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return page, nil
		}
		if len(page.Records) == limit {
			page.Cursor, err = EncodeCursor(out.LastEvaluatedKey)
			if err != nil {
				return nil, err
			}
			return page, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Count returns the number of pointers matching the filter, ignoring Limit and Cursor.
func (s *Store) Count(ctx context.Context, f SearchFilter) (int, error) {
	if err := s.checkTypes(f.Types); err != nil {
		return 0, err
	}
	if f.NHSNumber != "" && f.Types.matchesNothing() {
		return 0, nil
	}
	expr, err := BuildQuery(f)
	if err != nil {
		return 0, err
	}

	total := 0
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 s.table(),
		IndexName:                 aws.String(s.config.IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, translateError(OpCount, err, ErrNotFound)
		}
		total += int(out.Count)
	}
	return total, nil
}

func (s *Store) checkTypes(t TypeFilter) error {
	if code, ok := s.registry.unknown(t); ok {
		return fmt.Errorf("%w: unknown document type %q", ErrInvalidFilter, code)
	}
	return nil
}

// decodeSearchCursor decodes f.Cursor and checks it belongs to f's subject.
func (s *Store) decodeSearchCursor(f SearchFilter) (map[string]types.AttributeValue, error) {
	startKey, err := DecodeCursor(f.Cursor)
	if err != nil {
		return nil, err
	}
	subject := Record{NHSNumber: f.NHSNumber}.SubjectKey()
	if pk1 := startKey[attrPK1].(*types.AttributeValueMemberS).Value; pk1 != subject {
		return nil, fmt.Errorf("%w: cursor belongs to a different subject", ErrInvalidFilter)
	}
	return startKey, nil
}
