package store_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/pointers/store"
	"github.com/jacentio/pointers/store/storetest"
)

const (
	typeMentalHealthPlan = "http://snomed.info/sct|736253002"
	typeEndOfLifePlan    = "http://snomed.info/sct|861421000000109"
	typeReSPECT          = "http://snomed.info/sct|1382601000000107"

	nhsNumber      = "9278693472"
	otherNHSNumber = "3137554160"
)

func pointer(id, nhs, docType string) store.Record {
	r := store.Record{
		ID:        id,
		NHSNumber: nhs,
		Type:      docType,
		Document:  fmt.Sprintf(`{"resourceType":"DocumentReference","id":%q}`, id),
		Source:    "NRLF",
		Version:   1,
		CreatedOn: "2024-01-02T03:04:05.000Z",
	}
	r.CustodianID = r.ProducerID()
	return r
}

func newStore(t *testing.T) (*store.Store, *storetest.Client) {
	t.Helper()
	client := storetest.NewClient()
	return store.New(client, store.DefaultConfig()), client
}

func TestStore_CreateThenRead(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	r := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	r.Extra = map[string]any{
		"schemas":  []any{"v1", "v2"},
		"priority": int64(3),
		"score":    0.5,
		"huge":     1e21,
		"tiny":     -1.5e-9,
		"maxInt":   int64(math.MaxInt64),
		"meta":     map[string]any{"flag": true, "note": nil},
	}
	require.NoError(t, s.Create(ctx, r))

	got, err := s.Read(ctx, r.Key(), store.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, r, *got)
}

func TestStore_CreateTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	original := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, original))

	second := original
	second.Document = `{"changed":true}`
	err := s.Create(ctx, second)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Read(ctx, original.Key(), store.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, original.Document, got.Document)
}

func TestStore_ConcurrentCreateOneWinner(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)
	r := pointer("Y05868|race", nhsNumber, typeMentalHealthPlan)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, 1, client.Len())
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	r := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, r))

	updated := r
	updated.Document = `{"content":[{"attachment":{"url":"https://example.org/different_doc.pdf"}}]}`
	updated.UpdatedOn = "2024-02-02T00:00:00.000Z"
	require.NoError(t, s.Update(ctx, updated))

	got, err := s.Read(ctx, r.Key(), store.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, updated, *got)
}

func TestStore_UpdateMissingIsNotFound(t *testing.T) {
	s, client := newStore(t)

	err := s.Update(context.Background(), pointer("Y05868|missing", nhsNumber, typeMentalHealthPlan))
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, client.Len())
}

func TestStore_HardDelete(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)

	r := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, r))
	require.NoError(t, s.HardDelete(ctx, r.Key()))
	assert.Equal(t, 0, client.Len())

	_, err := s.Read(ctx, r.Key(), store.ReadOptions{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_HardDeleteMissingIsNotFound(t *testing.T) {
	s, _ := newStore(t)
	err := s.HardDelete(context.Background(), store.PointerKey("no"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ReadTypeRestriction(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	r := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, r))

	_, err := s.Read(ctx, r.Key(), store.ReadOptions{Types: store.TypesIn(typeEndOfLifePlan)})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Read(ctx, r.Key(), store.ReadOptions{Types: store.TypesIn()})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Read(ctx, r.Key(), store.ReadOptions{Types: store.TypesIn(typeEndOfLifePlan, typeMentalHealthPlan)})
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestStore_SupersedeReplacesPointer(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	old := pointer("Y05868|1234567890", nhsNumber, typeMentalHealthPlan)
	replacement := pointer("ACUTE MENTAL HEALTH UNIT & DAY HOSPITAL|1234567891", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, old))

	require.NoError(t, s.Supersede(ctx, replacement, old.Key()))

	_, err := s.Read(ctx, old.Key(), store.ReadOptions{})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Read(ctx, replacement.Key(), store.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, replacement, *got)
}

func TestStore_SupersedeConflicts(t *testing.T) {
	old := pointer("Y05868|old", nhsNumber, typeMentalHealthPlan)
	replacement := pointer("Y05868|new", nhsNumber, typeMentalHealthPlan)

	tests := []struct {
		name     string
		existing []store.Record
	}{
		{name: "old pointer missing", existing: nil},
		{name: "new pointer already exists", existing: []store.Record{old, replacement}},
		{name: "old missing and new exists", existing: []store.Record{replacement}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, client := newStore(t)
			for _, r := range tt.existing {
				require.NoError(t, s.Create(ctx, r))
			}
			before := map[string]bool{
				old.ID:         client.Item(old.Key().Hash, old.Key().Range) != nil,
				replacement.ID: client.Item(replacement.Key().Hash, replacement.Key().Range) != nil,
			}

			err := s.Supersede(ctx, replacement, old.Key())
			require.ErrorIs(t, err, store.ErrConflict)

			assert.Equal(t, before[old.ID], client.Item(old.Key().Hash, old.Key().Range) != nil)
			assert.Equal(t, before[replacement.ID], client.Item(replacement.Key().Hash, replacement.Key().Range) != nil)
		})
	}
}

func TestStore_SupersedeSameKeyConflicts(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)
	r := pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)
	require.NoError(t, s.Create(ctx, r))

	err := s.Supersede(ctx, r, r.Key())
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 0, client.Calls["TransactWriteItems"])
}

func TestStore_SearchByType(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Create(ctx, pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|2", nhsNumber, typeEndOfLifePlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|3", nhsNumber, typeReSPECT)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|4", otherNHSNumber, typeMentalHealthPlan)))

	page, err := s.Search(ctx, store.SearchFilter{
		NHSNumber: nhsNumber,
		Types:     store.TypesIn(typeMentalHealthPlan, typeEndOfLifePlan),
	})
	require.NoError(t, err)
	assert.Empty(t, page.Cursor)
	assert.Equal(t, []string{"Y05868|1", "Y05868|2"}, ids(page.Records))
}

func TestStore_SearchAllTypesAndCustodian(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Create(ctx, pointer("RX898|a", nhsNumber, typeMentalHealthPlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|b", nhsNumber, typeEndOfLifePlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|c", nhsNumber, typeReSPECT)))

	page, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber})
	require.NoError(t, err)
	assert.Equal(t, []string{"RX898|a", "Y05868|b", "Y05868|c"}, ids(page.Records))

	page, err = s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, CustodianID: "Y05868"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y05868|b", "Y05868|c"}, ids(page.Records))

	page, err = s.Search(ctx, store.SearchFilter{
		NHSNumber:   nhsNumber,
		CustodianID: "Y05868",
		Types:       store.TypesIn(typeReSPECT),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y05868|c"}, ids(page.Records))
}

func TestStore_SearchEmptyTypeSetMatchesNothing(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)
	require.NoError(t, s.Create(ctx, pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)))

	page, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Types: store.TypesIn()})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.Cursor)
	assert.Equal(t, 0, client.Calls["Query"])
}

func TestStore_SearchRequiresSubject(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Search(context.Background(), store.SearchFilter{Types: store.TypesIn(typeReSPECT)})
	require.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestStore_SearchPagination(t *testing.T) {
	tests := []struct {
		n, k int
	}{
		{n: 5, k: 3},
		{n: 4, k: 2},
		{n: 7, k: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			ctx := context.Background()
			s, _ := newStore(t)
			for i := 0; i < tt.n; i++ {
				require.NoError(t, s.Create(ctx, pointer(fmt.Sprintf("Y05868|%02d", i), nhsNumber, typeMentalHealthPlan)))
			}

			first, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: tt.k})
			require.NoError(t, err)
			require.Len(t, first.Records, tt.k)
			require.NotEmpty(t, first.Cursor)

			var all []string
			all = append(all, ids(first.Records)...)
			cursor := first.Cursor
			for cursor != "" {
				page, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: tt.k, Cursor: cursor})
				require.NoError(t, err)
				require.NotEmpty(t, page.Records, "a cursor must never lead to an empty page here")
				require.LessOrEqual(t, len(page.Records), tt.k)
				all = append(all, ids(page.Records)...)
				cursor = page.Cursor
			}

			var want []string
			for i := 0; i < tt.n; i++ {
				want = append(want, fmt.Sprintf("Y05868|%02d", i))
			}
			assert.Equal(t, want, all)
		})
	}
}

func TestStore_SearchPaginationResumesRemainder(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, pointer(fmt.Sprintf("Y05868|%d", i), nhsNumber, typeMentalHealthPlan)))
	}

	first, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, first.Records, 3)
	require.NotEmpty(t, first.Cursor)

	rest, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y05868|3", "Y05868|4"}, ids(rest.Records))
	assert.Empty(t, rest.Cursor)
}

func TestStore_SearchPaginationWithFilteredItems(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var want []string
	for i := 0; i < 12; i++ {
		docType := typeReSPECT
		if i%3 == 0 {
			docType = typeMentalHealthPlan
			want = append(want, fmt.Sprintf("Y05868|%02d", i))
		}
		require.NoError(t, s.Create(ctx, pointer(fmt.Sprintf("Y05868|%02d", i), nhsNumber, docType)))
	}

	f := store.SearchFilter{NHSNumber: nhsNumber, Types: store.TypesIn(typeMentalHealthPlan), Limit: 2}
	var got []string
	for {
		page, err := s.Search(ctx, f)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Records), 2)
		got = append(got, ids(page.Records)...)
		if page.Cursor == "" {
			break
		}
		f.Cursor = page.Cursor
	}
	assert.Equal(t, want, got)
}

func TestStore_SearchRejectsBadCursor(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(ctx, pointer(fmt.Sprintf("Y05868|%d", i), nhsNumber, typeMentalHealthPlan)))
	}
	first, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, first.Cursor)
	queries := client.Calls["Query"]

	for _, cursor := range []string{"not base64!", "e30", first.Cursor[:len(first.Cursor)-4], "eyJwayI6IkQjMSJ9"} {
		_, err := s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber, Limit: 1, Cursor: cursor})
		require.ErrorIs(t, err, store.ErrInvalidFilter, "cursor %q", cursor)
	}

	_, err = s.Search(ctx, store.SearchFilter{NHSNumber: otherNHSNumber, Limit: 1, Cursor: first.Cursor})
	require.ErrorIs(t, err, store.ErrInvalidFilter)

	assert.Equal(t, queries, client.Calls["Query"], "a rejected cursor must not start a scan")
}

// oversizedClient reports more items than the ceiling for every query.
type oversizedClient struct {
	*storetest.Client
	items int
}

func (c *oversizedClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out := &dynamodb.QueryOutput{Count: int32(c.items)}
	for i := 0; i < c.items; i++ {
		r := pointer(fmt.Sprintf("Y05868|%03d", i), nhsNumber, typeMentalHealthPlan)
		item, err := store.MarshalRecord(r)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func TestStore_SearchFailsClosedOverCeiling(t *testing.T) {
	client := &oversizedClient{Client: storetest.NewClient(), items: 101}
	s := store.New(client, store.DefaultConfig())

	_, err := s.Search(context.Background(), store.SearchFilter{NHSNumber: nhsNumber})
	require.ErrorIs(t, err, store.ErrTooManyResults)
}

func TestStore_SearchCeilingIsConfigurable(t *testing.T) {
	client := &oversizedClient{Client: storetest.NewClient(), items: 11}
	cfg := store.DefaultConfig()
	cfg.ResultCeiling = 10
	s := store.New(client, cfg)

	_, err := s.Search(context.Background(), store.SearchFilter{NHSNumber: nhsNumber, Limit: 5})
	require.ErrorIs(t, err, store.ErrTooManyResults)
}

func TestStore_SearchUnknownTypeWithRegistry(t *testing.T) {
	registry := store.NewTypeRegistry(typeMentalHealthPlan, typeEndOfLifePlan)
	s := store.NewWithRegistry(storetest.NewClient(), store.DefaultConfig(), registry)

	_, err := s.Search(context.Background(), store.SearchFilter{
		NHSNumber: nhsNumber,
		Types:     store.TypesIn(typeMentalHealthPlan, "http://snomed.info/sct|0000"),
	})
	require.ErrorIs(t, err, store.ErrInvalidFilter)

	_, err = s.Search(context.Background(), store.SearchFilter{
		NHSNumber: nhsNumber,
		Types:     store.TypesIn(typeMentalHealthPlan),
	})
	require.NoError(t, err)
}

func TestStore_Count(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Create(ctx, pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|2", nhsNumber, typeEndOfLifePlan)))
	require.NoError(t, s.Create(ctx, pointer("RX898|3", nhsNumber, typeEndOfLifePlan)))
	require.NoError(t, s.Create(ctx, pointer("Y05868|4", otherNHSNumber, typeEndOfLifePlan)))

	n, err := s.Count(ctx, store.SearchFilter{NHSNumber: nhsNumber})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Count(ctx, store.SearchFilter{NHSNumber: nhsNumber, Types: store.TypesIn(typeEndOfLifePlan)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, store.SearchFilter{NHSNumber: nhsNumber, Types: store.TypesIn()})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_EngineFaults(t *testing.T) {
	ctx := context.Background()
	s, client := newStore(t)
	r := pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)

	client.FailNext("PutItem", &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")})
	err := s.Create(ctx, r)
	require.ErrorIs(t, err, store.ErrStorageFault)
	var throttled *types.ProvisionedThroughputExceededException
	assert.ErrorAs(t, err, &throttled)
	assert.Equal(t, 0, client.Len())

	client.FailNext("Query", &types.InternalServerError{Message: aws.String("boom")})
	_, err = s.Search(ctx, store.SearchFilter{NHSNumber: nhsNumber})
	require.ErrorIs(t, err, store.ErrStorageFault)

	client.FailNext("TransactWriteItems", &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ThrottlingError")}, {Code: aws.String("None")}},
	})
	err = s.Supersede(ctx, r, store.PointerKey("Y05868|0"))
	require.ErrorIs(t, err, store.ErrStorageFault)
	assert.NotErrorIs(t, err, store.ErrConflict)
}

func TestStore_CancelledContextLeavesStateUnchanged(t *testing.T) {
	s, client := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Create(ctx, pointer("Y05868|1", nhsNumber, typeMentalHealthPlan))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, store.ErrStorageFault)
	assert.Equal(t, 0, client.Len())
}

func TestStore_CreateRejectsUnencodableRecord(t *testing.T) {
	s, client := newStore(t)

	r := pointer("Y05868|1", nhsNumber, typeMentalHealthPlan)
	r.Extra = map[string]any{"when": struct{}{}}
	require.ErrorIs(t, s.Create(context.Background(), r), store.ErrCodec)

	r.Extra = map[string]any{"pk": "hijack"}
	require.ErrorIs(t, s.Create(context.Background(), r), store.ErrCodec)

	// Stored as "2", which reads back as int64.
	r.Extra = map[string]any{"ratio": 2.0}
	require.ErrorIs(t, s.Create(context.Background(), r), store.ErrCodec)

	require.ErrorIs(t, s.Create(context.Background(), store.Record{NHSNumber: nhsNumber}), store.ErrCodec)
	assert.Equal(t, 0, client.Calls["PutItem"])
}

func TestStore_TableNamePrefix(t *testing.T) {
	cfg := store.DefaultConfig()
	cfg.EnvironmentPrefix = "foo-bar-"
	s := store.New(storetest.NewClient(), cfg)
	assert.Equal(t, "foo-bar-document-pointer", s.Config().QualifiedTableName())
}

func ids(records []store.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
