// Package stream provides a DynamoDB Streams handler that forwards document
// pointer changes to a Sink as compressed NDJSON batches.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pointers/internal/keys"
	"github.com/jacentio/pointers/store"
)

// DefaultBatchSize is the number of changes per delivered batch.
const DefaultBatchSize = 500

// ChangeKind is the kind of change made to a pointer.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent describes one change to a document pointer. A supersede shows
// up as a created event for the replacement and a deleted event for its
// predecessor.
type ChangeEvent struct {
	EventID    string       `json:"event_id"`
	Kind       ChangeKind   `json:"kind"`
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Custodian  string       `json:"custodian"`
	OccurredAt time.Time    `json:"occurred_at"`
	Pointer    store.Record `json:"pointer"` // new image, or old image for deletes
}

// Handler processes DynamoDB stream events from the pointer table.
type Handler struct {
	sink      Sink
	logger    *slog.Logger
	batchSize int
}

// NewHandler creates a new stream handler. A batchSize below 1 uses DefaultBatchSize.
func NewHandler(sink Sink, logger *slog.Logger, batchSize int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Handler{
		sink:      sink,
		logger:    logger,
		batchSize: batchSize,
	}
}

// HandlePointerChanges converts stream records to change events and delivers
// them in batches. This function is designed to be used as an AWS Lambda handler.
//
// Records for items that are not document pointers are skipped. A pointer
// whose image cannot be decoded is logged and skipped, since a retry would
// see the same data. Any other failure fails the whole invocation so that
// Lambda retries it.
func (h *Handler) HandlePointerChanges(ctx context.Context, event events.DynamoDBEvent) error {
	changes := make([]ChangeEvent, 0, len(event.Records))
	skipped := 0
	for _, record := range event.Records {
		change, ok, err := toChange(record)
		if errors.Is(err, store.ErrCodec) {
			h.logger.Error("skipping undecodable pointer record",
				"eventID", record.EventID,
				"error", err,
			)
			skipped++
			continue
		}
		if err != nil {
			h.logger.Error("failed to decode record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
		if ok {
			changes = append(changes, change)
		}
	}

	batches := Chunk(changes, h.batchSize)
	for i, batch := range batches {
		data, err := EncodeBatch(batch)
		if err != nil {
			return fmt.Errorf("encode batch %d: %w", i, err)
		}
		if err := h.sink.Deliver(ctx, data); err != nil {
			h.logger.Error("failed to deliver batch",
				"batch", i,
				"changes", len(batch),
				"error", err,
			)
			return fmt.Errorf("deliver batch %d: %w", i, err)
		}
	}

	h.logger.Info("pointer changes delivered",
		"records", len(event.Records),
		"changes", len(changes),
		"skipped", skipped,
		"batches", len(batches),
	)
	return nil
}

// toChange converts one stream record. ok is false for records to skip.
func toChange(record events.DynamoDBEventRecord) (change ChangeEvent, ok bool, err error) {
	var (
		kind  ChangeKind
		image map[string]events.DynamoDBAttributeValue
	)
	switch record.EventName {
	case string(events.DynamoDBOperationTypeInsert):
		kind, image = ChangeCreated, record.Change.NewImage
	case string(events.DynamoDBOperationTypeModify):
		kind, image = ChangeUpdated, record.Change.NewImage
	case string(events.DynamoDBOperationTypeRemove):
		kind, image = ChangeDeleted, record.Change.OldImage
	default:
		return ChangeEvent{}, false, nil
	}

	keyItem, err := ConvertStreamImage(record.Change.Keys)
	if err != nil {
		return ChangeEvent{}, false, fmt.Errorf("keys: %w", err)
	}
	if !isPointerKey(keyItem) {
		return ChangeEvent{}, false, nil
	}
	if len(image) == 0 {
		return ChangeEvent{}, false, fmt.Errorf("%s event has no image; stream view type must include images", record.EventName)
	}

	item, err := ConvertStreamImage(image)
	if err != nil {
		return ChangeEvent{}, false, fmt.Errorf("image: %w: %w", store.ErrCodec, err)
	}
	r, err := store.UnmarshalRecord(item)
	if err != nil {
		return ChangeEvent{}, false, err
	}

	return ChangeEvent{
		EventID:    record.EventID,
		Kind:       kind,
		ID:         r.ID,
		Type:       r.Type,
		Custodian:  r.CustodianID,
		OccurredAt: record.Change.ApproximateCreationDateTime.UTC(),
		Pointer:    *r,
	}, true, nil
}

func isPointerKey(item map[string]types.AttributeValue) bool {
	k, err := store.KeyFromItem(item)
	if err != nil {
		return false
	}
	return keys.HasPrefix(k.Hash, store.PrefixDocumentPointer)
}
