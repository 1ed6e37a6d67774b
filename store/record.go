package store

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pointers/internal/keys"
)

// RecordTypeName is the record type used to derive the table name.
const RecordTypeName = "DocumentPointer"

// IDSeparator splits the custodian from the local id in a pointer id.
const IDSeparator = "|"

// Record is a document pointer.
type Record struct {
	// ID is "<custodian>|<local-id>" and globally unique.
	ID string `json:"id" dynamodbav:"id"`

	// NHSNumber is the subject of the pointed-to document.
	NHSNumber string `json:"nhs_number" dynamodbav:"nhs_number"`

	// Type is the document type as "<system>|<code>".
	Type string `json:"type" dynamodbav:"type"`

	// CustodianID is the producing organisation.
	CustodianID string `json:"custodian" dynamodbav:"custodian"`

	// Document is the serialized document reference, stored opaquely.
	Document string `json:"document" dynamodbav:"document"`

	Source    string `json:"source,omitempty" dynamodbav:"source,omitempty"`
	Version   int64  `json:"version,omitempty" dynamodbav:"version,omitempty"`
	CreatedOn string `json:"created_on,omitempty" dynamodbav:"created_on,omitempty"`
	UpdatedOn string `json:"updated_on,omitempty" dynamodbav:"updated_on,omitempty"`

	// Extra holds additional caller-defined attributes. Values must be kinds
	// accepted by ToAttributeValue.
	Extra map[string]any `json:"extra,omitempty" dynamodbav:"-"`
}

// reservedAttrs are attribute names owned by the store or by Record fields.
var reservedAttrs = map[string]struct{}{
	attrPK: {}, attrSK: {}, attrPK1: {}, attrSK1: {},
	"id": {}, "nhs_number": {}, "type": {}, "custodian": {}, "document": {},
	"source": {}, "version": {}, "created_on": {}, "updated_on": {},
}

// Key returns the primary key of the record.
func (r Record) Key() Key {
	return PointerKey(r.ID)
}

// SubjectKey returns the secondary index partition key of the record.
func (r Record) SubjectKey() string {
	return keys.Join(PrefixPatient, r.NHSNumber)
}

// ProducerID returns the custodian part of the record id.
func (r Record) ProducerID() string {
	producer, _, _ := strings.Cut(r.ID, IDSeparator)
	return producer
}

// Validate checks that the record can be addressed and encoded.
// Content validation of the document itself happens upstream.
func (r Record) Validate() error {
	if r.ID == "" {
		return codecError("record has no id")
	}
	if r.NHSNumber == "" {
		return codecError("record %q has no nhs number", r.ID)
	}
	for name, v := range r.Extra {
		if _, ok := reservedAttrs[name]; ok {
			return codecError("record %q: extra attribute %q is reserved", r.ID, name)
		}
		if _, err := ToAttributeValue(v); err != nil {
			return codecError("record %q: extra attribute %q: %v", r.ID, name, err)
		}
	}
	return nil
}

// MarshalRecord converts a record into a full DynamoDB item including its
// table and index keys.
func MarshalRecord(r Record) (map[string]types.AttributeValue, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, codecError("marshal record %q: %v", r.ID, err)
	}
	for name, v := range r.Extra {
		av, err := ToAttributeValue(v)
		if err != nil {
			return nil, codecError("record %q: extra attribute %q: %v", r.ID, name, err)
		}
		item[name] = av
	}

	k := r.Key()
	item[attrPK] = &types.AttributeValueMemberS{Value: k.Hash}
	item[attrSK] = &types.AttributeValueMemberS{Value: k.Range}
	item[attrPK1] = &types.AttributeValueMemberS{Value: r.SubjectKey()}
	item[attrSK1] = &types.AttributeValueMemberS{Value: k.Hash}
	return item, nil
}

// UnmarshalRecord converts a stored item back into a record.
func UnmarshalRecord(item map[string]types.AttributeValue) (*Record, error) {
	var r Record
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, codecError("unmarshal record: %v", err)
	}
	if r.ID == "" {
		return nil, codecError("stored item has no id")
	}
	for name, av := range item {
		if _, ok := reservedAttrs[name]; ok {
			continue
		}
		v, err := FromAttributeValue(av)
		if err != nil {
			return nil, codecError("record %q: attribute %q: %v", r.ID, name, err)
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[name] = v
	}
	return &r, nil
}

// TableName returns the default (unprefixed) table name for records.
func TableName() string {
	return keys.KebabCase(RecordTypeName)
}
