package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pointers/internal/keys"
)

// Key prefixes.
const (
	PrefixDocumentPointer = "D"
	PrefixPatient         = "P"
	PrefixOrganisation    = "O"
)

// Attribute names of the table and index keys.
const (
	attrPK  = "pk"
	attrSK  = "sk"
	attrPK1 = "pk_1"
	attrSK1 = "sk_1"
)

// Key is the primary key of a stored item. Range is empty for hash-only keys.
type Key struct {
	Hash  string
	Range string
}

// EncodeKey derives the key addressing naturalKey under prefix.
// The sort key repeats the partition key, matching how pointers are written.
func EncodeKey(prefix, naturalKey string) Key {
	k := keys.Join(prefix, naturalKey)
	return Key{Hash: k, Range: k}
}

// PointerKey returns the key of the document pointer with the given id.
func PointerKey(id string) Key {
	return EncodeKey(PrefixDocumentPointer, id)
}

// DecodeKey reverses EncodeKey.
func DecodeKey(k Key) (prefix, naturalKey string, err error) {
	prefix, naturalKey, err = keys.Split(k.Hash)
	if err != nil {
		return "", "", codecError("decode key %q: %v", k.Hash, err)
	}
	if k.Range != "" && k.Range != k.Hash {
		return "", "", codecError("decode key %q: range %q does not match", k.Hash, k.Range)
	}
	return prefix, naturalKey, nil
}

// Equal reports whether two keys have byte-identical encoded forms.
func (k Key) Equal(other Key) bool {
	return k.Hash == other.Hash && k.Range == other.Range
}

// Item returns the key in DynamoDB attribute form.
func (k Key) Item() map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: k.Hash},
	}
	if k.Range != "" {
		item[attrSK] = &types.AttributeValueMemberS{Value: k.Range}
	}
	return item
}

// KeyFromItem extracts the primary key from a stored item or key map.
func KeyFromItem(item map[string]types.AttributeValue) (Key, error) {
	pk, ok := item[attrPK].(*types.AttributeValueMemberS)
	if !ok || pk.Value == "" {
		return Key{}, codecError("item has no string %q attribute", attrPK)
	}
	k := Key{Hash: pk.Value}
	if sk, ok := item[attrSK]; ok {
		s, ok := sk.(*types.AttributeValueMemberS)
		if !ok {
			return Key{}, codecError("attribute %q is not a string", attrSK)
		}
		k.Range = s.Value
	}
	return k, nil
}
