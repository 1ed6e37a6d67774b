package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// cursorAttrs are the key attributes of an index query's last evaluated key.
var cursorAttrs = []string{attrPK, attrSK, attrPK1, attrSK1}

// EncodeCursor converts a last evaluated key into a caller-facing cursor.
// A nil or empty key encodes to "" (no more results).
func EncodeCursor(lastKey map[string]types.AttributeValue) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}
	plain := make(map[string]string, len(cursorAttrs))
	for _, name := range cursorAttrs {
		s, ok := lastKey[name].(*types.AttributeValueMemberS)
		if !ok {
			return "", codecError("cursor key attribute %q missing or not a string", name)
		}
		plain[name] = s.Value
	}
	if len(lastKey) != len(cursorAttrs) {
		return "", codecError("cursor key has %d attributes, want %d", len(lastKey), len(cursorAttrs))
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", codecError("encode cursor: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor reverses EncodeCursor. Any cursor that was not produced by
// EncodeCursor fails with ErrInvalidFilter; it never decodes to an empty key,
// which would restart the scan.
func DecodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, fmt.Errorf("%w: empty cursor", ErrInvalidFilter)
	}
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor is not valid base64: %v", ErrInvalidFilter, err)
	}
	var plain map[string]string
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("%w: cursor is malformed: %v", ErrInvalidFilter, err)
	}
	if len(plain) != len(cursorAttrs) {
		return nil, fmt.Errorf("%w: cursor has %d attributes, want %d", ErrInvalidFilter, len(plain), len(cursorAttrs))
	}
	lastKey := make(map[string]types.AttributeValue, len(cursorAttrs))
	for _, name := range cursorAttrs {
		v, ok := plain[name]
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: cursor is missing %q", ErrInvalidFilter, name)
		}
		lastKey[name] = &types.AttributeValueMemberS{Value: v}
	}
	return lastKey, nil
}

// cursorFromItem builds the last evaluated key an index query would report
// had it stopped on item.
func cursorFromItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	lastKey := make(map[string]types.AttributeValue, len(cursorAttrs))
	for _, name := range cursorAttrs {
		if v, ok := item[name]; ok {
			lastKey[name] = v
		}
	}
	return lastKey
}
