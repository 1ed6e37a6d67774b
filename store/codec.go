package store

import (
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ToAttributeValue converts a domain value into its DynamoDB attribute form.
//
// Supported kinds: nil, string, bool, int64, float64, []byte, []any and
// map[string]any whose elements are themselves supported. Any other type is
// rejected with ErrCodec.
//
// DynamoDB stores numbers in canonical decimal form, so "2.0" is read back as
// "2". Numbers therefore decode by value (see ParseNumber), and a float64 is
// only accepted when it decodes back to a float64: integral values within the
// int64 range must be carried as int64. Values outside the range DynamoDB can
// store are rejected as well.
func ToAttributeValue(v any) (types.AttributeValue, error) {
	switch val := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: val}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: val}, nil
	case []byte:
		if val == nil {
			return &types.AttributeValueMemberNULL{Value: true}, nil
		}
		return &types.AttributeValueMemberB{Value: val}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(val, 10)}, nil
	case float64:
		if err := checkFloat(val); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(val, 'g', -1, 64)}, nil
	case []any:
		list := make([]types.AttributeValue, 0, len(val))
		for i, elem := range val {
			av, err := ToAttributeValue(elem)
			if err != nil {
				return nil, codecError("list element %d: %v", i, err)
			}
			list = append(list, av)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case map[string]any:
		m := make(map[string]types.AttributeValue, len(val))
		for k, elem := range val {
			av, err := ToAttributeValue(elem)
			if err != nil {
				return nil, codecError("map entry %q: %v", k, err)
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, codecError("unsupported type %T", v)
	}
}

// FromAttributeValue is the inverse of ToAttributeValue.
// Numbers decode with ParseNumber.
// Sets are not part of the supported kinds and are rejected.
func FromAttributeValue(av types.AttributeValue) (any, error) {
	switch val := av.(type) {
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		return val.Value, nil
	case *types.AttributeValueMemberBOOL:
		return val.Value, nil
	case *types.AttributeValueMemberB:
		return val.Value, nil
	case *types.AttributeValueMemberN:
		return ParseNumber(val.Value)
	case *types.AttributeValueMemberL:
		list := make([]any, 0, len(val.Value))
		for i, elem := range val.Value {
			v, err := FromAttributeValue(elem)
			if err != nil {
				return nil, codecError("list element %d: %v", i, err)
			}
			list = append(list, v)
		}
		return list, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(val.Value))
		for k, elem := range val.Value {
			v, err := FromAttributeValue(elem)
			if err != nil {
				return nil, codecError("map entry %q: %v", k, err)
			}
			m[k] = v
		}
		return m, nil
	default:
		return nil, codecError("unsupported attribute value %T", av)
	}
}

// Bounds of the numbers DynamoDB accepts.
const (
	maxMagnitude = 1e126
	minMagnitude = 1e-130
)

func checkFloat(f float64) error {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return codecError("number %v is not representable", f)
	case math.Abs(f) >= maxMagnitude || (f != 0 && math.Abs(f) < minMagnitude):
		return codecError("number %v is outside the storable range", f)
	case fitsInt64(f):
		return codecError("float64 %v is integral, carry it as int64", f)
	}
	return nil
}

// fitsInt64 reports whether f is integral and converts to int64 exactly.
func fitsInt64(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

// ParseNumber decodes DynamoDB number text by value: integral numbers that
// fit int64 become int64, everything else float64. The result does not depend
// on how the number is spelled, so "2", "2.0" and "0.2e1" all give int64(2).
func ParseNumber(s string) (any, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, codecError("number %q is not representable", s)
	}
	if fitsInt64(f) {
		return int64(f), nil
	}
	return f, nil
}
