package storetest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// canonicalItem returns a copy of item with every number rewritten the way
// DynamoDB stores it: plain decimal notation, no sign on zero, no leading or
// trailing zeros. Invalid numbers fail like the engine's input validation.
func canonicalItem(item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		cv, err := canonicalValue(v)
		if err != nil {
			return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: fmt.Sprintf("attribute %q: %v", k, err)}
		}
		out[k] = cv
	}
	return out, nil
}

func canonicalValue(av types.AttributeValue) (types.AttributeValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		s, err := canonicalNumber(v.Value)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: s}, nil
	case *types.AttributeValueMemberNS:
		set := make([]string, len(v.Value))
		for i, n := range v.Value {
			s, err := canonicalNumber(n)
			if err != nil {
				return nil, err
			}
			set[i] = s
		}
		return &types.AttributeValueMemberNS{Value: set}, nil
	case *types.AttributeValueMemberL:
		list := make([]types.AttributeValue, len(v.Value))
		for i, elem := range v.Value {
			cv, err := canonicalValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = cv
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]types.AttributeValue, len(v.Value))
		for k, elem := range v.Value {
			cv, err := canonicalValue(elem)
			if err != nil {
				return nil, err
			}
			m[k] = cv
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return av, nil
	}
}

// canonicalNumber rewrites decimal number text, e.g. "2.0" -> "2",
// "1e+21" -> "1000000000000000000000", "-0.50" -> "-0.5".
func canonicalNumber(s string) (string, error) {
	text := s
	neg := false
	switch {
	case strings.HasPrefix(text, "-"):
		neg, text = true, text[1:]
	case strings.HasPrefix(text, "+"):
		text = text[1:]
	}

	exp := 0
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		e, err := strconv.Atoi(text[i+1:])
		if err != nil {
			return "", fmt.Errorf("invalid number %q", s)
		}
		exp, text = e, text[:i]
	}

	intPart, fracPart, _ := strings.Cut(text, ".")
	digits := intPart + fracPart
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return "", fmt.Errorf("invalid number %q", s)
	}

	// point is the position of the decimal point within digits.
	point := len(intPart) + exp
	for len(digits) > 0 && digits[0] == '0' {
		digits = digits[1:]
		point--
	}
	digits = strings.TrimRight(digits, "0")
	if digits == "" {
		return "0", nil
	}

	var out string
	switch {
	case point <= 0:
		out = "0." + strings.Repeat("0", -point) + digits
	case point >= len(digits):
		out = digits + strings.Repeat("0", point-len(digits))
	default:
		out = digits[:point] + "." + digits[point:]
	}
	if neg {
		out = "-" + out
	}
	return out, nil
}
