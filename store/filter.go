package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/jacentio/pointers/internal/keys"
)

// maxInOperands is the DynamoDB limit on operands of an IN comparator.
const maxInOperands = 100

// TypeFilter restricts a search to a set of document types.
// The zero value matches every type; TypesIn() with no codes matches none.
type TypeFilter struct {
	codes      []string
	restricted bool
}

// AllTypes returns a filter matching every document type.
func AllTypes() TypeFilter {
	return TypeFilter{}
}

// TypesIn returns a filter matching only the given type codes.
func TypesIn(codes ...string) TypeFilter {
	return TypeFilter{codes: append([]string(nil), codes...), restricted: true}
}

// Restricted reports whether the filter limits types at all.
func (t TypeFilter) Restricted() bool { return t.restricted }

// Codes returns the allowed type codes (nil when unrestricted).
func (t TypeFilter) Codes() []string { return append([]string(nil), t.codes...) }

// matchesNothing reports whether the filter is an explicit empty set.
func (t TypeFilter) matchesNothing() bool { return t.restricted && len(t.codes) == 0 }

// SearchFilter selects document pointers for a subject.
type SearchFilter struct {
	// NHSNumber is the subject; required.
	NHSNumber string

	// Types restricts document types. Zero value = all types.
	Types TypeFilter

	// CustodianID restricts results to one producing organisation when set.
	CustodianID string

	// Limit is the page size; 0 uses Config.DefaultPageLimit.
	Limit int

	// Cursor resumes a previous search with the same filters.
	Cursor string
}

// ReadOptions narrows a Read.
type ReadOptions struct {
	// Types restricts which document types the read may return.
	Types TypeFilter
}

// BuildQuery builds the secondary index key condition and filter for f.
func BuildQuery(f SearchFilter) (expression.Expression, error) {
	if f.NHSNumber == "" {
		return expression.Expression{}, fmt.Errorf("%w: subject nhs number is required", ErrInvalidFilter)
	}
	if f.Types.matchesNothing() {
		return expression.Expression{}, fmt.Errorf("%w: empty type set cannot be queried", ErrInvalidFilter)
	}
	if len(f.Types.codes) > maxInOperands {
		return expression.Expression{}, fmt.Errorf("%w: %d type codes exceeds %d", ErrInvalidFilter, len(f.Types.codes), maxInOperands)
	}

	keyCond := expression.Key(attrPK1).Equal(expression.Value(keys.Join(PrefixPatient, f.NHSNumber)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	var conds []expression.ConditionBuilder
	if f.Types.Restricted() {
		conds = append(conds, typeCondition(f.Types))
	}
	if f.CustodianID != "" {
		conds = append(conds, expression.Name("custodian").Equal(expression.Value(f.CustodianID)))
	}
	if filter, ok := andAll(conds); ok {
		builder = builder.WithFilter(filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return expr, nil
}

// buildRead builds the primary key condition for a single-item read.
func buildRead(k Key, opts ReadOptions) (expression.Expression, error) {
	if len(opts.Types.codes) > maxInOperands {
		return expression.Expression{}, fmt.Errorf("%w: %d type codes exceeds %d", ErrInvalidFilter, len(opts.Types.codes), maxInOperands)
	}
	keyCond := expression.Key(attrPK).Equal(expression.Value(k.Hash))
	if k.Range != "" {
		keyCond = keyCond.And(expression.Key(attrSK).Equal(expression.Value(k.Range)))
	}
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if opts.Types.Restricted() && !opts.Types.matchesNothing() {
		builder = builder.WithFilter(typeCondition(opts.Types))
	}
	expr, err := builder.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return expr, nil
}

func typeCondition(t TypeFilter) expression.ConditionBuilder {
	operands := make([]expression.OperandBuilder, 0, len(t.codes))
	for _, code := range t.codes {
		operands = append(operands, expression.Value(code))
	}
	return expression.Name("type").In(operands[0], operands[1:]...)
}

func andAll(conds []expression.ConditionBuilder) (expression.ConditionBuilder, bool) {
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}
