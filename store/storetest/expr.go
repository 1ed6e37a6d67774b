package storetest

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// predicate reports whether an item satisfies a compiled expression.
type predicate func(item map[string]types.AttributeValue) bool

// compile parses the subset of the DynamoDB expression grammar produced by
// the store: AND/OR of "a = b", "a IN (b, c)", attribute_exists(a) and
// attribute_not_exists(a), with parentheses.
func compile(expr string, names map[string]string, values map[string]types.AttributeValue) (predicate, error) {
	p := &parser{tokens: tokenize(expr), names: names, values: values}
	pred, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("storetest: %q: %w", expr, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("storetest: %q: unexpected %q", expr, p.tokens[p.pos])
	}
	return pred, nil
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n':
			flush()
		case '(', ')', ',', '=':
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type parser struct {
	tokens []string
	pos    int
	names  map[string]string
	values map[string]types.AttributeValue
}

// operand resolves to an attribute value given an item.
type operand func(item map[string]types.AttributeValue) types.AttributeValue

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *parser) parseOr() (predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(item map[string]types.AttributeValue) bool { return l(item) || r(item) }
	}
	return left, nil
}

func (p *parser) parseAnd() (predicate, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(item map[string]types.AttributeValue) bool { return l(item) && r(item) }
	}
	return left, nil
}

func (p *parser) parseTerm() (predicate, error) {
	switch tok := p.peek(); tok {
	case "(":
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(")")
	case "attribute_exists", "attribute_not_exists":
		p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		name, err := p.attrName(p.next())
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		want := tok == "attribute_exists"
		return func(item map[string]types.AttributeValue) bool {
			_, ok := item[name]
			return ok == want
		}, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	switch op := p.next(); {
	case op == "=":
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) bool {
			return equal(left(item), right(item))
		}, nil
	case strings.EqualFold(op, "IN"):
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var list []operand
		for {
			o, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			list = append(list, o)
			if p.peek() != "," {
				break
			}
			p.next()
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) bool {
			v := left(item)
			for _, o := range list {
				if equal(v, o(item)) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("unsupported comparator %q", op)
	}
}

func (p *parser) parseOperand() (operand, error) {
	tok := p.next()
	if strings.HasPrefix(tok, ":") {
		v, ok := p.values[tok]
		if !ok {
			return nil, fmt.Errorf("undefined value %q", tok)
		}
		return func(map[string]types.AttributeValue) types.AttributeValue { return v }, nil
	}
	name, err := p.attrName(tok)
	if err != nil {
		return nil, err
	}
	return func(item map[string]types.AttributeValue) types.AttributeValue { return item[name] }, nil
}

func (p *parser) attrName(tok string) (string, error) {
	if tok == "" || strings.ContainsAny(tok, "(),=") {
		return "", fmt.Errorf("expected attribute name, got %q", tok)
	}
	if strings.HasPrefix(tok, "#") {
		name, ok := p.names[tok]
		if !ok {
			return "", fmt.Errorf("undefined name %q", tok)
		}
		return name, nil
	}
	return tok, nil
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}
