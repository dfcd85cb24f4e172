// Package criteria implements the small boolean expression language used for
// machine-readable task completion rules, e.g.
//
//	counts.paper_select >= 3 && counts.summary_submit >= 1
//
// Identifiers are dot-separated paths resolved against a Context supplied at
// evaluation time (per-task event counts and session aggregates).
package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Rule is a compiled completion expression.
type Rule struct {
	src  string
	root node
}

// Source returns the original expression text.
func (r *Rule) Source() string { return r.src }

// node is the common interface for AST nodes.
type node interface {
	exprNode()
}

// binaryNode represents a logical AND / OR.
type binaryNode struct {
	op    string // "AND" | "OR"
	left  node
	right node
}

func (*binaryNode) exprNode() {}

// notNode negates its operand.
type notNode struct {
	inner node
}

func (*notNode) exprNode() {}

// cmpNode represents <operand> <operator> <operand>.
type cmpNode struct {
	left  operand
	op    operator
	right operand
}

func (*cmpNode) exprNode() {}

// operand is either a literal value or a field path.
type operand interface {
	operandNode()
}

type literalOperand struct {
	value interface{}
}

func (*literalOperand) operandNode() {}

// fieldOperand holds a dot-separated path like "counts.paper_select".
type fieldOperand struct {
	path []string
}

func (*fieldOperand) operandNode() {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or keyword
	tokOp                      // ==, !=, >=, <=, >, <
	tokAnd                     // && or "and"
	tokOr                      // || or "or"
	tokNot                     // ! or "not"
	tokString                  // "…" or '…'
	tokNumber                  // 42 | 3.14
	tokBool                    // true | false
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		if ch == '(' {
			tokens = append(tokens, token{tokLParen, "("})
			i++
			continue
		}
		if ch == ')' {
			tokens = append(tokens, token{tokRParen, ")"})
			i++
			continue
		}
		// Logical operators in symbol form.
		if ch == '&' {
			if i+1 >= len(expr) || expr[i+1] != '&' {
				return nil, fmt.Errorf("unexpected character %q at position %d (did you mean &&?)", ch, i)
			}
			tokens = append(tokens, token{tokAnd, "&&"})
			i += 2
			continue
		}
		if ch == '|' {
			if i+1 >= len(expr) || expr[i+1] != '|' {
				return nil, fmt.Errorf("unexpected character %q at position %d (did you mean ||?)", ch, i)
			}
			tokens = append(tokens, token{tokOr, "||"})
			i += 2
			continue
		}
		// Comparison operators. A bare '!' is logical negation.
		if ch == '=' || ch == '!' || ch == '<' || ch == '>' {
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{tokOp, expr[i : i+2]})
				i += 2
				continue
			}
			if ch == '!' {
				tokens = append(tokens, token{tokNot, "!"})
				i++
				continue
			}
			tokens = append(tokens, token{tokOp, string(ch)})
			i++
			continue
		}
		// String literals.
		if ch == '"' || ch == '\'' {
			quote := ch
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				if expr[j] == '\\' {
					j++ // skip escaped char
				}
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			inner := expr[i+1 : j]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			tokens = append(tokens, token{tokString, inner})
			i = j + 1
			continue
		}
		// Numbers.
		if unicode.IsDigit(rune(ch)) || (ch == '-' && i+1 < len(expr) && unicode.IsDigit(rune(expr[i+1]))) {
			j := i
			if expr[j] == '-' {
				j++
			}
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j]})
			i = j
			continue
		}
		// Words: identifiers, keyword operators (and/or/not/contains), booleans.
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_' || expr[j] == '.') {
				j++
			}
			word := expr[i:j]
			switch strings.ToLower(word) {
			case "true", "false":
				tokens = append(tokens, token{tokBool, strings.ToLower(word)})
			case "and":
				tokens = append(tokens, token{tokAnd, word})
			case "or":
				tokens = append(tokens, token{tokOr, word})
			case "not":
				tokens = append(tokens, token{tokNot, word})
			default:
				tokens = append(tokens, token{tokWord, word})
			}
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// Compile parses an expression string into a Rule.
func Compile(expr string) (*Rule, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return &Rule{src: expr, root: root}, nil
}

// or_expr = and_expr ( OR and_expr )*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "OR", left: left, right: right}
	}
	return left, nil
}

// and_expr = not_expr ( AND not_expr )*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "AND", left: left, right: right}
	}
	return left, nil
}

// not_expr = [ NOT ] not_expr | "(" or_expr ")" | comparison
func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.consume()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected \")\" but got %q", p.peek().val)
		}
		p.consume()
		return inner, nil
	}
	return p.parseComparison()
}

// comparison = operand [ operator operand ]
// A bare boolean field like "submitted" is shorthand for "submitted == true".
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var op operator
	switch {
	case t.kind == tokOp:
		op = operator(t.val)
		p.consume()
	case t.kind == tokWord && strings.ToLower(t.val) == "contains":
		op = opContains
		p.consume()
	default:
		return &cmpNode{left: left, op: opEq, right: &literalOperand{value: true}}, nil
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &cmpNode{left: left, op: op, right: right}, nil
}

// operand = field_path | literal
func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.consume()
		return &literalOperand{value: t.val}, nil
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &literalOperand{value: f}, nil
	case tokBool:
		p.consume()
		return &literalOperand{value: t.val == "true"}, nil
	case tokWord:
		p.consume()
		// The tokenizer keeps dots inside words, so the path is one token.
		return &fieldOperand{path: strings.Split(t.val, ".")}, nil
	default:
		return nil, fmt.Errorf("expected operand, got %q", t.val)
	}
}
