package criteria

import (
	"fmt"
	"math"
	"strings"
)

// Context resolves a dot-separated field path to a value during evaluation.
type Context interface {
	Resolve(path []string) (interface{}, bool)
}

// operator is a comparison operator.
type operator string

const (
	opEq       operator = "=="
	opNeq      operator = "!="
	opGt       operator = ">"
	opGte      operator = ">="
	opLt       operator = "<"
	opLte      operator = "<="
	opContains operator = "contains"
)

// Eval walks the rule's AST against ctx and returns the boolean outcome.
func (r *Rule) Eval(ctx Context) (bool, error) {
	return evalNode(r.root, ctx)
}

func evalNode(n node, ctx Context) (bool, error) {
	switch e := n.(type) {
	case *binaryNode:
		return evalBinary(e, ctx)
	case *notNode:
		v, err := evalNode(e.inner, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *cmpNode:
		return evalComparison(e, ctx)
	default:
		return false, fmt.Errorf("unknown expr type %T", n)
	}
}

func evalBinary(e *binaryNode, ctx Context) (bool, error) {
	left, err := evalNode(e.left, ctx)
	if err != nil {
		return false, err
	}
	switch e.op {
	case "AND":
		if !left {
			return false, nil // short-circuit
		}
		return evalNode(e.right, ctx)
	case "OR":
		if left {
			return true, nil // short-circuit
		}
		return evalNode(e.right, ctx)
	default:
		return false, fmt.Errorf("unknown binary op %q", e.op)
	}
}

func evalComparison(e *cmpNode, ctx Context) (bool, error) {
	left, err := resolveOperand(e.left, ctx)
	if err != nil {
		return false, err
	}
	right, err := resolveOperand(e.right, ctx)
	if err != nil {
		return false, err
	}
	return compare(e.op, left, right)
}

func resolveOperand(op operand, ctx Context) (interface{}, error) {
	switch o := op.(type) {
	case *literalOperand:
		return o.value, nil
	case *fieldOperand:
		val, ok := ctx.Resolve(o.path)
		if !ok {
			return nil, fmt.Errorf("field %q not found", strings.Join(o.path, "."))
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unknown operand type %T", op)
	}
}

// compare applies a binary comparison operator to two values.
func compare(op operator, left, right interface{}) (bool, error) {
	switch op {
	case opEq:
		return equal(left, right), nil
	case opNeq:
		return !equal(left, right), nil
	case opGt, opGte, opLt, opLte:
		return numericCompare(op, left, right)
	case opContains:
		return containsOp(left, right)
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// equal compares numeric types by value, booleans directly, everything else
// by string form.
func equal(left, right interface{}) bool {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		return math.Abs(lf-rf) < 1e-9
	}
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			return lb == rb
		}
		return false
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func numericCompare(op operator, left, right interface{}) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case opGt:
		return lf > rf, nil
	case opGte:
		return lf >= rf, nil
	case opLt:
		return lf < rf, nil
	case opLte:
		return lf <= rf, nil
	}
	return false, nil
}

func containsOp(left, right interface{}) (bool, error) {
	ls, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("contains: left operand must be a string, got %T", left)
	}
	return strings.Contains(ls, fmt.Sprintf("%v", right)), nil
}

// toFloat64 coerces a numeric value to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
