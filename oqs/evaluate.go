// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package oqs

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// errUndefined marks a reference to a field the row does not have.
// Comparisons involving an undefined value do not match.
var errUndefined = errors.New("undefined reference")

// Match evaluates the predicate against one row. A reference to a
// missing field makes the enclosing comparison false rather than
// failing the whole evaluation, mirroring the server's semantics.
func (p *Predicate) Match(row map[string]interface{}) (bool, error) {
	v, err := p.eval(row)
	if errors.Is(err, errUndefined) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("predicate #%s does not evaluate to a boolean", p.op)
	}
	return b, nil
}

func (p *Predicate) eval(row map[string]interface{}) (interface{}, error) {
	switch p.op {
	case OpConstant:
		return p.value, nil
	case OpRef:
		v, ok := row[p.name]
		if !ok {
			return nil, errUndefined
		}
		return v, nil
	case OpList:
		items := make([]interface{}, 0, len(p.args))
		for _, arg := range p.args {
			v, err := arg.eval(row)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case OpAnd, OpOr:
		for _, arg := range p.args {
			b, err := arg.Match(row)
			if err != nil {
				return nil, err
			}
			if p.op == OpAnd && !b {
				return false, nil
			}
			if p.op == OpOr && b {
				return true, nil
			}
		}
		return p.op == OpAnd, nil
	case OpNot:
		if len(p.args) != 1 {
			return nil, fmt.Errorf("#NOT takes exactly one operand, got %d", len(p.args))
		}
		b, err := p.args[0].Match(row)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case OpEquals, OpNotEq, OpGt, OpGe, OpLt, OpLe:
		left, right, err := p.operands(row)
		if err != nil {
			return nil, err
		}
		return compare(p.op, left, right)
	case OpIn:
		left, right, err := p.operands(row)
		if err != nil {
			return nil, err
		}
		list, ok := right.([]interface{})
		if !ok {
			return nil, fmt.Errorf("#IS_IN right operand is not a list")
		}
		for _, item := range list {
			eq, err := compare(OpEquals, left, item)
			if err != nil {
				return nil, err
			}
			if eq {
				return true, nil
			}
		}
		return false, nil
	default:
		return nil, fmt.Errorf("unknown predicate: %q", p.op)
	}
}

func (p *Predicate) operands(row map[string]interface{}) (left, right interface{}, err error) {
	if len(p.args) != 2 {
		return nil, nil, fmt.Errorf("#%s takes exactly two operands, got %d", p.op, len(p.args))
	}
	if left, err = p.args[0].eval(row); err != nil {
		return nil, nil, err
	}
	if right, err = p.args[1].eval(row); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func compare(op string, left, right interface{}) (bool, error) {
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			return compareOrdered(op, lf, rf)
		}
	}
	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			return compareOrdered(op, ls, rs)
		}
	}
	switch op {
	case OpEquals:
		return reflect.DeepEqual(left, right), nil
	case OpNotEq:
		return !reflect.DeepEqual(left, right), nil
	default:
		return false, fmt.Errorf("#%s operands %T and %T are not ordered", op, left, right)
	}
}

func compareOrdered[T float64 | string](op string, left, right T) (bool, error) {
	switch op {
	case OpEquals:
		return left == right, nil
	case OpNotEq:
		return left != right, nil
	case OpGt:
		return left > right, nil
	case OpGe:
		return left >= right, nil
	case OpLt:
		return left < right, nil
	case OpLe:
		return left <= right, nil
	}
	return false, fmt.Errorf("unknown comparison: %q", op)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
