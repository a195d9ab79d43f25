// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package oqs builds and serializes filter-query expressions for the
// Ocean Data Platform.
//
// A filter is a tree of predicates. On the wire each predicate is a
// single-key JSON object whose key is the operator name prefixed
// with "#" and whose value is the operand list; field references are
// strings prefixed with "$". For example,
//
//	oqs.And(oqs.Eq(oqs.Ref("location"), oqs.Lit("oslo")), oqs.Gt(oqs.Ref("depth"), oqs.Lit(100)))
//
// serializes as
//
//	{"#AND": [{"#EQUALS": [{"#REF": "location"}, {"#CONSTANT": "oslo"}]},
//	          {"#GREATER_THAN": [{"#REF": "depth"}, {"#CONSTANT": 100}]}]}
//
// Filters are evaluated server-side; Predicate.Match provides an
// equivalent client-side evaluation for local filtering and tests.
package oqs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operator names.
const (
	OpConstant = "CONSTANT"
	OpRef      = "REF"
	OpList     = "LIST"
	OpEquals   = "EQUALS"
	OpNotEq    = "NOT_EQUALS"
	OpGt       = "GREATER_THAN"
	OpGe       = "GREATER_THAN_OR_EQUALS"
	OpLt       = "LESS_THAN"
	OpLe       = "LESS_THAN_OR_EQUALS"
	OpIn       = "IS_IN"
	OpAnd      = "AND"
	OpOr       = "OR"
	OpNot      = "NOT"
)

const (
	predicatePrefix = "#"
	referencePrefix = "$"
)

// Predicate is one node of a filter expression tree.
type Predicate struct {
	op    string
	args  []*Predicate // operands, nil for CONSTANT/REF
	value interface{}  // CONSTANT only
	name  string       // REF only
}

// Op returns the node's operator name, without the "#" prefix.
func (p *Predicate) Op() string { return p.op }

// Lit returns a constant-value predicate.
func Lit(value interface{}) *Predicate {
	return &Predicate{op: OpConstant, value: value}
}

// Ref returns a predicate referring to the named row field.
func Ref(name string) *Predicate {
	return &Predicate{op: OpRef, name: name}
}

// List returns a list-valued predicate.
func List(items ...*Predicate) *Predicate {
	return &Predicate{op: OpList, args: items}
}

// Eq matches rows where left equals right.
func Eq(left, right *Predicate) *Predicate { return binary(OpEquals, left, right) }

// Ne matches rows where left does not equal right.
func Ne(left, right *Predicate) *Predicate { return binary(OpNotEq, left, right) }

// Gt matches rows where left is greater than right.
func Gt(left, right *Predicate) *Predicate { return binary(OpGt, left, right) }

// Ge matches rows where left is greater than or equal to right.
func Ge(left, right *Predicate) *Predicate { return binary(OpGe, left, right) }

// Lt matches rows where left is less than right.
func Lt(left, right *Predicate) *Predicate { return binary(OpLt, left, right) }

// Le matches rows where left is less than or equal to right.
func Le(left, right *Predicate) *Predicate { return binary(OpLe, left, right) }

// In matches rows where left is a member of the given list.
func In(left, list *Predicate) *Predicate { return binary(OpIn, left, list) }

// And matches rows satisfying every operand.
func And(preds ...*Predicate) *Predicate { return &Predicate{op: OpAnd, args: preds} }

// Or matches rows satisfying at least one operand.
func Or(preds ...*Predicate) *Predicate { return &Predicate{op: OpOr, args: preds} }

// Not matches rows not satisfying the operand.
func Not(pred *Predicate) *Predicate { return &Predicate{op: OpNot, args: []*Predicate{pred}} }

func binary(op string, left, right *Predicate) *Predicate {
	return &Predicate{op: op, args: []*Predicate{left, right}}
}

func (p *Predicate) MarshalJSON() ([]byte, error) {
	key := predicatePrefix + p.op
	switch p.op {
	case OpConstant:
		return json.Marshal(map[string]interface{}{key: p.value})
	case OpRef:
		return json.Marshal(map[string]string{key: p.name})
	default:
		return json.Marshal(map[string][]*Predicate{key: p.args})
	}
}

func (p *Predicate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("predicate must be a single key-value pair, got %d keys", len(raw))
	}
	var key string
	var operand json.RawMessage
	for k, v := range raw {
		key, operand = k, v
	}
	if !strings.HasPrefix(key, predicatePrefix) {
		return fmt.Errorf("unknown predicate key: %q", key)
	}
	op := strings.TrimPrefix(key, predicatePrefix)
	switch op {
	case OpConstant:
		var value interface{}
		if err := json.Unmarshal(operand, &value); err != nil {
			return err
		}
		*p = Predicate{op: OpConstant, value: value}
		return nil
	case OpRef:
		var name string
		if err := json.Unmarshal(operand, &name); err != nil {
			return err
		}
		*p = Predicate{op: OpRef, name: name}
		return nil
	case OpList, OpEquals, OpNotEq, OpGt, OpGe, OpLt, OpLe, OpIn, OpAnd, OpOr, OpNot:
		args, err := interpretArgs(operand)
		if err != nil {
			return err
		}
		*p = Predicate{op: op, args: args}
		return nil
	default:
		return fmt.Errorf("unknown predicate: %q", op)
	}
}

// interpretArgs decodes an operand list, accepting the compact forms
// the platform allows: bare values become constants, "$field"
// strings become references, nested arrays become lists.
func interpretArgs(data []byte) ([]*Predicate, error) {
	var rawArgs []json.RawMessage
	if err := json.Unmarshal(data, &rawArgs); err != nil {
		// A single non-list operand is treated as a one
		// element operand list.
		rawArgs = []json.RawMessage{json.RawMessage(data)}
	}
	args := make([]*Predicate, 0, len(rawArgs))
	for _, raw := range rawArgs {
		arg, err := interpretArg(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func interpretArg(data []byte) (*Predicate, error) {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if len(raw) == 1 {
			for k := range raw {
				if strings.HasPrefix(k, predicatePrefix) {
					p := new(Predicate)
					if err := p.UnmarshalJSON(data); err != nil {
						return nil, err
					}
					return p, nil
				}
			}
		}
		// Plain object constant.
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		return Lit(value), nil
	case strings.HasPrefix(trimmed, "["):
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		args := make([]*Predicate, 0, len(items))
		for _, item := range items {
			arg, err := interpretArg(item)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return List(args...), nil
	default:
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		if s, ok := value.(string); ok && strings.HasPrefix(s, referencePrefix) {
			return Ref(strings.TrimPrefix(s, referencePrefix)), nil
		}
		return Lit(value), nil
	}
}
