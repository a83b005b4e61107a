package arclight

import (
	"encoding/json"
	"fmt"
)

// Op is the operator of a predicate node.
type Op string

const (
	OpEquals Op = "equals"
	OpAnd    Op = "and"
	OpOr     Op = "or"
)

// FromKey is the pseudo tag name matching a record's owner address.
const FromKey = "from"

// Predicate is one node of an exact-match tag query tree. Leaves compare a
// tag (or the owner address, via FromKey) to a value; inner nodes combine two
// subtrees.
type Predicate struct {
	Op    Op
	Key   string
	Value string
	Left  *Predicate
	Right *Predicate
}

// Equals matches records whose tag key has exactly value.
func Equals(key, value string) *Predicate {
	return &Predicate{Op: OpEquals, Key: key, Value: value}
}

// From matches records owned by address.
func From(address Address) *Predicate {
	return Equals(FromKey, string(address))
}

// And matches records matching both subtrees.
func And(left, right *Predicate) *Predicate {
	return &Predicate{Op: OpAnd, Left: left, Right: right}
}

// Or matches records matching either subtree.
func Or(left, right *Predicate) *Predicate {
	return &Predicate{Op: OpOr, Left: left, Right: right}
}

// Validate checks the tree shape.
func (p *Predicate) Validate() error {
	if p == nil {
		return fmt.Errorf("empty predicate")
	}
	switch p.Op {
	case OpEquals:
		if p.Key == "" {
			return fmt.Errorf("equals predicate without a key")
		}
		return nil
	case OpAnd, OpOr:
		if err := p.Left.Validate(); err != nil {
			return err
		}
		return p.Right.Validate()
	default:
		return fmt.Errorf("unknown predicate op %q", p.Op)
	}
}

// Match evaluates the predicate against one record.
func (p *Predicate) Match(owner Address, tags Tags) bool {
	switch p.Op {
	case OpEquals:
		if p.Key == FromKey {
			return string(owner) == p.Value
		}
		v, ok := tags.Get(p.Key)
		return ok && v == p.Value
	case OpAnd:
		return p.Left.Match(owner, tags) && p.Right.Match(owner, tags)
	case OpOr:
		return p.Left.Match(owner, tags) || p.Right.Match(owner, tags)
	}
	return false
}

// IDSet is an unordered set of record ids.
type IDSet map[RecordID]struct{}

// Eval evaluates the predicate with set algebra over an exact-match index.
// lookup returns the ids carrying key=value (or owned by value for FromKey).
func (p *Predicate) Eval(lookup func(key, value string) (IDSet, error)) (IDSet, error) {
	switch p.Op {
	case OpEquals:
		return lookup(p.Key, p.Value)
	case OpAnd, OpOr:
		left, err := p.Left.Eval(lookup)
		if err != nil {
			return nil, err
		}
		if p.Op == OpAnd && len(left) == 0 {
			return IDSet{}, nil
		}
		right, err := p.Right.Eval(lookup)
		if err != nil {
			return nil, err
		}
		out := IDSet{}
		if p.Op == OpAnd {
			for id := range left {
				if _, ok := right[id]; ok {
					out[id] = struct{}{}
				}
			}
			return out, nil
		}
		for id := range left {
			out[id] = struct{}{}
		}
		for id := range right {
			out[id] = struct{}{}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown predicate op %q", p.Op)
}

// MarshalJSON renders the gateway query shape {op, expr1, expr2}.
func (p *Predicate) MarshalJSON() ([]byte, error) {
	if p.Op == OpEquals {
		return json.Marshal(struct {
			Op    Op     `json:"op"`
			Expr1 string `json:"expr1"`
			Expr2 string `json:"expr2"`
		}{p.Op, p.Key, p.Value})
	}
	return json.Marshal(struct {
		Op    Op         `json:"op"`
		Expr1 *Predicate `json:"expr1"`
		Expr2 *Predicate `json:"expr2"`
	}{p.Op, p.Left, p.Right})
}

func (p *Predicate) String() string {
	switch p.Op {
	case OpEquals:
		return fmt.Sprintf("%s=%s", p.Key, p.Value)
	case OpAnd, OpOr:
		return fmt.Sprintf("(%s %s %s)", p.Left, p.Op, p.Right)
	}
	return string(p.Op)
}
