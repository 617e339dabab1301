// Package filter models retrieval metadata filters as a boolean tree of
// comparison predicates, builds trees from extracted query references, and
// serializes them to the nested andAll/orAll JSON the retrieval backend
// consumes. The wire shape is a hard contract; the in-memory tree is a
// tagged variant and only crosses into JSON at the backend boundary.
package filter

import (
	"encoding/json"
	"fmt"
)

// Operator is a leaf comparison operator. The names double as the wire
// encoding and must not be changed.
type Operator string

const (
	OpEquals              Operator = "equals"
	OpNotEquals           Operator = "notEquals"
	OpIn                  Operator = "in"
	OpNotIn               Operator = "notIn"
	OpGreaterThan         Operator = "greaterThan"
	OpGreaterThanOrEquals Operator = "greaterThanOrEquals"
	OpLessThan            Operator = "lessThan"
	OpLessThanOrEquals    Operator = "lessThanOrEquals"
	OpStringContains      Operator = "stringContains"
)

// Combinator joins the children of a group node. The names double as the
// wire encoding.
type Combinator string

const (
	CombinatorAnd Combinator = "andAll"
	CombinatorOr  Combinator = "orAll"
)

// Node is either a *Leaf or a *Group. A nil Node means "no filter".
type Node interface {
	json.Marshaler
	isNode()
}

// Leaf is a single comparison over a named metadata field. Value is a
// string, a number, or a sequence, depending on the operator.
type Leaf struct {
	Op    Operator
	Key   string
	Value any
}

// Group combines one or more child nodes with a boolean combinator.
// A group's children are never empty by construction.
type Group struct {
	Combinator Combinator
	Children   []Node
}

func (*Leaf) isNode()  {}
func (*Group) isNode() {}

// MarshalJSON encodes a leaf as {"<operator>": {"key": ..., "value": ...}}.
func (l *Leaf) MarshalJSON() ([]byte, error) {
	body := map[string]any{"key": l.Key, "value": l.Value}
	return json.Marshal(map[string]any{string(l.Op): body})
}

// MarshalJSON encodes a group as {"andAll": [...]} or {"orAll": [...]}.
func (g *Group) MarshalJSON() ([]byte, error) {
	if len(g.Children) == 0 {
		return nil, fmt.Errorf("filter: group with combinator %q has no children", g.Combinator)
	}
	return json.Marshal(map[string][]Node{string(g.Combinator): g.Children})
}

// And returns an AND group over the given children, collapsing trivial
// shapes: zero children yield nil, a single child is returned as itself.
func And(children ...Node) Node { return group(CombinatorAnd, children) }

// Or returns an OR group over the given children with the same collapsing
// rules as And.
func Or(children ...Node) Node { return group(CombinatorOr, children) }

func group(c Combinator, children []Node) Node {
	compact := make([]Node, 0, len(children))
	for _, ch := range children {
		if ch != nil {
			compact = append(compact, ch)
		}
	}
	switch len(compact) {
	case 0:
		return nil
	case 1:
		return compact[0]
	default:
		return &Group{Combinator: c, Children: compact}
	}
}

// Keys returns the set of field keys referenced anywhere in the tree.
// A nil tree yields an empty set.
func Keys(n Node) map[string]struct{} {
	keys := make(map[string]struct{})
	collectKeys(n, keys)
	return keys
}

func collectKeys(n Node, keys map[string]struct{}) {
	switch t := n.(type) {
	case *Leaf:
		keys[t.Key] = struct{}{}
	case *Group:
		for _, ch := range t.Children {
			collectKeys(ch, keys)
		}
	}
}
