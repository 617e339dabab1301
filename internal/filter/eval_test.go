package filter

import "testing"

func TestMatches_NilTree(t *testing.T) {
	if !Matches(nil, map[string]any{"anything": 1}) {
		t.Error("nil tree must match every document")
	}
}

func TestMatches_Leaf(t *testing.T) {
	doc := map[string]any{
		"category":        "technology",
		"author_name":     "John Smith",
		"tags":            []any{"ai", "golang"},
		"like_count":      float64(42),
		"created_at_unix": float64(1754006400),
	}

	cases := []struct {
		name string
		leaf *Leaf
		want bool
	}{
		{"equals match", &Leaf{Op: OpEquals, Key: "category", Value: "technology"}, true},
		{"equals is case-sensitive", &Leaf{Op: OpEquals, Key: "category", Value: "Technology"}, false},
		{"equals mismatch", &Leaf{Op: OpEquals, Key: "category", Value: "sports"}, false},
		{"notEquals", &Leaf{Op: OpNotEquals, Key: "category", Value: "sports"}, true},
		{"in token of scalar field", &Leaf{Op: OpIn, Key: "author_name", Value: "Smith"}, true},
		{"in token missing", &Leaf{Op: OpIn, Key: "author_name", Value: "Jones"}, false},
		{"in sequence field", &Leaf{Op: OpIn, Key: "tags", Value: "golang"}, true},
		{"in sequence field missing", &Leaf{Op: OpIn, Key: "tags", Value: "python"}, false},
		{"notIn", &Leaf{Op: OpNotIn, Key: "tags", Value: "python"}, true},
		{"greaterThan numeric", &Leaf{Op: OpGreaterThan, Key: "like_count", Value: 10}, true},
		{"greaterThan equal is false", &Leaf{Op: OpGreaterThan, Key: "like_count", Value: 42}, false},
		{"greaterThanOrEquals equal", &Leaf{Op: OpGreaterThanOrEquals, Key: "like_count", Value: 42}, true},
		{"lessThan", &Leaf{Op: OpLessThan, Key: "like_count", Value: 100}, true},
		{"lessThanOrEquals", &Leaf{Op: OpLessThanOrEquals, Key: "created_at_unix", Value: 1754006400}, true},
		{"stringContains", &Leaf{Op: OpStringContains, Key: "author_name", Value: "hn Sm"}, true},
		{"stringContains is case-sensitive", &Leaf{Op: OpStringContains, Key: "author_name", Value: "JOHN"}, false},
		{"stringContains miss", &Leaf{Op: OpStringContains, Key: "author_name", Value: "Doe"}, false},
		{"missing field never matches", &Leaf{Op: OpEquals, Key: "absent", Value: "x"}, false},
		{"missing field notEquals still false", &Leaf{Op: OpNotEquals, Key: "absent", Value: "x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.leaf, doc); got != tc.want {
				t.Errorf("Matches(%s %s %v) = %v, want %v", tc.leaf.Op, tc.leaf.Key, tc.leaf.Value, got, tc.want)
			}
		})
	}
}

func TestMatches_NumericStringCoercion(t *testing.T) {
	// Epochs frequently arrive as strings in sidecar metadata.
	doc := map[string]any{"created_at_unix": "1754006400"}
	leaf := &Leaf{Op: OpGreaterThanOrEquals, Key: "created_at_unix", Value: 1754006400}
	if !Matches(leaf, doc) {
		t.Error("string-encoded number should compare numerically")
	}
}

func TestMatches_Groups(t *testing.T) {
	doc := map[string]any{
		"author_name":     "Jane Doe",
		"created_at_unix": float64(1755000000),
	}

	august := And(
		&Leaf{Op: OpGreaterThanOrEquals, Key: "created_at_unix", Value: 1754006400},
		&Leaf{Op: OpLessThanOrEquals, Key: "created_at_unix", Value: 1756684799},
	)
	jane := And(
		&Leaf{Op: OpIn, Key: "author_name", Value: "Jane"},
		&Leaf{Op: OpIn, Key: "author_name", Value: "Doe"},
	)
	john := And(
		&Leaf{Op: OpIn, Key: "author_name", Value: "John"},
		&Leaf{Op: OpIn, Key: "author_name", Value: "Smith"},
	)

	if !Matches(And(august, jane), doc) {
		t.Error("range and matching name should pass")
	}
	if Matches(And(august, john), doc) {
		t.Error("non-matching name must fail the conjunction")
	}
	if !Matches(Or(john, jane), doc) {
		t.Error("disjunction with one matching branch should pass")
	}
	if Matches(Or(john, And(jane, &Leaf{Op: OpEquals, Key: "absent", Value: 1})), doc) {
		t.Error("disjunction with no matching branch must fail")
	}
}

func TestAndOrCollapse(t *testing.T) {
	leaf := &Leaf{Op: OpEquals, Key: "category", Value: "AI"}

	if And() != nil {
		t.Error("And() should collapse to nil")
	}
	if Or(nil, nil) != nil {
		t.Error("Or of nils should collapse to nil")
	}
	if got := And(nil, leaf, nil); got != Node(leaf) {
		t.Errorf("And with one child should collapse to the child, got %v", got)
	}
	g, ok := And(leaf, leaf).(*Group)
	if !ok || g.Combinator != CombinatorAnd || len(g.Children) != 2 {
		t.Errorf("And with two children should form a group, got %v", g)
	}
}
