package filter

import (
	"strconv"
	"strings"
	"unicode"
)

// Matches evaluates the tree against one document's metadata. It gives the
// local retrieval backend the same semantics the wire contract promises:
//
//   - in(key, v): v is a member of the field's value set. For a sequence
//     value that is classic set membership; for a scalar value the field's
//     value set is its token set, so in(author_name, "John") matches
//     "John Smith", "Smith, John", and "Dr. John Q. Smith" alike. Token
//     comparison is case-insensitive.
//   - ordering operators compare numerically when both sides are numbers,
//     lexicographically otherwise (ISO-8601 strings order correctly).
//
// A predicate over a field absent from the metadata is false, which makes
// a nil tree (no filter) the only way to match everything.
func Matches(n Node, metadata map[string]any) bool {
	if n == nil {
		return true
	}
	switch t := n.(type) {
	case *Leaf:
		return matchLeaf(t, metadata)
	case *Group:
		for _, ch := range t.Children {
			ok := Matches(ch, metadata)
			if t.Combinator == CombinatorAnd && !ok {
				return false
			}
			if t.Combinator == CombinatorOr && ok {
				return true
			}
		}
		return t.Combinator == CombinatorAnd
	}
	return false
}

func matchLeaf(l *Leaf, metadata map[string]any) bool {
	field, ok := metadata[l.Key]
	if !ok {
		return false
	}

	switch l.Op {
	case OpEquals:
		return scalarEqual(field, l.Value)
	case OpNotEquals:
		return !scalarEqual(field, l.Value)
	case OpIn:
		return inSet(field, l.Value)
	case OpNotIn:
		return !inSet(field, l.Value)
	case OpGreaterThan:
		return compare(field, l.Value) > 0
	case OpGreaterThanOrEquals:
		return compare(field, l.Value) >= 0
	case OpLessThan:
		return compare(field, l.Value) < 0
	case OpLessThanOrEquals:
		return compare(field, l.Value) <= 0
	case OpStringContains:
		return strings.Contains(asString(field), asString(l.Value))
	}
	return false
}

func inSet(field, value any) bool {
	if seq, ok := asSequence(value); ok {
		for _, v := range seq {
			if scalarEqual(field, v) {
				return true
			}
		}
		return false
	}

	// A sequence-valued field (tags and the like) keeps classic membership.
	if seq, ok := asSequence(field); ok {
		for _, v := range seq {
			if scalarEqual(v, value) {
				return true
			}
		}
		return false
	}

	// Scalar field, scalar value: membership in the field's token set.
	want := strings.ToLower(asString(value))
	for _, tok := range tokenize(asString(field)) {
		if tok == want {
			return true
		}
	}
	return false
}

// tokenize lowercases and splits on any non-letter, non-digit rune.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func asSequence(v any) ([]any, bool) {
	switch seq := v.(type) {
	case []any:
		return seq, true
	case []string:
		out := make([]any, len(seq))
		for i, s := range seq {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func scalarEqual(a, b any) bool {
	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return na == nb
		}
	}
	return asString(a) == asString(b)
}

// compare returns -1, 0, or 1 for field vs value; numeric when both sides
// parse as numbers, lexicographic otherwise.
func compare(field, value any) int {
	if nf, fok := asNumber(field); fok {
		if nv, vok := asNumber(value); vok {
			switch {
			case nf < nv:
				return -1
			case nf > nv:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(asString(field), asString(value))
}

func asNumber(v any) (float64, bool) {
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
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	}
	return ""
}
