package filter

import (
	"errors"
	"fmt"

	"github.com/kbridge-ai/kbridge/internal/entity"
	"github.com/kbridge-ai/kbridge/internal/timerange"
)

// ErrSchema indicates a binding referencing a key the schema does not
// declare. The offending binding is dropped; the rest of the filter is
// still built.
var ErrSchema = errors.New("unknown metadata field")

// TemporalBinding ties a parsed time range to the schema key it filters on.
// The key decision comes from the extraction model; Build only validates it.
type TemporalBinding struct {
	Range timerange.Range
	Key   string
}

// NameBinding ties a resolved name reference to the schema key it filters on.
type NameBinding struct {
	Name entity.Reference
	Key  string
}

// Build assembles a filter tree from validated bindings:
//
//   - each temporal binding becomes greaterThanOrEquals(start epoch) AND
//     lessThanOrEquals(end epoch)
//   - each name binding becomes an AND over one in(key, element) leaf per
//     element, so elements match in any order and with any stored formatting
//   - distinct name bindings are joined with OR
//   - everything, plus any extra leaves the caller supplies, is joined with
//     a single outer AND
//
// Bindings whose key is absent from the schema are dropped and reported as
// ErrSchema values in the second return; the tree is still built from the
// rest. A nil tree with no errors means there was nothing to filter on.
func Build(temporals []TemporalBinding, names []NameBinding, extras []*Leaf, schema Schema) (Node, []error) {
	var dropped []error
	var top []Node

	for _, tb := range temporals {
		if !schema.Has(tb.Key) {
			dropped = append(dropped, fmt.Errorf("%w: %q (temporal reference %q)", ErrSchema, tb.Key, tb.Range.Original))
			continue
		}
		top = append(top, And(
			&Leaf{Op: OpGreaterThanOrEquals, Key: tb.Key, Value: tb.Range.StartUnix()},
			&Leaf{Op: OpLessThanOrEquals, Key: tb.Key, Value: tb.Range.EndUnix()},
		))
	}

	var nameGroups []Node
	for _, nb := range names {
		if !schema.Has(nb.Key) {
			dropped = append(dropped, fmt.Errorf("%w: %q (name reference %q)", ErrSchema, nb.Key, nb.Name.Original))
			continue
		}
		if len(nb.Name.Elements) == 0 {
			continue
		}
		leaves := make([]Node, len(nb.Name.Elements))
		for i, el := range nb.Name.Elements {
			leaves[i] = &Leaf{Op: OpIn, Key: nb.Key, Value: el}
		}
		nameGroups = append(nameGroups, And(leaves...))
	}
	if n := Or(nameGroups...); n != nil {
		top = append(top, n)
	}

	for _, ex := range extras {
		if !schema.Has(ex.Key) {
			dropped = append(dropped, fmt.Errorf("%w: %q", ErrSchema, ex.Key))
			continue
		}
		top = append(top, ex)
	}

	return And(top...), dropped
}
