package filter

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kbridge-ai/kbridge/internal/entity"
	"github.com/kbridge-ai/kbridge/internal/timerange"
)

func testSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema([]Field{
		{Key: "created_at_unix", Type: TypeNumber, Description: "Creation time as Unix epoch"},
		{Key: "author_name", Type: TypeString, Description: "Name of the author"},
		{Key: "category", Type: TypeString, Description: "Content category"},
		{Key: "like_count", Type: TypeNumber, Description: "Number of likes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustRange(t *testing.T, expr string) timerange.Range {
	t.Helper()
	r, err := timerange.Parse(expr)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewSchema_Invalid(t *testing.T) {
	if _, err := NewSchema([]Field{{Key: "a", Type: "BOOLEAN"}}); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := NewSchema([]Field{{Key: "", Type: TypeString}}); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := NewSchema([]Field{{Key: "a", Type: TypeString}, {Key: "a", Type: TypeNumber}}); err == nil {
		t.Error("duplicate key accepted")
	}
}

func TestBuild_SingleName(t *testing.T) {
	schema := testSchema(t)
	node, dropped := Build(nil, []NameBinding{
		{Name: entity.Reference{Original: "Dr. John Smith", Elements: []string{"John", "Smith"}}, Key: "author_name"},
	}, nil, schema)
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped bindings: %v", dropped)
	}

	got, err := json.Marshal(node)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"andAll":[{"in":{"key":"author_name","value":"John"}},{"in":{"key":"author_name","value":"Smith"}}]}`
	if string(got) != want {
		t.Errorf("wire JSON = %s, want %s", got, want)
	}
}

func TestBuild_MultipleNamesJoinedWithOr(t *testing.T) {
	schema := testSchema(t)
	node, _ := Build(nil, []NameBinding{
		{Name: entity.Reference{Elements: []string{"John", "Smith"}}, Key: "author_name"},
		{Name: entity.Reference{Elements: []string{"Jane", "Doe"}}, Key: "author_name"},
	}, nil, schema)

	got, err := json.Marshal(node)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"orAll":[` +
		`{"andAll":[{"in":{"key":"author_name","value":"John"}},{"in":{"key":"author_name","value":"Smith"}}]},` +
		`{"andAll":[{"in":{"key":"author_name","value":"Jane"}},{"in":{"key":"author_name","value":"Doe"}}]}]}`
	if string(got) != want {
		t.Errorf("wire JSON = %s, want %s", got, want)
	}
}

func TestBuild_TemporalAndName(t *testing.T) {
	schema := testSchema(t)
	august := mustRange(t, "from 2025-08-01T00:00:00Z to 2025-08-31T23:59:59Z")

	node, dropped := Build(
		[]TemporalBinding{{Range: august, Key: "created_at_unix"}},
		[]NameBinding{{Name: entity.Reference{Elements: []string{"John", "Smith"}}, Key: "author_name"}},
		nil,
		schema,
	)
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped bindings: %v", dropped)
	}

	got, err := json.Marshal(node)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"andAll":[` +
		`{"andAll":[{"greaterThanOrEquals":{"key":"created_at_unix","value":1754006400}},{"lessThanOrEquals":{"key":"created_at_unix","value":1756684799}}]},` +
		`{"andAll":[{"in":{"key":"author_name","value":"John"}},{"in":{"key":"author_name","value":"Smith"}}]}]}`
	if string(got) != want {
		t.Errorf("wire JSON = %s, want %s", got, want)
	}
}

func TestBuild_NothingToFilter(t *testing.T) {
	node, dropped := Build(nil, nil, nil, testSchema(t))
	if node != nil {
		t.Errorf("expected nil node, got %v", node)
	}
	if len(dropped) != 0 {
		t.Errorf("expected no dropped bindings, got %v", dropped)
	}
}

func TestBuild_DropsUnknownKeys(t *testing.T) {
	schema := testSchema(t)
	august := mustRange(t, "from 2025-08-01T00:00:00Z to 2025-08-31T23:59:59Z")

	node, dropped := Build(
		[]TemporalBinding{{Range: august, Key: "no_such_field"}},
		[]NameBinding{{Name: entity.Reference{Elements: []string{"John"}}, Key: "author_name"}},
		[]*Leaf{{Op: OpGreaterThan, Key: "bogus", Value: 1}},
		schema,
	)
	if len(dropped) != 2 {
		t.Fatalf("dropped = %d bindings, want 2 (%v)", len(dropped), dropped)
	}
	for _, err := range dropped {
		if !errors.Is(err, ErrSchema) {
			t.Errorf("dropped error %v is not ErrSchema", err)
		}
	}

	// The one valid binding survives.
	keys := Keys(node)
	if _, ok := keys["author_name"]; !ok || len(keys) != 1 {
		t.Errorf("Keys = %v, want exactly {author_name}", keys)
	}
}

func TestKeys(t *testing.T) {
	node := And(
		Or(
			&Leaf{Op: OpEquals, Key: "category", Value: "technology"},
			&Leaf{Op: OpEquals, Key: "category", Value: "AI"},
		),
		&Leaf{Op: OpGreaterThan, Key: "like_count", Value: 10},
		And(
			&Leaf{Op: OpGreaterThanOrEquals, Key: "created_at_unix", Value: 1722470400},
			&Leaf{Op: OpLessThanOrEquals, Key: "created_at_unix", Value: 1725148799},
		),
	)

	got := Keys(node)
	want := map[string]struct{}{
		"category":        {},
		"like_count":      {},
		"created_at_unix": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

func TestKeys_NilTree(t *testing.T) {
	got := Keys(nil)
	if len(got) != 0 {
		t.Errorf("Keys(nil) = %v, want empty set", got)
	}
}

func TestKeys_MatchBindings(t *testing.T) {
	schema := testSchema(t)
	august := mustRange(t, "from 2025-08-01T00:00:00Z to 2025-08-31T23:59:59Z")

	node, _ := Build(
		[]TemporalBinding{{Range: august, Key: "created_at_unix"}},
		[]NameBinding{{Name: entity.Reference{Elements: []string{"Jane"}}, Key: "author_name"}},
		[]*Leaf{{Op: OpGreaterThan, Key: "like_count", Value: 10}},
		schema,
	)
	got := Keys(node)
	want := map[string]struct{}{
		"created_at_unix": {},
		"author_name":     {},
		"like_count":      {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

func TestGroupMarshal_EmptyChildrenRejected(t *testing.T) {
	g := &Group{Combinator: CombinatorAnd}
	if _, err := json.Marshal(g); err == nil {
		t.Error("marshalling an empty group should fail")
	}
}

func TestSchemaRender(t *testing.T) {
	out := testSchema(t).Render()
	for _, want := range []string{"author_name (STRING)", "created_at_unix (NUMBER)", "Name of the author"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}
