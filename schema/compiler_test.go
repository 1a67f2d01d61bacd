package schema

import (
	"errors"
	"reflect"
	"testing"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// testResource is a minimal Resource backed by literal declarations.
type testResource struct {
	typ      string
	decls    []Declaration
	defaults []string
}

func (r *testResource) Type() string                { return r.typ }
func (r *testResource) Declarations() []Declaration { return r.decls }
func (r *testResource) DefaultFields() []string     { return r.defaults }

func userResource() *testResource {
	return &testResource{
		typ: "users",
		decls: []Declaration{
			{Key: "id"},
			{Key: "name"},
			{Key: "organization", Spec: FieldSpec{Relation: "organization", Resource: "organizations"}},
			{Key: "count:posts", Spec: FieldSpec{Metric: MetricCount, Default: true}},
		},
		defaults: []string{"id", "name"},
	}
}

func TestCompile_FieldKinds(t *testing.T) {
	tests := []struct {
		name string
		spec FieldSpec
		want FieldKind
	}{
		{"plain attribute", FieldSpec{}, KindAttribute},
		{"accessor path", FieldSpec{AccessorPath: "profile.name"}, KindAccessor},
		{"accessor func", FieldSpec{AccessorFunc: func(apitoolkit.Record) interface{} { return nil }}, KindAccessor},
		{"compute", FieldSpec{Compute: func(apitoolkit.Record, apitoolkit.RequestContext) interface{} { return nil }}, KindCompute},
		{"relation", FieldSpec{Relation: "posts"}, KindRelation},
		{"compute wins over relation", FieldSpec{
			Compute:  func(apitoolkit.Record, apitoolkit.RequestContext) interface{} { return nil },
			Relation: "posts",
		}, KindCompute},
		{"relation wins over accessor", FieldSpec{Relation: "posts", AccessorPath: "x"}, KindRelation},
	}

	for _, tt := range tests {
		c := NewCompiler()
		if err := c.Register(&testResource{typ: "t", decls: []Declaration{{Key: "f", Spec: tt.spec}}}); err != nil {
			t.Fatalf("%s: Register failed: %v", tt.name, err)
		}
		cs, err := c.Compile("t")
		if err != nil {
			t.Fatalf("%s: Compile failed: %v", tt.name, err)
		}
		if cs.Fields["f"].Kind != tt.want {
			t.Errorf("%s: Kind = %s, want %s", tt.name, cs.Fields["f"].Kind, tt.want)
		}
	}
}

func TestCompile_CountPresentKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		spec        FieldSpec
		wantPresent string
		wantRel     string
	}{
		{"explicit alias", "count:posts", FieldSpec{Metric: MetricCount, As: "published"}, "published", "published"},
		{"prefix stripped", "count:posts", FieldSpec{Metric: MetricCount}, "posts", "posts"},
		{"raw key", "comments", FieldSpec{Metric: MetricCount}, "comments", "comments"},
		{"explicit relation", "count:published", FieldSpec{Metric: MetricCount, Relation: "posts"}, "published", "posts"},
	}

	for _, tt := range tests {
		c := NewCompiler()
		if err := c.Register(&testResource{typ: "t", decls: []Declaration{{Key: tt.key, Spec: tt.spec}}}); err != nil {
			t.Fatalf("%s: Register failed: %v", tt.name, err)
		}
		cs, err := c.Compile("t")
		if err != nil {
			t.Fatalf("%s: Compile failed: %v", tt.name, err)
		}
		def, ok := cs.Counts[tt.wantPresent]
		if !ok {
			t.Fatalf("%s: count %q not compiled; have %v", tt.name, tt.wantPresent, cs.CountOrder)
		}
		if def.Relation != tt.wantRel {
			t.Errorf("%s: Relation = %q, want %q", tt.name, def.Relation, tt.wantRel)
		}
	}
}

func TestCompile_LastWriteWins(t *testing.T) {
	c := NewCompiler()
	err := c.Register(&testResource{
		typ: "t",
		decls: []Declaration{
			{Key: "name", Spec: FieldSpec{AccessorPath: "old_name"}},
			{Key: "email"},
			{Key: "name", Spec: FieldSpec{AccessorPath: "new_name"}},
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cs, err := c.Compile("t")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := cs.Fields["name"].AccessorPath; got != "new_name" {
		t.Errorf("AccessorPath = %q, want %q", got, "new_name")
	}
	wantOrder := []string{"email", "name"}
	if !reflect.DeepEqual(cs.FieldOrder, wantOrder) {
		t.Errorf("FieldOrder = %v, want %v", cs.FieldOrder, wantOrder)
	}
}

func TestCompile_Idempotent(t *testing.T) {
	c := NewCompiler()
	if err := c.Register(userResource()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	first, err := c.Compile("users")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := c.Compile("users")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if first != second {
		t.Error("repeated Compile should return the cached instance")
	}

	c.ClearCache()
	third, err := c.Compile("users")
	if err != nil {
		t.Fatalf("Compile after ClearCache failed: %v", err)
	}
	if third == first {
		t.Error("Compile after ClearCache should build a fresh instance")
	}
	if !reflect.DeepEqual(third.FieldOrder, first.FieldOrder) {
		t.Errorf("recompiled FieldOrder = %v, want %v", third.FieldOrder, first.FieldOrder)
	}
	if !reflect.DeepEqual(third.CountOrder, first.CountOrder) {
		t.Errorf("recompiled CountOrder = %v, want %v", third.CountOrder, first.CountOrder)
	}
}

func TestCompile_Errors(t *testing.T) {
	c := NewCompiler()

	if err := c.Register(&testResource{typ: ""}); !errors.Is(err, ErrNoType) {
		t.Errorf("Register with empty type = %v, want ErrNoType", err)
	}

	if _, err := c.Compile("ghosts"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Compile unknown type = %v, want ErrNotRegistered", err)
	}
}

func TestCompile_ReRegisterInvalidatesCache(t *testing.T) {
	c := NewCompiler()
	if err := c.Register(&testResource{typ: "t", decls: []Declaration{{Key: "a"}}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	before, err := c.Compile("t")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if err := c.Register(&testResource{typ: "t", decls: []Declaration{{Key: "a"}, {Key: "b"}}}); err != nil {
		t.Fatalf("re-Register failed: %v", err)
	}
	after, err := c.Compile("t")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if before == after {
		t.Error("re-registering a resource should invalidate its cached schema")
	}
	if len(after.FieldOrder) != 2 {
		t.Errorf("FieldOrder = %v, want two fields", after.FieldOrder)
	}
}
