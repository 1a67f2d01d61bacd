package resource

import (
	"strings"
	"testing"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

func compileFor(t *testing.T, c *schema.Compiler, resourceType string) *schema.CompiledSchema {
	t.Helper()
	cs, err := c.Compile(resourceType)
	if err != nil {
		t.Fatalf("Compile(%s) failed: %v", resourceType, err)
	}
	return cs
}

func TestResolveField_GuardSuppresses(t *testing.T) {
	c := newTestCompiler()
	p := NewProjector(c, "users", nil)
	cs := compileFor(t, c, "users")

	rec := apitoolkit.MapRecord{"secret": "hunter2"}
	def := cs.Fields["secret"]

	if _, present, err := p.ResolveField(def, rec); err != nil || present {
		t.Errorf("guarded field: present=%v err=%v, want missing", present, err)
	}
}

func TestResolveField_NilGuardPasses(t *testing.T) {
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "f", Spec: schema.FieldSpec{Guards: []apitoolkit.Guard{nil}}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	value, present, err := p.ResolveField(cs.Fields["f"], apitoolkit.MapRecord{"f": "v"})
	if err != nil {
		t.Fatalf("ResolveField failed: %v", err)
	}
	if !present || value != "v" {
		t.Errorf("nil guard should pass: got (%v, %v)", value, present)
	}
}

func TestResolveField_GuardShortCircuits(t *testing.T) {
	invoked := false
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "f", Spec: schema.FieldSpec{Guards: []apitoolkit.Guard{
			func(apitoolkit.Record, apitoolkit.RequestContext) bool { return false },
			func(apitoolkit.Record, apitoolkit.RequestContext) bool { invoked = true; return true },
		}}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	p.ResolveField(cs.Fields["f"], apitoolkit.MapRecord{"f": 1})
	if invoked {
		t.Error("second guard must not run after the first fails")
	}
}

func TestResolveField_RelationStates(t *testing.T) {
	c := newTestCompiler()
	p := NewProjector(c, "users", nil)
	cs := compileFor(t, c, "users")
	def := cs.Fields["organization"]

	// Not preloaded: missing.
	if _, present, _ := p.ResolveField(def, apitoolkit.MapRecord{}); present {
		t.Error("unloaded relation should resolve as missing")
	}

	// Preloaded nil: explicit null.
	rec := apitoolkit.MapRecord{"organization": nil}
	value, present, err := p.ResolveField(def, rec)
	if err != nil {
		t.Fatalf("ResolveField failed: %v", err)
	}
	if !present || value != nil {
		t.Errorf("loaded nil relation = (%v, %v), want explicit null", value, present)
	}

	// Preloaded value: wrapped in the child resource.
	rec = apitoolkit.MapRecord{"organization": map[string]interface{}{"id": 1, "name": "Acme"}}
	value, present, err = p.ResolveField(def, rec)
	if err != nil {
		t.Fatalf("ResolveField failed: %v", err)
	}
	if !present {
		t.Fatal("loaded relation should resolve")
	}
	nested, ok := value.(*OrderedMap)
	if !ok {
		t.Fatalf("expected nested projection, got %T", value)
	}
	if typ, _ := nested.Get(TypeMarkerKey); typ != "organizations" {
		t.Errorf("nested type marker = %v, want organizations", typ)
	}
	if name, _ := nested.Get("name"); name != "Acme" {
		t.Errorf("nested name = %v, want Acme", name)
	}
}

func TestResolveField_RelationCollection(t *testing.T) {
	c := newTestCompiler()
	p := NewProjector(c, "users", nil)
	cs := compileFor(t, c, "users")

	rec := apitoolkit.MapRecord{"posts": []map[string]interface{}{
		{"id": 1, "title": "first"},
		{"id": 2, "title": "second"},
	}}

	value, present, err := p.ResolveField(cs.Fields["posts"], rec)
	if err != nil {
		t.Fatalf("ResolveField failed: %v", err)
	}
	if !present {
		t.Fatal("loaded collection should resolve")
	}
	items, ok := value.([]*OrderedMap)
	if !ok {
		t.Fatalf("expected projected collection, got %T", value)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if title, _ := items[1].Get("title"); title != "second" {
		t.Errorf("second item title = %v, want second", title)
	}
}

func TestResolveField_RelationAccessorOnCollection(t *testing.T) {
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "post_titles", Spec: schema.FieldSpec{
			Relation: "posts",
			AccessorFunc: func(rec apitoolkit.Record) interface{} {
				title, _ := rec.Attribute("title")
				return title
			},
		}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	rec := apitoolkit.MapRecord{"posts": []map[string]interface{}{
		{"id": 1, "title": "first"},
		{"id": 2, "title": "second"},
	}}

	value, present, err := p.ResolveField(cs.Fields["post_titles"], rec)
	if err != nil {
		t.Fatalf("ResolveField failed: %v", err)
	}
	if !present {
		t.Fatal("loaded collection should resolve")
	}
	titles, ok := value.([]interface{})
	if !ok {
		t.Fatalf("expected element-wise extraction, got %T", value)
	}
	if len(titles) != 2 || titles[0] != "first" || titles[1] != "second" {
		t.Errorf("extracted titles = %v, want [first second]", titles)
	}
}

func TestResolveField_EmptyCollectionIsNull(t *testing.T) {
	c := newTestCompiler()
	p := NewProjector(c, "users", nil)
	cs := compileFor(t, c, "users")

	rec := apitoolkit.MapRecord{"posts": []map[string]interface{}{}}
	value, present, _ := p.ResolveField(cs.Fields["posts"], rec)
	if !present || value != nil {
		t.Errorf("loaded empty collection = (%v, %v), want explicit null", value, present)
	}
}

func TestResolveField_AccessorPath(t *testing.T) {
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "city", Spec: schema.FieldSpec{AccessorPath: "address.city"}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	rec := apitoolkit.MapRecord{"address": map[string]interface{}{"city": "Lisbon"}}
	value, present, _ := p.ResolveField(cs.Fields["city"], rec)
	if !present || value != "Lisbon" {
		t.Errorf("accessor path = (%v, %v), want Lisbon", value, present)
	}

	// A broken path resolves as missing.
	if _, present, _ := p.ResolveField(cs.Fields["city"], apitoolkit.MapRecord{}); present {
		t.Error("broken accessor path should resolve as missing")
	}
}

func TestResolveField_TransformersRunInOrder(t *testing.T) {
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "name", Spec: schema.FieldSpec{Transformers: []apitoolkit.Transformer{
			func(_ apitoolkit.RequestContext, v interface{}) interface{} { return strings.ToUpper(v.(string)) },
			func(_ apitoolkit.RequestContext, v interface{}) interface{} { return v.(string) + "!" },
			nil,
		}}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	value, present, _ := p.ResolveField(cs.Fields["name"], apitoolkit.MapRecord{"name": "ada"})
	if !present || value != "ADA!" {
		t.Errorf("transformed value = (%v, %v), want ADA!", value, present)
	}
}

func TestResolveField_Compute(t *testing.T) {
	c := schema.NewCompiler()
	c.Register(&staticResource{typ: "t", decls: []schema.Declaration{
		{Key: "full_name", Spec: schema.FieldSpec{Compute: func(rec apitoolkit.Record, _ apitoolkit.RequestContext) interface{} {
			first, _ := rec.Attribute("first")
			last, _ := rec.Attribute("last")
			return first.(string) + " " + last.(string)
		}}},
	}})
	p := NewProjector(c, "t", nil)
	cs := compileFor(t, c, "t")

	value, present, _ := p.ResolveField(cs.Fields["full_name"], apitoolkit.MapRecord{"first": "Ada", "last": "Lovelace"})
	if !present || value != "Ada Lovelace" {
		t.Errorf("computed value = (%v, %v), want Ada Lovelace", value, present)
	}
}

func TestResolveField_MissingAttribute(t *testing.T) {
	c := newTestCompiler()
	p := NewProjector(c, "users", nil)
	cs := compileFor(t, c, "users")

	if _, present, _ := p.ResolveField(cs.Fields["email"], apitoolkit.MapRecord{}); present {
		t.Error("absent attribute should resolve as missing")
	}
}

func TestResolveCounts(t *testing.T) {
	c := newTestCompiler()
	cs := compileFor(t, c, "users")
	rec := apitoolkit.MapRecord{"posts_count": int64(7)}

	// No aliases requested: defaults apply.
	p := NewProjector(c, "users", nil)
	payload := p.ResolveCounts(cs, rec)
	if v, _ := payload.Get("posts"); v != 7 {
		t.Errorf("default count = %v, want 7", v)
	}

	// Aliases requested but not matching: nothing included.
	ctx := &fakeContext{counts: map[string][]string{"users": {"comments"}}}
	p = NewProjector(c, "users", ctx)
	if payload := p.ResolveCounts(cs, rec); payload.Len() != 0 {
		t.Errorf("non-matching alias produced %d entries, want 0", payload.Len())
	}

	// Matching alias included even without Default.
	ctx = &fakeContext{counts: map[string][]string{"users": {"posts"}}}
	p = NewProjector(c, "users", ctx)
	if v, _ := p.ResolveCounts(cs, rec).Get("posts"); v != 7 {
		t.Errorf("aliased count = %v, want 7", v)
	}
}
