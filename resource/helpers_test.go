package resource

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

type fakeContext struct {
	fields map[string][]string
	counts map[string][]string
}

func (c *fakeContext) Fields(resourceType string) []string { return c.fields[resourceType] }
func (c *fakeContext) Counts(resourceType string) []string { return c.counts[resourceType] }

type staticResource struct {
	typ      string
	decls    []schema.Declaration
	defaults []string
}

func (r *staticResource) Type() string                       { return r.typ }
func (r *staticResource) Declarations() []schema.Declaration { return r.decls }
func (r *staticResource) DefaultFields() []string            { return r.defaults }

// newTestCompiler registers a users/organizations/posts schema triple close
// to a real deployment: relations, a guarded field, a transformer and a
// default count metric.
func newTestCompiler() *schema.Compiler {
	c := schema.NewCompiler()

	c.Register(&staticResource{
		typ: "users",
		decls: []schema.Declaration{
			{Key: "id"},
			{Key: "name"},
			{Key: "email"},
			{Key: "status"},
			{Key: "created_at"},
			{Key: "updated_at"},
			{Key: "organization", Spec: schema.FieldSpec{Relation: "organization", Resource: "organizations"}},
			{Key: "posts", Spec: schema.FieldSpec{Relation: "posts", Resource: "posts"}},
			{Key: "secret", Spec: schema.FieldSpec{
				Guards: []apitoolkit.Guard{func(apitoolkit.Record, apitoolkit.RequestContext) bool { return false }},
			}},
			{Key: "count:posts", Spec: schema.FieldSpec{Metric: schema.MetricCount, Default: true}},
		},
		defaults: []string{"id", "name", "email"},
	})

	c.Register(&staticResource{
		typ: "organizations",
		decls: []schema.Declaration{
			{Key: "id"},
			{Key: "name"},
		},
		defaults: []string{"id", "name"},
	})

	c.Register(&staticResource{
		typ: "posts",
		decls: []schema.Declaration{
			{Key: "id"},
			{Key: "title"},
		},
		defaults: []string{"id", "title"},
	})

	return c
}
