package main

import (
	"strings"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
	"github.com/sinemacula/go-api-toolkit/store"
	"github.com/sinemacula/go-api-toolkit/web"
)

// apiResource is a declaration-backed schema resource.
type apiResource struct {
	typ      string
	decls    []schema.Declaration
	defaults []string
}

func (r *apiResource) Type() string                       { return r.typ }
func (r *apiResource) Declarations() []schema.Declaration { return r.decls }
func (r *apiResource) DefaultFields() []string            { return r.defaults }

// registerExampleResources wires the bundled blog-shaped domain: users with
// posts and an organization, posts with an author. It exists so the server
// demonstrates the full pipeline out of the box.
func registerExampleResources(compiler *schema.Compiler, st *store.Store, srv *web.Server) error {
	lowercase := func(_ apitoolkit.RequestContext, v interface{}) interface{} {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
		return v
	}

	resources := []*apiResource{
		{
			typ: "users",
			decls: []schema.Declaration{
				{Key: "id"},
				{Key: "name"},
				{Key: "email", Spec: schema.FieldSpec{
					Transformers: []apitoolkit.Transformer{lowercase},
				}},
				{Key: "status"},
				{Key: "created_at"},
				{Key: "updated_at"},
				{Key: "organization", Spec: schema.FieldSpec{
					Relation: "organization",
					Resource: "organizations",
				}},
				{Key: "posts", Spec: schema.FieldSpec{
					Relation: "posts",
					Resource: "posts",
				}},
				{Key: "count:posts", Spec: schema.FieldSpec{
					Metric:  schema.MetricCount,
					Default: true,
				}},
			},
			defaults: []string{"id", "name", "email", "status"},
		},
		{
			typ: "posts",
			decls: []schema.Declaration{
				{Key: "id"},
				{Key: "title"},
				{Key: "status"},
				{Key: "created_at"},
				{Key: "author", Spec: schema.FieldSpec{
					Relation: "author",
					Resource: "users",
				}},
			},
			defaults: []string{"id", "title", "status"},
		},
		{
			typ: "organizations",
			decls: []schema.Declaration{
				{Key: "id"},
				{Key: "name"},
			},
			defaults: []string{"id", "name"},
		},
	}
	for _, r := range resources {
		if err := compiler.Register(r); err != nil {
			return err
		}
	}

	models := []*store.Model{
		{
			Name:    "users",
			Table:   "users",
			Columns: []string{"id", "name", "email", "status", "organization_id", "created_at", "updated_at"},
			Relations: map[string]store.Relation{
				"posts":        {Kind: store.HasMany, Model: "posts", ForeignKey: "user_id"},
				"organization": {Kind: store.BelongsTo, Model: "organizations", ForeignKey: "organization_id"},
			},
		},
		{
			Name:    "posts",
			Table:   "posts",
			Columns: []string{"id", "user_id", "title", "status", "created_at"},
			Relations: map[string]store.Relation{
				"author": {Kind: store.BelongsTo, Model: "users", ForeignKey: "user_id"},
			},
		},
		{
			Name:    "organizations",
			Table:   "organizations",
			Columns: []string{"id", "name"},
		},
	}
	for _, m := range models {
		if err := st.RegisterModel(m); err != nil {
			return err
		}
	}

	srv.Mount("users", "users")
	srv.Mount("posts", "posts")
	srv.Mount("organizations", "organizations")
	return nil
}
