// Package preload computes the relation paths that must be eager-loaded to
// satisfy a projection without uncontrolled lazy fetches. The planner only
// describes what the store layer should preload; it never queries anything
// itself, which keeps it synchronous and side-effect free.
package preload

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

// Plan maps dot-joined relation paths to an optional scoping constraint. A
// nil constraint is a plain preload; a non-nil constraint must be applied to
// the relation's query when loading.
type Plan map[string]apitoolkit.Constraint

// Planner walks compiled schemas depth-first to build eager-load plans. A
// planner carries the visited set for one request; build one per request and
// discard it.
type Planner struct {
	compiler *schema.Compiler
	ctx      apitoolkit.RequestContext
	visited  map[string]bool
}

// NewPlanner creates a planner bound to a request context. ctx may be nil.
func NewPlanner(c *schema.Compiler, ctx apitoolkit.RequestContext) *Planner {
	return &Planner{
		compiler: c,
		ctx:      ctx,
		visited:  make(map[string]bool),
	}
}

// BuildEagerLoadMap computes the preload plan for a resource type and a
// field selection. Paths reached through relation fields recurse into their
// child resource types; the (resourceType, relation) visited set guarantees
// each pair is walked at most once even when two field keys alias the same
// relation or the relation graph contains cycles.
func (p *Planner) BuildEagerLoadMap(resourceType string, fields []string) (Plan, error) {
	plan := make(Plan)
	if err := p.walk(resourceType, fields, "", plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *Planner) walk(resourceType string, fields []string, prefix string, plan Plan) error {
	cs, err := p.compiler.Compile(resourceType)
	if err != nil {
		return err
	}

	for _, key := range fields {
		def, ok := cs.Field(key)
		if !ok {
			continue
		}

		// Extras are prefetched regardless of whether the field itself
		// is a relation; they never overwrite a scoped entry.
		for _, extra := range def.Extras {
			path := joinPath(prefix, extra)
			if _, exists := plan[path]; !exists {
				plan[path] = nil
			}
		}

		if def.Relation == "" {
			continue
		}

		// The visited set is keyed per owning resource type, not per full
		// path: cyclic relation graphs grow the path every level, so only
		// the (type, relation) pair bounds the walk. Aliased field keys
		// for the same relation collapse to one visit.
		fullPath := joinPath(prefix, def.Relation)
		visitKey := resourceType + "\x00" + def.Relation
		if p.visited[visitKey] {
			continue
		}
		p.visited[visitKey] = true

		plan[fullPath] = def.Constraint

		if def.ChildResource == "" || !p.compiler.Registered(def.ChildResource) {
			continue
		}
		childFields, err := p.childFields(def)
		if err != nil {
			return err
		}
		if err := p.walk(def.ChildResource, childFields, fullPath, plan); err != nil {
			return err
		}
	}

	return nil
}

// childFields picks the field list for recursing into a child resource, in
// priority order: the definition's explicit list, the client's request for
// the child type, the child's declared defaults, then every declared key.
func (p *Planner) childFields(def *schema.FieldDefinition) ([]string, error) {
	if len(def.ChildFields) > 0 {
		return def.ChildFields, nil
	}

	child, err := p.compiler.Compile(def.ChildResource)
	if err != nil {
		return nil, err
	}

	if p.ctx != nil {
		if requested := p.ctx.Fields(def.ChildResource); len(requested) > 0 {
			return requested, nil
		}
	}
	if len(child.DefaultFields) > 0 {
		return child.DefaultFields, nil
	}
	return child.FieldOrder, nil
}

// BuildCountMap computes the relations to count-preload for a resource type:
// every count definition passing the inclusion rule (named aliases win; with
// none named, defaults apply) emits its relation with its optional
// constraint. Count planning is non-recursive.
func (p *Planner) BuildCountMap(resourceType string, aliases []string) (map[string]apitoolkit.Constraint, error) {
	cs, err := p.compiler.Compile(resourceType)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]apitoolkit.Constraint)
	for _, presentKey := range cs.CountOrder {
		def := cs.Counts[presentKey]
		if !includeCount(def, aliases) {
			continue
		}
		counts[def.Relation] = def.Constraint
	}
	return counts, nil
}

func includeCount(def *schema.CountDefinition, aliases []string) bool {
	if len(aliases) > 0 {
		for _, alias := range aliases {
			if alias == def.PresentKey {
				return true
			}
		}
		return false
	}
	return def.Default
}

func joinPath(prefix, relation string) string {
	if prefix == "" {
		return relation
	}
	return prefix + "." + relation
}
