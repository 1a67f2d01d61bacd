package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// Configuration errors. These indicate a deployment or programming defect and
// are surfaced immediately rather than retried.
var (
	// ErrNoType is returned when a resource reports an empty type
	// identifier.
	ErrNoType = errors.New("resource has no type identifier")

	// ErrNotRegistered is returned when compiling an unknown resource type.
	ErrNotRegistered = errors.New("resource type not registered")
)

// Compiler turns resource declarations into compiled schemas, caching the
// result per resource type. Compilation is idempotent: compiling the same
// type twice yields structurally equal schemas, so concurrent first-access
// races may compile redundantly but never inconsistently.
type Compiler struct {
	mu        sync.RWMutex
	resources map[string]Resource
	cache     map[string]*CompiledSchema
}

// NewCompiler creates an empty compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		resources: make(map[string]Resource),
		cache:     make(map[string]*CompiledSchema),
	}
}

// Register registers a resource's declarations under its type identifier.
// Registering the same type again replaces the previous declarations and
// invalidates any cached schema for it.
func (c *Compiler) Register(r Resource) error {
	name := r.Type()
	if name == "" {
		return ErrNoType
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.resources[name] = r
	delete(c.cache, name)
	return nil
}

// Compile returns the compiled schema for a resource type, building it on
// first access. The returned schema is immutable; callers must not mutate it.
func (c *Compiler) Compile(resourceType string) (*CompiledSchema, error) {
	c.mu.RLock()
	if cs, ok := c.cache[resourceType]; ok {
		c.mu.RUnlock()
		return cs, nil
	}
	res, ok := c.resources[resourceType]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, resourceType)
	}
	if res.Type() == "" {
		return nil, ErrNoType
	}

	cs := compile(res)

	c.mu.Lock()
	// A concurrent Compile may have won the race; keep the first entry so
	// repeated calls return the identical instance.
	if existing, ok := c.cache[resourceType]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.cache[resourceType] = cs
	c.mu.Unlock()

	return cs, nil
}

// Registered reports whether a resource type has declarations registered.
func (c *Compiler) Registered(resourceType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.resources[resourceType]
	return ok
}

// ClearCache drops all compiled schemas, forcing recompilation on next
// access. Registered resources are kept. Intended for tests.
func (c *Compiler) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*CompiledSchema)
}

// compile builds a CompiledSchema from one resource's declarations. Later
// declarations for the same key overwrite earlier ones (last-write-wins),
// taking the later position in the output order.
func compile(res Resource) *CompiledSchema {
	cs := &CompiledSchema{
		ResourceType:  res.Type(),
		Fields:        make(map[string]*FieldDefinition),
		Counts:        make(map[string]*CountDefinition),
		DefaultFields: append([]string(nil), res.DefaultFields()...),
	}

	for _, decl := range res.Declarations() {
		if decl.Spec.Metric == MetricCount {
			def := compileCount(decl)
			if _, seen := cs.Counts[def.PresentKey]; seen {
				cs.CountOrder = removeKey(cs.CountOrder, def.PresentKey)
			}
			cs.Counts[def.PresentKey] = def
			cs.CountOrder = append(cs.CountOrder, def.PresentKey)
			continue
		}

		def := compileField(decl)
		if _, seen := cs.Fields[def.Key]; seen {
			cs.FieldOrder = removeKey(cs.FieldOrder, def.Key)
		}
		cs.Fields[def.Key] = def
		cs.FieldOrder = append(cs.FieldOrder, def.Key)
	}

	return cs
}

// compileField builds a FieldDefinition, tagging the resolution strategy in
// precedence order: compute, relation, accessor, plain attribute.
func compileField(decl Declaration) *FieldDefinition {
	spec := decl.Spec
	def := &FieldDefinition{
		Key:           decl.Key,
		AccessorPath:  spec.AccessorPath,
		AccessorFunc:  spec.AccessorFunc,
		Compute:       spec.Compute,
		Relation:      spec.Relation,
		ChildResource: spec.Resource,
		ChildFields:   append([]string(nil), spec.Fields...),
		Constraint:    spec.Constraint,
		Extras:        append([]string(nil), spec.Extras...),
		Guards:        append([]apitoolkit.Guard(nil), spec.Guards...),
		Transformers:  append([]apitoolkit.Transformer(nil), spec.Transformers...),
	}

	switch {
	case spec.Compute != nil:
		def.Kind = KindCompute
	case spec.Relation != "":
		def.Kind = KindRelation
	case spec.AccessorFunc != nil || spec.AccessorPath != "":
		def.Kind = KindAccessor
	default:
		def.Kind = KindAttribute
	}

	return def
}

// compileCount builds a CountDefinition. The presentation key comes from the
// explicit alias, else the declaration key with the reserved count prefix
// stripped, else the raw key. The counted relation defaults to the
// presentation key.
func compileCount(decl Declaration) *CountDefinition {
	spec := decl.Spec

	presentKey := spec.As
	if presentKey == "" {
		presentKey = strings.TrimPrefix(decl.Key, CountPrefix)
	}

	relation := spec.Relation
	if relation == "" {
		relation = presentKey
	}

	return &CountDefinition{
		Key:        decl.Key,
		PresentKey: presentKey,
		Relation:   relation,
		Constraint: spec.Constraint,
		Default:    spec.Default,
		Guards:     append([]apitoolkit.Guard(nil), spec.Guards...),
	}
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
