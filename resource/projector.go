package resource

import (
	"sort"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/schema"
)

// TypeMarkerKey is the synthetic output key identifying the resource type.
const TypeMarkerKey = "_type"

// PrimaryKeyField is the field treated as the primary identifier for output
// ordering.
const PrimaryKeyField = "id"

// Output ordering tiers. Within a tier, fields keep their selection order.
const (
	priorityTypeMarker = 0
	priorityPrimaryKey = 1
	priorityDefault    = 2
	priorityTimestamp  = 3
)

var timestampFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

// Projector turns records of one resource type into ordered output maps. A
// projector is cheap to construct and bound to a single request context;
// build one per request.
type Projector struct {
	compiler     *schema.Compiler
	resourceType string
	ctx          apitoolkit.RequestContext
	fields       FieldResolver
	fixed        []string
}

// Option customizes a projector.
type Option func(*Projector)

// WithExplicitFields overrides field selection entirely, bypassing the
// client's request and the schema defaults.
func WithExplicitFields(fields []string) Option {
	return func(p *Projector) { p.fields.Explicit = fields }
}

// WithExcludedFields removes keys from whatever selection is computed.
func WithExcludedFields(fields []string) Option {
	return func(p *Projector) { p.fields.Excluded = fields }
}

// WithAllFields forces every declared field into scope.
func WithAllFields() Option {
	return func(p *Projector) { p.fields.All = true }
}

// WithFixedFields appends keys that are always projected, such as globally
// configured audit fields.
func WithFixedFields(fields []string) Option {
	return func(p *Projector) { p.fixed = append(p.fixed, fields...) }
}

// NewProjector creates a projector for a resource type bound to a request
// context. ctx may be nil, in which case the schema defaults drive selection.
func NewProjector(c *schema.Compiler, resourceType string, ctx apitoolkit.RequestContext, opts ...Option) *Projector {
	p := &Projector{
		compiler:     c,
		resourceType: resourceType,
		ctx:          ctx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Selection returns the field keys currently in scope for this projector.
func (p *Projector) Selection() ([]string, error) {
	cs, err := p.compiler.Compile(p.resourceType)
	if err != nil {
		return nil, err
	}
	return p.fields.Fields(cs, p.ctx, p.fixed), nil
}

// Resolve projects one record into an ordered output map. Fields resolving
// as missing are dropped entirely; explicit nulls are kept. The output order
// is stable regardless of the order fields were requested in: type marker,
// then the primary identifier, then everything else in selection order, with
// recognized timestamp fields last.
func (p *Projector) Resolve(rec apitoolkit.Record) (*OrderedMap, error) {
	cs, err := p.compiler.Compile(p.resourceType)
	if err != nil {
		return nil, err
	}

	type entry struct {
		key      string
		value    interface{}
		priority int
		pos      int
	}

	entries := []entry{{key: TypeMarkerKey, value: cs.ResourceType, priority: priorityTypeMarker}}

	keys := p.fields.Fields(cs, p.ctx, p.fixed)
	for i, key := range keys {
		if key == CountsField {
			continue
		}
		def, ok := cs.Field(key)
		if !ok {
			continue
		}
		value, present, err := p.ResolveField(def, rec)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		entries = append(entries, entry{key: key, value: value, priority: fieldPriority(key), pos: i + 1})
	}

	if len(cs.CountOrder) > 0 && p.fields.ShouldIncludeCounts(cs, p.ctx) {
		entries = append(entries, entry{
			key:      CountsField,
			value:    p.ResolveCounts(cs, rec),
			priority: priorityDefault,
			pos:      len(keys) + 1,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].pos < entries[j].pos
	})

	out := NewOrderedMap()
	for _, e := range entries {
		out.Set(e.key, e.value)
	}
	return out, nil
}

// ResolveCollection projects a slice of records.
func (p *Projector) ResolveCollection(recs []apitoolkit.Record) ([]*OrderedMap, error) {
	out := make([]*OrderedMap, 0, len(recs))
	for _, rec := range recs {
		projected, err := p.Resolve(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

func fieldPriority(key string) int {
	switch {
	case key == PrimaryKeyField:
		return priorityPrimaryKey
	case timestampFields[key]:
		return priorityTimestamp
	default:
		return priorityDefault
	}
}
