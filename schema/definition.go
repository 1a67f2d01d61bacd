// Package schema provides the compiled field/count definition model and the
// schema compiler that builds it from resource declarations.
package schema

import (
	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// Metric marks a declaration as a relation metric rather than an ordinary
// output field.
type Metric int

const (
	// MetricNone is an ordinary field declaration.
	MetricNone Metric = iota
	// MetricCount declares a relation count surfaced under the synthetic
	// counts field.
	MetricCount
)

// CountPrefix is the reserved declaration-key prefix for count metrics.
// A declaration keyed "count:posts" with no explicit alias presents as
// "posts" in the counts payload.
const CountPrefix = "count:"

// FieldKind is the resolution strategy tag for a compiled field. Exactly one
// strategy applies per field, chosen at compile time in precedence order:
// compute, relation, accessor, then plain attribute.
type FieldKind int

const (
	// KindAttribute reads a same-named attribute off the record.
	KindAttribute FieldKind = iota
	// KindAccessor extracts the value via a path or accessor function.
	KindAccessor
	// KindCompute invokes a compute function.
	KindCompute
	// KindRelation reads a preloaded relation off the record.
	KindRelation
)

// String returns the string representation of the field kind.
func (k FieldKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindAccessor:
		return "accessor"
	case KindCompute:
		return "compute"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// FieldSpec is the raw, declaration-time shape of a field or count. Resource
// types supply these through Declarations; the compiler turns them into
// immutable FieldDefinition/CountDefinition values.
type FieldSpec struct {
	// Metric marks this declaration as a count metric.
	Metric Metric

	// As overrides the presentation key for count metrics.
	As string

	// AccessorPath is a dot-joined attribute path into the record, e.g.
	// "profile.display_name".
	AccessorPath string

	// AccessorFunc extracts the value directly. Takes precedence over
	// AccessorPath when both are set.
	AccessorFunc apitoolkit.Accessor

	// Compute produces the value without reading the record's attributes.
	Compute apitoolkit.Compute

	// Relation names a relation on the record. For count metrics this is
	// the relation being counted; defaults to the presentation key.
	Relation string

	// Resource names the resource type to wrap a loaded relation's value
	// in, enabling recursive projection.
	Resource string

	// Fields is an explicit field list used when recursing into Resource,
	// overriding the client's request and the child's defaults.
	Fields []string

	// Constraint scopes the relation's query during preload.
	Constraint apitoolkit.Constraint

	// Extras are additional relation paths preloaded alongside this
	// field. They are prefetched but never resolved as output.
	Extras []string

	// Default includes a count metric when the client requests counts
	// without naming specific aliases.
	Default bool

	// Guards are visibility predicates, evaluated in order.
	Guards []apitoolkit.Guard

	// Transformers mutate the resolved value, in order.
	Transformers []apitoolkit.Transformer
}

// Declaration pairs an output key with its raw spec. Declarations form an
// ordered list; a later declaration for the same key overwrites an earlier
// one, enabling composition of shared field sets.
type Declaration struct {
	Key  string
	Spec FieldSpec
}

// FieldDefinition is the compiled, immutable definition of one output field.
type FieldDefinition struct {
	Key           string
	Kind          FieldKind
	AccessorPath  string
	AccessorFunc  apitoolkit.Accessor
	Compute       apitoolkit.Compute
	Relation      string
	ChildResource string
	ChildFields   []string
	Constraint    apitoolkit.Constraint
	Extras        []string
	Guards        []apitoolkit.Guard
	Transformers  []apitoolkit.Transformer
}

// CountDefinition is the compiled, immutable definition of one count metric.
type CountDefinition struct {
	// Key is the raw declaration key.
	Key string

	// PresentKey is the output key under the synthetic counts field.
	PresentKey string

	// Relation is the relation being counted.
	Relation string

	// Constraint optionally scopes the counted rows.
	Constraint apitoolkit.Constraint

	// Default includes this metric when no specific aliases are requested.
	Default bool

	// Guards filter the metric out of the payload when failing.
	Guards []apitoolkit.Guard
}

// CompiledSchema is the per-resource-type compilation result: every field and
// count definition, in declaration order. Instances are immutable after
// compilation and safe for concurrent reads.
type CompiledSchema struct {
	// ResourceType is the type identifier the schema was compiled for.
	ResourceType string

	// FieldOrder lists field keys in final declaration order.
	FieldOrder []string

	// Fields maps field key to its definition.
	Fields map[string]*FieldDefinition

	// CountOrder lists count present keys in final declaration order.
	CountOrder []string

	// Counts maps present key to its count definition.
	Counts map[string]*CountDefinition

	// DefaultFields is the resource's declared default field selection.
	DefaultFields []string
}

// HasField reports whether the schema defines a field with the given key.
func (s *CompiledSchema) HasField(key string) bool {
	_, ok := s.Fields[key]
	return ok
}

// Field returns the definition for a field key.
func (s *CompiledSchema) Field(key string) (*FieldDefinition, bool) {
	def, ok := s.Fields[key]
	return def, ok
}

// Count returns the definition for a count present key.
func (s *CompiledSchema) Count(presentKey string) (*CountDefinition, bool) {
	def, ok := s.Counts[presentKey]
	return def, ok
}

// Resource is the declaration source for one resource type. Implementations
// are owned by the application; the compiler consumes them once per type and
// caches the result.
type Resource interface {
	// Type returns the resource type identifier, e.g. "users". An empty
	// type is a configuration error surfaced at compile time.
	Type() string

	// Declarations returns the ordered raw field/count declarations.
	Declarations() []Declaration

	// DefaultFields returns the field keys projected when the client does
	// not constrain the selection.
	DefaultFields() []string
}
