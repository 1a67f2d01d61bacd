package apitoolkit

// Record is the abstraction over a stored row with (possibly) preloaded
// relations. Implementations must never trigger a fetch from Relation; the
// second return value reports whether the relation was already loaded.
type Record interface {
	// Attribute reads a plain attribute by name.
	Attribute(name string) (interface{}, bool)

	// Relation reads a preloaded relation by name. The boolean reports
	// whether the relation was loaded at all; a loaded relation may still
	// carry a nil value.
	Relation(name string) (interface{}, bool)
}

// RequestContext exposes the client's requested field and count lists,
// typically parsed from query parameters like fields[users]=id,name and
// counts[users]=posts.
type RequestContext interface {
	// Fields returns the requested field list for a resource type, or nil
	// if the client did not constrain fields for that type.
	Fields(resourceType string) []string

	// Counts returns the requested count aliases for a resource type, or
	// nil if the client did not request specific counts.
	Counts(resourceType string) []string
}

// Guard is a visibility predicate for a field or count. Returning false
// suppresses the entry. A nil Guard in a guard list always passes, so guards
// double as optional, best-effort checks.
type Guard func(rec Record, ctx RequestContext) bool

// Transformer mutates a resolved value before output. Transformers run in
// declaration order; each receives the previous transformer's output.
type Transformer func(ctx RequestContext, value interface{}) interface{}

// Accessor extracts a value from a record, overriding the default
// attribute lookup.
type Accessor func(rec Record) interface{}

// Compute produces a field value that is not stored on the record.
type Compute func(rec Record, ctx RequestContext) interface{}

// Constraint scopes a relation's query during preload or count-preload.
type Constraint func(q Query)

// Op represents a comparison operator understood by the query abstraction.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpLike
	OpIn
	OpBetween
	OpIsNull
	OpIsNotNull
	OpContains
)

// String returns the string representation of the operator.
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpLike:
		return "LIKE"
	case OpIn:
		return "IN"
	case OpBetween:
		return "BETWEEN"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpContains:
		return "@>"
	default:
		return "UNKNOWN"
	}
}

// Query is the queryable store abstraction the criteria interpreter and the
// eager-load planner emit into. Implementations translate these calls into
// whatever the underlying store understands; the store package ships a
// SQL-backed implementation.
//
// All methods return the receiver to allow fluent chaining.
type Query interface {
	// Where adds a basic condition combined with AND.
	Where(column string, op Op, value interface{}) Query

	// OrWhere adds a basic condition combined with OR.
	OrWhere(column string, op Op, value interface{}) Query

	// WhereIn adds a membership condition over a list of values.
	WhereIn(column string, values []interface{}) Query

	// WhereBetween adds a range condition with inclusive bounds.
	WhereBetween(column string, low, high interface{}) Query

	// WhereNull adds an IS NULL condition, or IS NOT NULL when not is true.
	WhereNull(column string, not bool) Query

	// WhereContains adds a JSON/array containment condition.
	WhereContains(column string, value interface{}) Query

	// WhereGroup adds a parenthesized group of conditions built by fn.
	// The group attaches with OR when or is true, AND otherwise.
	WhereGroup(or bool, fn func(Query)) Query

	// WhereHas asserts existence of related rows for the named relation,
	// or non-existence when not is true. A non-nil fn scopes the related
	// rows with nested conditions.
	WhereHas(relation string, not bool, fn func(Query)) Query

	// OrderBy adds an order clause. Direction is "asc" or "desc".
	OrderBy(column, direction string) Query

	// OrderRandom requests store-native random ordering.
	OrderRandom() Query

	// Limit bounds the number of rows returned.
	Limit(n int) Query

	// With registers an eager-load path. A non-nil constraint makes the
	// preload scoped.
	With(path string, constraint Constraint) Query

	// WithCount registers a count-preload for a relation, surfaced on
	// records as a <relation>_count attribute.
	WithCount(relation string, constraint Constraint) Query

	// Columns reports the real, introspectable columns of the target
	// store. Used for column admission; an empty result admits nothing.
	Columns() []string

	// HasRelation reports whether name refers to a known relation on the
	// bound model. Unknown names are simply not relations; the probe
	// never fails.
	HasRelation(name string) bool
}
