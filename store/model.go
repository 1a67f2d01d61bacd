package store

// RelationKind identifies how two models are joined.
type RelationKind int

const (
	// BelongsTo joins through a foreign key on the owning model.
	BelongsTo RelationKind = iota
	// HasMany joins through a foreign key on the target model, yielding a
	// collection.
	HasMany
	// HasOne joins through a foreign key on the target model, yielding a
	// single row.
	HasOne
)

// String returns the string representation of the relation kind.
func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasMany:
		return "has_many"
	case HasOne:
		return "has_one"
	default:
		return "unknown"
	}
}

// Relation describes one named edge from a model to a target model. For
// BelongsTo the foreign key lives on the owning model's table; for HasMany
// and HasOne it lives on the target's table.
type Relation struct {
	Kind       RelationKind
	Model      string
	ForeignKey string
}

// Model describes a queryable table: its columns, primary key and relations.
// Columns doubles as the searchable-column set for filter admission, so it
// should list real table columns only.
type Model struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []string
	Relations  map[string]Relation
}

func (m *Model) relation(name string) (Relation, bool) {
	rel, ok := m.Relations[name]
	return rel, ok
}
