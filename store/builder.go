package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

type condKind int

const (
	condBasic condKind = iota
	condGroup
	condExists
)

// condition is one node of the WHERE tree: a basic comparison, a
// parenthesized group, or a correlated EXISTS against a relation.
type condition struct {
	kind condKind
	or   bool

	column string
	op     apitoolkit.Op
	value  interface{}

	group []*condition

	not      bool
	relation Relation
	owner    *Model
	target   *Model
	sub      *Builder
}

// Builder accumulates conditions, ordering, limits and preload registrations
// for one model, then renders parameterized PostgreSQL. It implements the
// query abstraction the criteria interpreter and eager-load planner emit
// into.
type Builder struct {
	store *Store
	model *Model

	conditions []*condition
	orders     []string
	limit      *int

	withPaths       []string
	withConstraints map[string]apitoolkit.Constraint

	countOrder       []string
	countConstraints map[string]apitoolkit.Constraint
}

func newBuilder(s *Store, m *Model) *Builder {
	return &Builder{
		store:            s,
		model:            m,
		withConstraints:  make(map[string]apitoolkit.Constraint),
		countConstraints: make(map[string]apitoolkit.Constraint),
	}
}

// Model returns the model the builder is bound to.
func (b *Builder) Model() *Model { return b.model }

func (b *Builder) where(or bool, column string, op apitoolkit.Op, value interface{}) apitoolkit.Query {
	b.conditions = append(b.conditions, &condition{
		kind:   condBasic,
		or:     or,
		column: column,
		op:     op,
		value:  value,
	})
	return b
}

// Where adds a basic condition combined with AND.
func (b *Builder) Where(column string, op apitoolkit.Op, value interface{}) apitoolkit.Query {
	return b.where(false, column, op, value)
}

// OrWhere adds a basic condition combined with OR.
func (b *Builder) OrWhere(column string, op apitoolkit.Op, value interface{}) apitoolkit.Query {
	return b.where(true, column, op, value)
}

// WhereIn adds a membership condition.
func (b *Builder) WhereIn(column string, values []interface{}) apitoolkit.Query {
	return b.Where(column, apitoolkit.OpIn, values)
}

// WhereBetween adds an inclusive range condition.
func (b *Builder) WhereBetween(column string, low, high interface{}) apitoolkit.Query {
	return b.Where(column, apitoolkit.OpBetween, []interface{}{low, high})
}

// WhereNull adds an IS NULL condition, or IS NOT NULL when not is true.
func (b *Builder) WhereNull(column string, not bool) apitoolkit.Query {
	if not {
		return b.Where(column, apitoolkit.OpIsNotNull, nil)
	}
	return b.Where(column, apitoolkit.OpIsNull, nil)
}

// WhereContains adds a containment condition rendered with the @> operator.
func (b *Builder) WhereContains(column string, value interface{}) apitoolkit.Query {
	return b.Where(column, apitoolkit.OpContains, value)
}

// WhereGroup adds a parenthesized group built by fn.
func (b *Builder) WhereGroup(or bool, fn func(apitoolkit.Query)) apitoolkit.Query {
	sub := newBuilder(b.store, b.model)
	fn(sub)
	if len(sub.conditions) == 0 {
		return b
	}
	b.conditions = append(b.conditions, &condition{
		kind:  condGroup,
		or:    or,
		group: sub.conditions,
	})
	return b
}

// WhereHas adds a correlated EXISTS (or NOT EXISTS) against a named
// relation. Unknown relations and unregistered targets are dropped silently;
// the caller already treats "not a relation" as a non-clause.
func (b *Builder) WhereHas(relation string, not bool, fn func(apitoolkit.Query)) apitoolkit.Query {
	rel, ok := b.model.relation(relation)
	if !ok {
		return b
	}
	target, ok := b.store.Model(rel.Model)
	if !ok {
		return b
	}

	sub := newBuilder(b.store, target)
	if fn != nil {
		fn(sub)
	}
	b.conditions = append(b.conditions, &condition{
		kind:     condExists,
		not:      not,
		relation: rel,
		owner:    b.model,
		target:   target,
		sub:      sub,
	})
	return b
}

// OrderBy adds an order clause. Invalid directions fall back to ASC.
func (b *Builder) OrderBy(column, direction string) apitoolkit.Query {
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	b.orders = append(b.orders, qualify(b.model.Table, column)+" "+dir)
	return b
}

// OrderRandom requests RANDOM() ordering.
func (b *Builder) OrderRandom() apitoolkit.Query {
	b.orders = append(b.orders, "RANDOM()")
	return b
}

// Limit bounds the number of rows returned.
func (b *Builder) Limit(n int) apitoolkit.Query {
	b.limit = &n
	return b
}

// With registers an eager-load path for execution time. Registering the same
// path again keeps its position; a non-nil constraint replaces a nil one.
func (b *Builder) With(path string, constraint apitoolkit.Constraint) apitoolkit.Query {
	if _, exists := b.withConstraints[path]; !exists {
		b.withPaths = append(b.withPaths, path)
		b.withConstraints[path] = constraint
	} else if constraint != nil {
		b.withConstraints[path] = constraint
	}
	return b
}

// WithCount registers a count-preload, surfaced on result records as a
// <relation>_count attribute.
func (b *Builder) WithCount(relation string, constraint apitoolkit.Constraint) apitoolkit.Query {
	if _, exists := b.countConstraints[relation]; !exists {
		b.countOrder = append(b.countOrder, relation)
		b.countConstraints[relation] = constraint
	} else if constraint != nil {
		b.countConstraints[relation] = constraint
	}
	return b
}

// Columns reports the model's real columns.
func (b *Builder) Columns() []string {
	return append([]string(nil), b.model.Columns...)
}

// HasRelation reports whether name is a declared relation on the model.
func (b *Builder) HasRelation(name string) bool {
	_, ok := b.model.relation(name)
	return ok
}

// ToSQL renders the SELECT statement and its parameter bindings. Count
// preloads render as correlated COUNT(*) subselects in the select list, so
// their parameters number before the WHERE clause's.
func (b *Builder) ToSQL() (string, []interface{}, error) {
	var sqlb strings.Builder
	args := make([]interface{}, 0)
	counter := 1

	table := pq.QuoteIdentifier(b.model.Table)
	sqlb.WriteString("SELECT " + table + ".*")

	for _, relation := range b.countOrder {
		sub, err := b.countSelect(relation, &counter, &args)
		if err != nil {
			return "", nil, err
		}
		sqlb.WriteString(", " + sub)
	}

	sqlb.WriteString(" FROM " + table)

	if len(b.conditions) > 0 {
		where, err := renderConditions(b.model.Table, b.conditions, &counter, &args)
		if err != nil {
			return "", nil, err
		}
		if where != "" {
			sqlb.WriteString(" WHERE " + where)
		}
	}

	if len(b.orders) > 0 {
		sqlb.WriteString(" ORDER BY " + strings.Join(b.orders, ", "))
	}

	if b.limit != nil {
		sqlb.WriteString(fmt.Sprintf(" LIMIT $%d", counter))
		args = append(args, *b.limit)
		counter++
	}

	return sqlb.String(), args, nil
}

func (b *Builder) countSelect(relation string, counter *int, args *[]interface{}) (string, error) {
	rel, ok := b.model.relation(relation)
	if !ok {
		return "", fmt.Errorf("store: count relation %s not defined on %s", relation, b.model.Name)
	}
	target, ok := b.store.Model(rel.Model)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, rel.Model)
	}

	sub := newBuilder(b.store, target)
	if constraint := b.countConstraints[relation]; constraint != nil {
		constraint(sub)
	}

	inner := "SELECT COUNT(*) FROM " + pq.QuoteIdentifier(target.Table) +
		" WHERE " + correlation(b.model, rel, target)
	if len(sub.conditions) > 0 {
		scoped, err := renderConditions(target.Table, sub.conditions, counter, args)
		if err != nil {
			return "", err
		}
		inner += " AND (" + scoped + ")"
	}

	return "(" + inner + ") AS " + pq.QuoteIdentifier(relation+"_count"), nil
}

// correlation renders the join predicate tying related rows back to the
// owner's row.
func correlation(owner *Model, rel Relation, target *Model) string {
	if rel.Kind == BelongsTo {
		return qualify(target.Table, target.PrimaryKey) + " = " + qualify(owner.Table, rel.ForeignKey)
	}
	return qualify(target.Table, rel.ForeignKey) + " = " + qualify(owner.Table, owner.PrimaryKey)
}

func renderConditions(table string, conds []*condition, counter *int, args *[]interface{}) (string, error) {
	var sqlb strings.Builder
	wrote := false

	for _, cond := range conds {
		part, err := conditionSQL(table, cond, counter, args)
		if err != nil {
			return "", err
		}
		if part == "" {
			continue
		}
		if wrote {
			if cond.or {
				sqlb.WriteString(" OR ")
			} else {
				sqlb.WriteString(" AND ")
			}
		}
		sqlb.WriteString(part)
		wrote = true
	}

	return sqlb.String(), nil
}

func conditionSQL(table string, cond *condition, counter *int, args *[]interface{}) (string, error) {
	switch cond.kind {
	case condGroup:
		inner, err := renderConditions(table, cond.group, counter, args)
		if err != nil || inner == "" {
			return "", err
		}
		return "(" + inner + ")", nil

	case condExists:
		inner := "SELECT 1 FROM " + pq.QuoteIdentifier(cond.target.Table) +
			" WHERE " + correlation(cond.owner, cond.relation, cond.target)
		if len(cond.sub.conditions) > 0 {
			scoped, err := renderConditions(cond.target.Table, cond.sub.conditions, counter, args)
			if err != nil {
				return "", err
			}
			if scoped != "" {
				inner += " AND (" + scoped + ")"
			}
		}
		prefix := "EXISTS"
		if cond.not {
			prefix = "NOT EXISTS"
		}
		return prefix + " (" + inner + ")", nil

	default:
		return basicSQL(table, cond, counter, args)
	}
}

func basicSQL(table string, cond *condition, counter *int, args *[]interface{}) (string, error) {
	column := qualify(table, cond.column)

	switch cond.op {
	case apitoolkit.OpEqual, apitoolkit.OpNotEqual,
		apitoolkit.OpGreaterThan, apitoolkit.OpGreaterThanOrEqual,
		apitoolkit.OpLessThan, apitoolkit.OpLessThanOrEqual,
		apitoolkit.OpLike, apitoolkit.OpContains:
		*args = append(*args, cond.value)
		sql := fmt.Sprintf("%s %s $%d", column, cond.op, *counter)
		*counter++
		return sql, nil

	case apitoolkit.OpIn:
		values, ok := cond.value.([]interface{})
		if !ok {
			return "", fmt.Errorf("store: IN requires []interface{}, got %T", cond.value)
		}
		if len(values) == 0 {
			// IN over nothing matches nothing.
			return "FALSE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", *counter)
			*counter++
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), nil

	case apitoolkit.OpBetween:
		bounds, ok := cond.value.([]interface{})
		if !ok || len(bounds) != 2 {
			return "", fmt.Errorf("store: BETWEEN requires exactly two bounds, got %v", cond.value)
		}
		*args = append(*args, bounds[0], bounds[1])
		sql := fmt.Sprintf("%s BETWEEN $%d AND $%d", column, *counter, *counter+1)
		*counter += 2
		return sql, nil

	case apitoolkit.OpIsNull, apitoolkit.OpIsNotNull:
		return fmt.Sprintf("%s %s", column, cond.op), nil

	default:
		return "", fmt.Errorf("store: unsupported operator %s", cond.op)
	}
}

func qualify(table, column string) string {
	return pq.QuoteIdentifier(table) + "." + pq.QuoteIdentifier(column)
}
