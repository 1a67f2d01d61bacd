// Package query interprets client filter, order and limit parameters into
// constraints on a store query. The filter grammar is a nested JSON object of
// column conditions, $-prefixed operators and relation assertions; malformed
// pieces are dropped clause by clause rather than failing the request.
package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/preload"
	"github.com/sinemacula/go-api-toolkit/resource"
	"github.com/sinemacula/go-api-toolkit/schema"
)

// Filter tree operators.
const (
	opAnd      = "$and"
	opOr       = "$or"
	opHas      = "$has"
	opHasNot   = "$hasnt"
	opEq       = "$eq"
	opNeq      = "$neq"
	opGt       = "$gt"
	opLt       = "$lt"
	opGe       = "$ge"
	opLe       = "$le"
	opLike     = "$like"
	opIn       = "$in"
	opBetween  = "$between"
	opNull     = "$null"
	opNotNull  = "$notNull"
	opContains = "$contains"
)

// OrderRandomToken is the sentinel order column requesting store-native
// random ordering.
const OrderRandomToken = "random"

// columnCache holds the searchable column set per compiler and resource
// type. Columns change only with the schema, so one computation per type per
// compiler is enough.
var columnCache sync.Map // columnCacheKey -> map[string]bool

type columnCacheKey struct {
	compiler     *schema.Compiler
	resourceType string
}

// ClearColumnCache drops all cached searchable column sets, forcing
// recomputation on next use. Intended for tests that re-register models with
// different columns, mirroring schema.Compiler.ClearCache.
func ClearColumnCache() {
	columnCache.Range(func(key, _ any) bool {
		columnCache.Delete(key)
		return true
	})
}

// Interpreter applies a filter tree, order list and limit to a query, then
// merges the eager-load plan for the in-scope fields. Interpreters are
// stateless between requests; build one per request.
type Interpreter struct {
	compiler     *schema.Compiler
	resourceType string
	ctx          apitoolkit.RequestContext
	exclusions   map[string]bool
	fields       resource.FieldResolver
	fixed        []string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithExcludedColumns removes columns from the searchable set. Entries are
// either bare column names or "type.column" pairs scoped to one resource
// type.
func WithExcludedColumns(columns ...string) Option {
	return func(i *Interpreter) {
		for _, column := range columns {
			i.exclusions[column] = true
		}
	}
}

// WithFixedFields appends keys that are always in projection scope, so their
// relations and counts join the eager-load plan.
func WithFixedFields(fields []string) Option {
	return func(i *Interpreter) { i.fixed = append(i.fixed, fields...) }
}

// WithExcludedFields removes keys from the computed field selection before
// planning eager loads.
func WithExcludedFields(fields []string) Option {
	return func(i *Interpreter) { i.fields.Excluded = fields }
}

// NewInterpreter creates an interpreter bound to a resource type. ctx may be
// nil when no client field selection is available.
func NewInterpreter(c *schema.Compiler, resourceType string, ctx apitoolkit.RequestContext, opts ...Option) *Interpreter {
	i := &Interpreter{
		compiler:     c,
		resourceType: resourceType,
		ctx:          ctx,
		exclusions:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Apply interprets the filter JSON, order list and limit against q, then
// registers the eager-load and count-preload plans for the fields in scope.
// Invalid filter JSON drops the whole tree; order and limit still apply.
func (i *Interpreter) Apply(q apitoolkit.Query, filters, order string, limit *int) error {
	if filters != "" {
		var tree map[string]interface{}
		if err := json.Unmarshal([]byte(filters), &tree); err == nil {
			i.applyExpression(q, tree, i.resourceType, false)
		}
	}

	i.applyOrder(q, order)

	if limit != nil && *limit >= 0 {
		q.Limit(*limit)
	}

	return i.applyEagerLoads(q)
}

// applyExpression walks one level of the filter tree. Keys iterate in sorted
// order so emitted clauses are deterministic. or selects the connective used
// to attach each clause to its siblings.
func (i *Interpreter) applyExpression(q apitoolkit.Query, expr map[string]interface{}, typeHint string, or bool) {
	for _, key := range sortedKeys(expr) {
		value := expr[key]

		switch key {
		case opAnd, opOr:
			nested, ok := value.(map[string]interface{})
			if !ok {
				continue
			}
			q.WhereGroup(or, func(sub apitoolkit.Query) {
				i.applyExpression(sub, nested, typeHint, key == opOr)
			})

		case opHas, opHasNot:
			i.applyHas(q, value, key == opHasNot)

		default:
			if i.admitted(q, typeHint, key) {
				i.applyCondition(q, key, value, or)
				continue
			}
			// A non-column key naming a relation is an implicit $has
			// scoped by its nested conditions.
			if q.HasRelation(key) {
				i.applyHas(q, map[string]interface{}{key: value}, false)
			}
		}
	}
}

// applyCondition emits the clauses for one admitted column. A bare value is
// shorthand for $eq; an operator map emits one clause per recognized
// operator.
func (i *Interpreter) applyCondition(q apitoolkit.Query, column string, value interface{}, or bool) {
	ops, isMap := value.(map[string]interface{})
	if !isMap {
		where(q, or, column, apitoolkit.OpEqual, value)
		return
	}

	for _, op := range sortedKeys(ops) {
		operand := ops[op]

		switch op {
		case opEq:
			where(q, or, column, apitoolkit.OpEqual, operand)
		case opNeq:
			where(q, or, column, apitoolkit.OpNotEqual, operand)
		case opGt:
			where(q, or, column, apitoolkit.OpGreaterThan, operand)
		case opGe:
			where(q, or, column, apitoolkit.OpGreaterThanOrEqual, operand)
		case opLt:
			where(q, or, column, apitoolkit.OpLessThan, operand)
		case opLe:
			where(q, or, column, apitoolkit.OpLessThanOrEqual, operand)
		case opLike:
			where(q, or, column, apitoolkit.OpLike, "%"+fmt.Sprint(operand)+"%")
		case opIn:
			if list, ok := operand.([]interface{}); ok {
				where(q, or, column, apitoolkit.OpIn, list)
			}
		case opBetween:
			if bounds, ok := operand.([]interface{}); ok && len(bounds) == 2 {
				where(q, or, column, apitoolkit.OpBetween, bounds)
			}
		case opNull:
			if flag(operand) {
				where(q, or, column, apitoolkit.OpIsNull, nil)
			} else {
				where(q, or, column, apitoolkit.OpIsNotNull, nil)
			}
		case opNotNull:
			if flag(operand) {
				where(q, or, column, apitoolkit.OpIsNotNull, nil)
			} else {
				where(q, or, column, apitoolkit.OpIsNull, nil)
			}
		case opContains:
			for idx, member := range containsValues(operand) {
				// Multiple containment checks AND together; only the
				// first carries the sibling connective.
				where(q, or && idx == 0, column, apitoolkit.OpContains, member)
			}
		}
	}
}

// applyHas emits existence clauses for one $has/$hasnt payload. Accepted
// forms: a relation name, a list of names and scoped maps, or a map of
// relation name to nested filter expression.
func (i *Interpreter) applyHas(q apitoolkit.Query, value interface{}, not bool) {
	switch payload := value.(type) {
	case string:
		q.WhereHas(payload, not, nil)
	case []interface{}:
		for _, entry := range payload {
			i.applyHas(q, entry, not)
		}
	case map[string]interface{}:
		for _, relation := range sortedKeys(payload) {
			nested, ok := payload[relation].(map[string]interface{})
			if !ok {
				q.WhereHas(relation, not, nil)
				continue
			}
			q.WhereHas(relation, not, func(sub apitoolkit.Query) {
				i.applyExpression(sub, nested, "", false)
			})
		}
	}
}

// applyOrder parses a comma-separated "column:direction" list. Bad tokens
// are skipped individually; valid clauses before and after still apply.
func (i *Interpreter) applyOrder(q apitoolkit.Query, order string) {
	if order == "" {
		return
	}

	for _, token := range strings.Split(order, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		column, direction := token, "asc"
		if idx := strings.IndexByte(token, ':'); idx >= 0 {
			column, direction = token[:idx], strings.ToLower(token[idx+1:])
		}

		if column == OrderRandomToken {
			q.OrderRandom()
			continue
		}
		if direction != "asc" && direction != "desc" {
			continue
		}
		if !i.admitted(q, i.resourceType, column) {
			continue
		}
		q.OrderBy(column, direction)
	}
}

// applyEagerLoads merges the preload plan and count map for the fields in
// scope into the query.
func (i *Interpreter) applyEagerLoads(q apitoolkit.Query) error {
	cs, err := i.compiler.Compile(i.resourceType)
	if err != nil {
		return fmt.Errorf("apply criteria: %w", err)
	}

	fields := i.fields.Fields(cs, i.ctx, i.fixed)

	planner := preload.NewPlanner(i.compiler, i.ctx)
	plan, err := planner.BuildEagerLoadMap(i.resourceType, fields)
	if err != nil {
		return fmt.Errorf("apply criteria: %w", err)
	}
	for _, path := range sortedPlanPaths(plan) {
		q.With(path, plan[path])
	}

	var aliases []string
	if i.ctx != nil {
		aliases = i.ctx.Counts(i.resourceType)
	}
	counts, err := planner.BuildCountMap(i.resourceType, aliases)
	if err != nil {
		return fmt.Errorf("apply criteria: %w", err)
	}
	relations := make([]string, 0, len(counts))
	for relation := range counts {
		relations = append(relations, relation)
	}
	sort.Strings(relations)
	for _, relation := range relations {
		q.WithCount(relation, counts[relation])
	}
	return nil
}

// admitted reports whether a column may appear in filter or order clauses:
// it must exist on the query's column set and not be excluded, either
// globally or as "type.column". The column set is cached per compiler and
// resource type; an empty typeHint (relation subqueries) skips the cache.
func (i *Interpreter) admitted(q apitoolkit.Query, typeHint, column string) bool {
	if strings.HasPrefix(column, "$") {
		return false
	}

	var columns map[string]bool
	if typeHint != "" {
		key := columnCacheKey{compiler: i.compiler, resourceType: typeHint}
		if cached, ok := columnCache.Load(key); ok {
			columns = cached.(map[string]bool)
		} else {
			columns = columnSet(q)
			columnCache.Store(key, columns)
		}
	} else {
		columns = columnSet(q)
	}

	if !columns[column] {
		return false
	}
	if i.exclusions[column] {
		return false
	}
	if typeHint != "" && i.exclusions[typeHint+"."+column] {
		return false
	}
	return true
}

func columnSet(q apitoolkit.Query) map[string]bool {
	columns := q.Columns()
	set := make(map[string]bool, len(columns))
	for _, column := range columns {
		set[column] = true
	}
	return set
}

// containsValues normalizes a $contains payload: a list stays element-wise,
// a comma-separated string splits into trimmed members, a scalar is a single
// member. Anything empty or nil is dropped.
func containsValues(operand interface{}) []interface{} {
	switch payload := operand.(type) {
	case nil:
		return nil
	case []interface{}:
		return payload
	case string:
		var members []interface{}
		for _, member := range strings.Split(payload, ",") {
			if member = strings.TrimSpace(member); member != "" {
				members = append(members, member)
			}
		}
		return members
	default:
		return []interface{}{operand}
	}
}

func flag(operand interface{}) bool {
	b, ok := operand.(bool)
	if !ok {
		// Naming the operator at all implies the positive form.
		return true
	}
	return b
}

func where(q apitoolkit.Query, or bool, column string, op apitoolkit.Op, value interface{}) {
	if or {
		q.OrWhere(column, op, value)
	} else {
		q.Where(column, op, value)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedPlanPaths(plan preload.Plan) []string {
	paths := make([]string, 0, len(plan))
	for path := range plan {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
