package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// loader executes eager-load plans in batches: one query per relation per
// level, keyed with ANY($1) over the collected parent keys, then recursing
// into the loaded rows for nested paths.
type loader struct {
	store *Store
}

func newLoader(s *Store) *loader {
	return &loader{store: s}
}

// pathNode groups a level of the plan: the constraint for the relation
// itself plus the remaining sub-paths to recurse into.
type pathNode struct {
	constraint       apitoolkit.Constraint
	childPaths       []string
	childConstraints map[string]apitoolkit.Constraint
}

// Load attaches every planned relation to records. Paths are dot-joined
// relation names; unknown segments are skipped. Only a constraint's
// conditions apply to the batched query.
func (l *loader) Load(ctx context.Context, records []apitoolkit.MapRecord, model *Model, paths []string, constraints map[string]apitoolkit.Constraint) error {
	order, nodes := groupPaths(paths, constraints)

	for _, head := range order {
		node := nodes[head]

		rel, ok := model.relation(head)
		if !ok {
			continue
		}
		target, ok := l.store.Model(rel.Model)
		if !ok {
			continue
		}

		children, err := l.loadRelation(ctx, records, model, head, rel, target, node.constraint)
		if err != nil {
			return fmt.Errorf("load %s: %w", head, err)
		}

		if len(node.childPaths) > 0 && len(children) > 0 {
			if err := l.Load(ctx, children, target, node.childPaths, node.childConstraints); err != nil {
				return err
			}
		}
	}

	return nil
}

func groupPaths(paths []string, constraints map[string]apitoolkit.Constraint) ([]string, map[string]*pathNode) {
	var order []string
	nodes := make(map[string]*pathNode)

	for _, path := range paths {
		head, rest := path, ""
		if idx := strings.IndexByte(path, '.'); idx >= 0 {
			head, rest = path[:idx], path[idx+1:]
		}

		node, ok := nodes[head]
		if !ok {
			node = &pathNode{childConstraints: make(map[string]apitoolkit.Constraint)}
			nodes[head] = node
			order = append(order, head)
		}

		if rest == "" {
			node.constraint = constraints[path]
		} else {
			node.childPaths = append(node.childPaths, rest)
			node.childConstraints[rest] = constraints[path]
		}
	}

	return order, nodes
}

func (l *loader) loadRelation(ctx context.Context, records []apitoolkit.MapRecord, owner *Model, name string, rel Relation, target *Model, constraint apitoolkit.Constraint) ([]apitoolkit.MapRecord, error) {
	if rel.Kind == BelongsTo {
		return l.loadBelongsTo(ctx, records, name, rel, target, constraint)
	}
	return l.loadHasMany(ctx, records, owner, name, rel, target, constraint)
}

// loadBelongsTo batches SELECT ... WHERE pk = ANY($1) over the owners'
// foreign keys and attaches each parent row, or nil for owners whose key
// resolves to nothing.
func (l *loader) loadBelongsTo(ctx context.Context, records []apitoolkit.MapRecord, name string, rel Relation, target *Model, constraint apitoolkit.Constraint) ([]apitoolkit.MapRecord, error) {
	var ids []interface{}
	seen := make(map[interface{}]bool)
	for _, rec := range records {
		id, ok := rec.Attribute(rel.ForeignKey)
		if !ok || id == nil {
			rec.SetRelation(name, nil)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)",
		pq.QuoteIdentifier(target.Table), pq.QuoteIdentifier(target.PrimaryKey))
	args := []interface{}{pq.Array(ids)}
	query, args, err := l.scopeQuery(query, args, target, constraint)
	if err != nil {
		return nil, err
	}

	children, err := l.query(ctx, target, query, args)
	if err != nil {
		return nil, err
	}

	byID := make(map[interface{}]apitoolkit.MapRecord, len(children))
	for _, child := range children {
		if id, ok := child.Attribute(target.PrimaryKey); ok {
			byID[id] = child
		}
	}

	for _, rec := range records {
		id, ok := rec.Attribute(rel.ForeignKey)
		if !ok || id == nil {
			continue
		}
		if child, found := byID[id]; found {
			rec.SetRelation(name, child)
		} else {
			rec.SetRelation(name, nil)
		}
	}

	return children, nil
}

// loadHasMany batches SELECT ... WHERE fk = ANY($1) over the owners' primary
// keys. HasMany attaches a (possibly empty) collection; HasOne attaches the
// first matching row or nil.
func (l *loader) loadHasMany(ctx context.Context, records []apitoolkit.MapRecord, owner *Model, name string, rel Relation, target *Model, constraint apitoolkit.Constraint) ([]apitoolkit.MapRecord, error) {
	var ids []interface{}
	seen := make(map[interface{}]bool)
	for _, rec := range records {
		id, ok := rec.Attribute(owner.PrimaryKey)
		if !ok || id == nil {
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ANY($1)",
		pq.QuoteIdentifier(target.Table), pq.QuoteIdentifier(rel.ForeignKey))
	args := []interface{}{pq.Array(ids)}
	query, args, err := l.scopeQuery(query, args, target, constraint)
	if err != nil {
		return nil, err
	}

	children, err := l.query(ctx, target, query, args)
	if err != nil {
		return nil, err
	}

	grouped := make(map[interface{}][]apitoolkit.MapRecord)
	for _, child := range children {
		if fk, ok := child.Attribute(rel.ForeignKey); ok {
			grouped[fk] = append(grouped[fk], child)
		}
	}

	for _, rec := range records {
		id, ok := rec.Attribute(owner.PrimaryKey)
		if !ok || id == nil {
			continue
		}
		group := grouped[id]
		if rel.Kind == HasOne {
			if len(group) > 0 {
				rec.SetRelation(name, group[0])
			} else {
				rec.SetRelation(name, nil)
			}
			continue
		}
		if group == nil {
			group = []apitoolkit.MapRecord{}
		}
		rec.SetRelation(name, group)
	}

	return children, nil
}

// scopeQuery appends a constraint's conditions to a batched query, numbering
// parameters after the ANY($1) key array.
func (l *loader) scopeQuery(query string, args []interface{}, target *Model, constraint apitoolkit.Constraint) (string, []interface{}, error) {
	if constraint == nil {
		return query, args, nil
	}

	sub := newBuilder(l.store, target)
	constraint(sub)
	if len(sub.conditions) == 0 {
		return query, args, nil
	}

	counter := len(args) + 1
	scoped, err := renderConditions(target.Table, sub.conditions, &counter, &args)
	if err != nil {
		return "", nil, err
	}
	if scoped != "" {
		query += " AND (" + scoped + ")"
	}
	return query, args, nil
}

func (l *loader) query(ctx context.Context, target *Model, query string, args []interface{}) ([]apitoolkit.MapRecord, error) {
	l.store.log.Debug("executing preload",
		zap.String("model", target.Name),
		zap.String("sql", query))

	rows, err := l.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}
