package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
)

// All executes the query, scans every row into a record and runs the
// registered eager loads.
func (b *Builder) All(ctx context.Context) ([]apitoolkit.MapRecord, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	b.store.log.Debug("executing query",
		zap.String("model", b.model.Name),
		zap.String("sql", query),
		zap.Int("args", len(args)))

	rows, err := b.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}

	if len(b.withPaths) > 0 && len(records) > 0 {
		loader := newLoader(b.store)
		if err := loader.Load(ctx, records, b.model, b.withPaths, b.withConstraints); err != nil {
			return nil, fmt.Errorf("eager load: %w", err)
		}
	}

	return records, nil
}

// First executes the query with LIMIT 1 and returns the single record, or
// sql.ErrNoRows when nothing matches.
func (b *Builder) First(ctx context.Context) (apitoolkit.MapRecord, error) {
	b.Limit(1)
	records, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

// Count executes a COUNT(*) over the current conditions. Ordering, limits
// and preloads do not apply.
func (b *Builder) Count(ctx context.Context) (int, error) {
	var sqlb strings.Builder
	args := make([]interface{}, 0)
	counter := 1

	sqlb.WriteString("SELECT COUNT(*) FROM " + pq.QuoteIdentifier(b.model.Table))
	if len(b.conditions) > 0 {
		where, err := renderConditions(b.model.Table, b.conditions, &counter, &args)
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}
		if where != "" {
			sqlb.WriteString(" WHERE " + where)
		}
	}

	query := sqlb.String()
	b.store.log.Debug("executing count",
		zap.String("model", b.model.Name),
		zap.String("sql", query))

	var count int
	if err := b.store.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("execute count: %w", err)
	}
	return count, nil
}

// Exists reports whether any row matches the current conditions.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	count, err := b.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanRecords(rows *sql.Rows) ([]apitoolkit.MapRecord, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []apitoolkit.MapRecord
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(apitoolkit.MapRecord, len(columns))
		for i, column := range columns {
			record[column] = values[i]
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
