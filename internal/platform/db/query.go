package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
)

// Dialect builds Postgres SQL with $n placeholders.
var Dialect = goqu.Dialect("postgres")

// ContainsPattern returns an ILIKE pattern matching q anywhere, with LIKE
// wildcards in q escaped.
func ContainsPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

// Page describes one page of a filtered list query.
type Page struct {
	Columns []interface{}
	Order   []exp.OrderedExpression
	Limit   int
	Offset  int
}

// QueryPage counts the rows matched by ds, then fetches the requested page
// and scans each row with scan.
func QueryPage[T any](ctx context.Context, q Queryable, ds *goqu.SelectDataset, p Page, scan func(pgx.Row) (*T, error)) ([]*T, int, error) {
	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageDS := ds.Select(p.Columns...).Order(p.Order...)
	if p.Limit > 0 {
		pageDS = pageDS.Limit(uint(p.Limit))
	}
	if p.Offset > 0 {
		pageDS = pageDS.Offset(uint(p.Offset))
	}
	listSQL, listArgs, err := pageDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}
