package repo

import (
	"context"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/store"
	"rangeslicer/internal/services/slicer/domain"
)

// Table names the records the oracle counts: the table, the timestamp column the
// date range applies to and the id column key prefixes apply to
type Table struct {
	Name       string
	TimeColumn string
	KeyColumn  string
}

// Dialect selects quoting, placeholders and the prefix function
type Dialect uint8

const (
	// Postgres uses $n placeholders and starts_with
	Postgres Dialect = iota
	// ClickHouse uses ? placeholders and startsWith
	ClickHouse
)

func (d Dialect) String() string {
	if d == ClickHouse {
		return "clickhouse"
	}
	return "postgres"
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (store.Rows, error)
}

// Oracle is a domain.Counter issuing count queries against one table
type Oracle struct {
	db      querier
	dialect Dialect
	table   string
	timeCol string
	keyCol  string
	builder sq.StatementBuilderType
}

var _ domain.Counter = (*Oracle)(nil)

// NewPGOracle counts rows of t through a Postgres querier
func NewPGOracle(db store.RowQuerier, t Table) (*Oracle, error) {
	return newOracle(db, Postgres, t)
}

// NewCHOracle counts rows of t through ClickHouse
func NewCHOracle(db store.Clickhouse, t Table) (*Oracle, error) {
	return newOracle(db, ClickHouse, t)
}

func newOracle(db querier, d Dialect, t Table) (*Oracle, error) {
	if db == nil {
		return nil, perr.Configf("%s oracle: backend not configured", d)
	}
	for key, name := range map[string]string{"table": t.Name, "time_column": t.TimeColumn} {
		if !identRe.MatchString(name) {
			return nil, perr.ConfigKeyf(key, "invalid %s %q", key, name)
		}
	}
	if t.KeyColumn != "" && !identRe.MatchString(t.KeyColumn) {
		return nil, perr.ConfigKeyf("key_column", "invalid key_column %q", t.KeyColumn)
	}

	o := &Oracle{db: db, dialect: d}
	switch d {
	case ClickHouse:
		o.builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	default:
		o.builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	o.table, o.timeCol = o.quote(t.Name), o.quote(t.TimeColumn)
	if t.KeyColumn != "" {
		o.keyCol = o.quote(t.KeyColumn)
	}
	return o, nil
}

func (o *Oracle) quote(name string) string {
	parts := strings.Split(name, ".")
	if o.dialect == ClickHouse {
		for i, p := range parts {
			parts[i] = "`" + p + "`"
		}
		return strings.Join(parts, ".")
	}
	return pgx.Identifier(parts).Sanitize()
}

func (o *Oracle) base(start, end time.Time) sq.SelectBuilder {
	return o.builder.Select("count(*)").
		From(o.table).
		Where(sq.GtOrEq{o.timeCol: start.UTC()}).
		Where(sq.Lt{o.timeCol: end.UTC()})
}

// RangeSQL renders the range count statement
func (o *Oracle) RangeSQL(start, end time.Time) (string, []any, error) {
	return o.base(start, end).ToSql()
}

// KeysSQL renders the prefix count statement
func (o *Oracle) KeysSQL(start, end time.Time, keys []string) (string, []any, error) {
	if o.keyCol == "" {
		return "", nil, perr.ConfigKeyf("key_column", "key subslicing needs a key column")
	}
	if len(keys) == 0 {
		return "", nil, perr.InvalidArgf("count keys: empty key group")
	}
	fn := "starts_with"
	if o.dialect == ClickHouse {
		fn = "startsWith"
	}
	or := make(sq.Or, len(keys))
	for i, k := range keys {
		or[i] = sq.Expr(fn+"("+o.keyCol+", ?)", k)
	}
	return o.base(start, end).Where(or).ToSql()
}

// CountRange implements domain.Counter
func (o *Oracle) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	q, args, err := o.RangeSQL(start, end)
	if err != nil {
		return 0, err
	}
	return o.count(ctx, q, args)
}

// CountKeys implements domain.Counter
func (o *Oracle) CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error) {
	q, args, err := o.KeysSQL(start, end, keys)
	if err != nil {
		return 0, err
	}
	return o.count(ctx, q, args)
}

func (o *Oracle) count(ctx context.Context, q string, args []any) (int64, error) {
	n, err := o.scan(ctx, q, args)
	if err != nil {
		return 0, o.classify(err)
	}
	return n, nil
}

func (o *Oracle) scan(ctx context.Context, q string, args []any) (int64, error) {
	rows, err := o.db.Query(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, perr.Newf(perr.ErrorCodeDB, "%s count returned no rows", o.dialect)
	}
	var n int64
	if o.dialect == ClickHouse {
		// count() is UInt64 in ClickHouse
		var u uint64
		if err := rows.Scan(&u); err != nil {
			return 0, err
		}
		n = int64(u)
	} else if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}

// classify maps a driver error onto the project codes so retries and config
// failures are told apart
func (o *Oracle) classify(err error) error {
	if _, ok := perr.As(err); ok {
		return err
	}
	if o.dialect == ClickHouse {
		return perr.FromClickHousef(err, "count %s", o.table)
	}
	return perr.FromPostgresf(err, "count %s", o.table)
}
