package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgerrors "gorm-multistatement/pkg/errors"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Executor runs raw SQL strings that may hold several statements.
type Executor struct {
	db  *gorm.DB    // GORM connection the statements run on
	log *zap.Logger // Structured logger
}

// NewExecutor creates a new Executor on top of db.
func NewExecutor(db *gorm.DB, log *zap.Logger) *Executor {
	return &Executor{db: db, log: log}
}

// batch accumulates what the statements of one Execute call produced.
type batch struct {
	affected int64
	insertID int64
	rows     []Row
	hasRows  bool
}

// Execute splits sqlText into statements and runs them in order inside a
// single transaction. params are handed out to the statements by their
// number of ? placeholders. The mode decides which part of the outcome is
// returned; row data always comes from the last statement producing rows.
func (e *Executor) Execute(ctx context.Context, sqlText string, params []any, mode Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, pkgerrors.NewValidationError("mode", fmt.Sprintf("unknown mode %q, expected all, get or run", mode))
	}

	stmts := Split(sqlText)
	if len(stmts) == 0 {
		return nil, pkgerrors.NewValidationError("sql", "no statement to execute")
	}

	args, err := bindParams(stmts, params)
	if err != nil {
		return nil, err
	}

	e.log.Debug("executing raw sql",
		zap.String("mode", string(mode)),
		zap.Int("statements", len(stmts)),
		zap.Int("params", len(params)),
	)

	var b batch
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, st := range stmts {
			if err := e.runStatement(ctx, tx, st, args[i], &b); err != nil {
				return pkgerrors.NewDriverError(i, st.SQL, translateError(err))
			}
		}
		return nil
	})
	if err != nil {
		e.log.Warn("raw sql failed", zap.String("mode", string(mode)), zap.Error(err))
		return nil, err
	}

	return shape(mode, len(stmts), &b), nil
}

// All runs sqlText and returns the rows of its last result set.
func (e *Executor) All(ctx context.Context, sqlText string, params ...any) ([]Row, error) {
	res, err := e.Execute(ctx, sqlText, params, ModeAll)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Get runs sqlText and returns the first row of its last result set, or nil.
func (e *Executor) Get(ctx context.Context, sqlText string, params ...any) (Row, error) {
	res, err := e.Execute(ctx, sqlText, params, ModeGet)
	if err != nil {
		return nil, err
	}
	return res.Row, nil
}

// Run runs sqlText and returns its write summary.
func (e *Executor) Run(ctx context.Context, sqlText string, params ...any) (*RunResult, error) {
	res, err := e.Execute(ctx, sqlText, params, ModeRun)
	if err != nil {
		return nil, err
	}
	return res.Run, nil
}

func (e *Executor) runStatement(ctx context.Context, tx *gorm.DB, st Statement, args []any, b *batch) error {
	query := bindVars(tx.Dialector, st, args)
	pool := tx.Statement.ConnPool

	if st.ReturnsRows {
		begin := time.Now()
		rows, err := pool.QueryContext(ctx, query, args...)
		if err != nil {
			trace(ctx, tx, begin, query, args, 0, err)
			return err
		}
		_, out, err := collectRows(rows)
		trace(ctx, tx, begin, query, args, int64(len(out)), err)
		if err != nil {
			return err
		}
		b.rows = out
		b.hasRows = true
		if st.IsDML() {
			b.affected += int64(len(out))
			if id, ok := rowID(out); ok {
				b.insertID = id
			}
		}
		return nil
	}

	begin := time.Now()
	res, err := pool.ExecContext(ctx, query, args...)
	if err != nil {
		trace(ctx, tx, begin, query, args, 0, err)
		return err
	}
	affected, _ := res.RowsAffected()
	trace(ctx, tx, begin, query, args, affected, nil)
	b.affected += affected

	// PostgreSQL drivers refuse LastInsertId and only report ids through
	// RETURNING.
	if st.Verb == "INSERT" && affected > 0 {
		if id, err := res.LastInsertId(); err == nil {
			b.insertID = id
		} else {
			e.log.Debug("last insert id unavailable", zap.Error(err))
		}
	}
	return nil
}

// bindVars rewrites the placeholders of st into the dialect's bind
// variables. Only the offsets recorded by Split are touched, so a ? inside
// a literal or a comment stays as written.
func bindVars(d gorm.Dialector, st Statement, args []any) string {
	if len(st.Offsets) == 0 {
		return st.SQL
	}
	var (
		sb   strings.Builder
		stmt gorm.Statement
		prev int
	)
	for i, off := range st.Offsets {
		sb.WriteString(st.SQL[prev:off])
		stmt.Vars = append(stmt.Vars, args[i])
		d.BindVarTo(&sb, &stmt, args[i])
		prev = off + 1
	}
	sb.WriteString(st.SQL[prev:])
	return sb.String()
}

// trace reports a statement to the GORM logger the way GORM's own
// callbacks do, params filter included.
func trace(ctx context.Context, tx *gorm.DB, begin time.Time, query string, args []any, rows int64, err error) {
	tx.Logger.Trace(ctx, begin, func() (string, int64) {
		vars := args
		if f, ok := tx.Logger.(gorm.ParamsFilter); ok {
			query, vars = f.ParamsFilter(ctx, query, args...)
		}
		return tx.Dialector.Explain(query, vars...), rows
	}, err)
}

func shape(mode Mode, statements int, b *batch) *Result {
	rows := b.rows
	if rows == nil {
		rows = []Row{}
	}

	res := &Result{Mode: mode, Statements: statements}
	switch mode {
	case ModeAll:
		res.Rows = rows
	case ModeGet:
		if len(rows) > 0 {
			res.Row = rows[0]
		}
	case ModeRun:
		run := &RunResult{
			AffectedRows: b.affected,
			InsertID:     b.insertID,
			Rows:         rows,
		}
		if len(rows) > 0 {
			run.Row = rows[0]
		}
		res.Run = run
	}
	return res
}

// bindParams hands params out to the statements in order.
func bindParams(stmts []Statement, params []any) ([][]any, error) {
	total := 0
	for _, st := range stmts {
		total += st.Placeholders
	}
	if total != len(params) {
		return nil, pkgerrors.NewValidationError("params",
			fmt.Sprintf("sql has %d placeholders but %d params were given", total, len(params)))
	}

	args := make([][]any, len(stmts))
	offset := 0
	for i, st := range stmts {
		args[i] = params[offset : offset+st.Placeholders]
		offset += st.Placeholders
	}
	return args, nil
}

func collectRows(rows *sql.Rows) ([]string, []Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(values[i])
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func rowID(rows []Row) (int64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	switch id := rows[0]["id"].(type) {
	case int64:
		return id, true
	case int32:
		return int64(id), true
	case int:
		return int64(id), true
	default:
		return 0, false
	}
}

// translateError tags unique constraint violations with
// pkgerrors.ErrUniqueViolation, keeping the driver error in the chain.
func translateError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", pkgerrors.ErrUniqueViolation, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
