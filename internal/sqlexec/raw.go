package sqlexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgerrors "gorm-multistatement/pkg/errors"
)

// Raw sends sqlText to the database without going through GORM's statement
// building and returns one ResultSet per statement.
//
// On PostgreSQL the whole string goes out in a single simple-protocol
// round trip, which the server runs as one implicit transaction. Other
// dialects get the statements one by one inside a transaction.
func (e *Executor) Raw(ctx context.Context, sqlText string) ([]ResultSet, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, pkgerrors.NewValidationError("sql", "no statement to execute")
	}

	var (
		sets []ResultSet
		err  error
	)
	if e.db.Dialector.Name() == "postgres" {
		sets, err = e.rawPostgres(ctx, sqlText)
	} else {
		sets, err = e.rawStatements(ctx, sqlText)
	}
	if err != nil {
		e.log.Warn("raw query failed", zap.Error(err))
		return nil, err
	}

	e.log.Debug("raw query done", zap.Int("result_sets", len(sets)))
	return sets, nil
}

func (e *Executor) rawPostgres(ctx context.Context, sqlText string) ([]ResultSet, error) {
	sqlDB, err := e.db.DB()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to get underlying sql.DB", err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to acquire connection", err)
	}
	defer conn.Close()

	var sets []ResultSet
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return pkgerrors.NewInternalError(fmt.Sprintf("unexpected driver connection %T", driverConn), nil)
		}

		results, err := sc.Conn().PgConn().Exec(ctx, sqlText).ReadAll()
		if err != nil {
			return pkgerrors.NewDriverError(failedIndex(results), sqlText, translateError(err))
		}

		typeMap := sc.Conn().TypeMap()
		for _, r := range results {
			set, err := decodeResult(typeMap, r)
			if err != nil {
				return pkgerrors.NewInternalError("failed to decode result", err)
			}
			sets = append(sets, set)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// failedIndex finds the statement the server rejected. Statements after it
// never ran and have no result.
func failedIndex(results []*pgconn.Result) int {
	for i, r := range results {
		if r.Err != nil {
			return i
		}
	}
	return len(results)
}

func decodeResult(typeMap *pgtype.Map, r *pgconn.Result) (ResultSet, error) {
	set := ResultSet{
		Columns:      make([]string, len(r.FieldDescriptions)),
		Rows:         make([]Row, 0, len(r.Rows)),
		RowsAffected: r.CommandTag.RowsAffected(),
		CommandTag:   r.CommandTag.String(),
	}
	for i, fd := range r.FieldDescriptions {
		set.Columns[i] = fd.Name
	}

	for _, raw := range r.Rows {
		row := make(Row, len(raw))
		for i, fd := range r.FieldDescriptions {
			if raw[i] == nil {
				row[fd.Name] = nil
				continue
			}
			typ, ok := typeMap.TypeForOID(fd.DataTypeOID)
			if !ok {
				row[fd.Name] = string(raw[i])
				continue
			}
			v, err := typ.Codec.DecodeValue(typeMap, fd.DataTypeOID, fd.Format, raw[i])
			if err != nil {
				return ResultSet{}, fmt.Errorf("failed to decode column %s: %w", fd.Name, err)
			}
			row[fd.Name] = v
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}

func (e *Executor) rawStatements(ctx context.Context, sqlText string) ([]ResultSet, error) {
	stmts := Split(sqlText)
	if len(stmts) == 0 {
		return nil, pkgerrors.NewValidationError("sql", "no statement to execute")
	}

	sets := make([]ResultSet, 0, len(stmts))
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, st := range stmts {
			set, err := rawStatement(tx, st)
			if err != nil {
				return pkgerrors.NewDriverError(i, st.SQL, translateError(err))
			}
			sets = append(sets, set)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func rawStatement(tx *gorm.DB, st Statement) (ResultSet, error) {
	if st.ReturnsRows {
		rows, err := tx.Raw(st.SQL).Rows()
		if err != nil {
			return ResultSet{}, err
		}
		cols, out, err := collectRows(rows)
		if err != nil {
			return ResultSet{}, err
		}
		return ResultSet{
			Columns:      cols,
			Rows:         out,
			RowsAffected: int64(len(out)),
			CommandTag:   commandTag(st.Verb, int64(len(out))),
		}, nil
	}

	res := tx.Exec(st.SQL)
	if res.Error != nil {
		return ResultSet{}, res.Error
	}
	return ResultSet{
		Columns:      []string{},
		Rows:         []Row{},
		RowsAffected: res.RowsAffected,
		CommandTag:   commandTag(st.Verb, res.RowsAffected),
	}, nil
}

// commandTag mimics the tag PostgreSQL reports for a statement.
func commandTag(verb string, n int64) string {
	switch verb {
	case "INSERT":
		return fmt.Sprintf("INSERT 0 %d", n)
	case "SELECT", "WITH", "VALUES", "TABLE":
		return fmt.Sprintf("SELECT %d", n)
	case "UPDATE", "DELETE", "MERGE":
		return fmt.Sprintf("%s %d", verb, n)
	default:
		return verb
	}
}
