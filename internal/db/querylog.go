package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// NewQueryLogConnector returns a connector for sql.OpenDB that opens sqlite3
// connections and logs each executed statement, its arguments, duration and
// error at debug level. A nil log uses slog.Default().
func NewQueryLogConnector(dsn string, log *slog.Logger) driver.Connector {
	if log == nil {
		log = slog.Default()
	}
	return &queryLogConnector{dsn: dsn, drv: &sqlite3.SQLiteDriver{}, log: log.With("component", "sql")}
}

type queryLogConnector struct {
	dsn string
	drv *sqlite3.SQLiteDriver
	log *slog.Logger
}

func (c *queryLogConnector) Driver() driver.Driver { return c.drv }

func (c *queryLogConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &queryLogConn{Conn: conn, log: c.log}, nil
}

type queryLogConn struct {
	driver.Conn
	log *slog.Logger
}

func (c *queryLogConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *queryLogConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.Conn.Prepare(query)
	}
	if err != nil {
		c.log.Debug("sql prepare failed", "sql", query, "error", err)
		return nil, err
	}
	return &queryLogStmt{Stmt: stmt, query: query, log: c.log}, nil
}

func (c *queryLogConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // fallback for conns without BeginTx
	return c.Conn.Begin()
}

type queryLogStmt struct {
	driver.Stmt
	query string
	log   *slog.Logger
}

func (s *queryLogStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if e, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = e.ExecContext(ctx, args)
	} else {
		//nolint:staticcheck // fallback for stmts without ExecContext
		res, err = s.Stmt.Exec(plainValues(args))
	}
	s.record(ctx, "exec", args, start, err)
	return res, err
}

func (s *queryLogStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if q, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = q.QueryContext(ctx, args)
	} else {
		//nolint:staticcheck // fallback for stmts without QueryContext
		rows, err = s.Stmt.Query(plainValues(args))
	}
	s.record(ctx, "query", args, start, err)
	return rows, err
}

func (s *queryLogStmt) record(ctx context.Context, op string, args []driver.NamedValue, start time.Time, err error) {
	attrs := []any{
		"op", op,
		"sql", s.query,
		"args", formatArgs(args),
		"elapsed", time.Since(start),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.log.DebugContext(ctx, "sql", attrs...)
}

func plainValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := "NULL"
		switch t := a.Value.(type) {
		case nil:
		case []byte:
			v = string(t)
		case time.Time:
			v = t.Format(time.RFC3339Nano)
		default:
			v = fmt.Sprint(t)
		}
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}
