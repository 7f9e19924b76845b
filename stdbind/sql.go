package stdbind

import (
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/tether/bridge"

	_ "github.com/marcboeker/go-duckdb" // registers the duckdb driver
	_ "modernc.org/sqlite"              // registers the sqlite driver
)

var sqlLog = commonlog.GetLogger("tether.stdbind.sql")

// sqlDrivers names the database/sql drivers scripts may open. Both are
// linked into the binary above; anything else is refused up front rather
// than surfacing as a confusing driver-registry error.
var sqlDrivers = map[string]bool{
	"sqlite": true,
	"duckdb": true,
}

// ---------------------------------------------------------------------------
// std.sql.Database
// ---------------------------------------------------------------------------

// Database wraps one database/sql handle for script use. It tracks the
// cursors opened through it: script-held cursors are internal references
// into the handle, so the database stays responsible for closing them.
type Database struct {
	driver string
	dsn    string

	mu      sync.Mutex
	db      *sql.DB
	cursors []*Rows
}

// OpenDatabase opens a database by driver name and DSN. Supported drivers
// are sqlite and duckdb.
func OpenDatabase(driver, dsn string) (*Database, error) {
	if !sqlDrivers[driver] {
		return nil, fmt.Errorf("unsupported sql driver %q (want sqlite or duckdb)", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
	}
	sqlLog.Debugf("opened %s database %q", driver, dsn)
	return &Database{driver: driver, dsn: dsn, db: db}, nil
}

// Driver returns the driver name the database was opened with.
func (d *Database) Driver() string { return d.driver }

// Exec runs a statement that returns no rows and reports how many rows it
// affected.
func (d *Database) Exec(query string) (int64, error) {
	return d.exec(query, nil)
}

// ExecArgs is Exec with positional placeholder arguments.
func (d *Database) ExecArgs(query string, args []any) (int64, error) {
	return d.exec(query, args)
}

// Query runs a statement and returns a cursor over its result rows.
func (d *Database) Query(query string) (*Rows, error) {
	return d.query(query, nil)
}

// QueryArgs is Query with positional placeholder arguments.
func (d *Database) QueryArgs(query string, args []any) (*Rows, error) {
	return d.query(query, args)
}

// Close closes every cursor still open, then the handle. Idempotent.
func (d *Database) Close() error {
	d.mu.Lock()
	db := d.db
	cursors := d.cursors
	d.db = nil
	d.cursors = nil
	d.mu.Unlock()

	if db == nil {
		return nil
	}
	for _, r := range cursors {
		r.close()
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	sqlLog.Debugf("closed %s database %q", d.driver, d.dsn)
	return nil
}

func (d *Database) exec(query string, args []any) (int64, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}
	bound, err := bindArgs(args)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(query, bound...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (d *Database) query(query string, args []any) (*Rows, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	bound, err := bindArgs(args)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, bound...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("query failed: %w", err)
	}
	r := &Rows{db: d, cols: cols, rows: rows}
	d.mu.Lock()
	d.cursors = append(d.cursors, r)
	d.mu.Unlock()
	return r, nil
}

func (d *Database) handle() (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil, fmt.Errorf("database is closed")
	}
	return d.db, nil
}

// forget drops a cursor from the open set after it closed itself.
func (d *Database) forget(r *Rows) {
	d.mu.Lock()
	for i, c := range d.cursors {
		if c == r {
			d.cursors = append(d.cursors[:i], d.cursors[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
}

// bindArgs maps script-shaped arguments onto driver parameters. Numbers
// arrive as float64 regardless of intent; integral ones bind as int64 so
// integer columns keep integer affinity on both drivers.
func bindArgs(args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		switch x := a.(type) {
		case float64:
			if x == math.Trunc(x) && !math.IsInf(x, 0) &&
				x >= math.MinInt64 && x < math.MaxInt64 {
				out[i] = int64(x)
			} else {
				out[i] = x
			}
		case *big.Int:
			if !x.IsInt64() {
				return nil, fmt.Errorf("argument %d overflows a 64-bit integer", i)
			}
			out[i] = x.Int64()
		case nil, bool, string, int64:
			out[i] = x
		default:
			return nil, fmt.Errorf("argument %d: cannot bind %T as a sql parameter", i, a)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// std.sql.Rows
// ---------------------------------------------------------------------------

// Rows is a forward-only cursor over one query's result set. A cursor is
// always a view into its database: closing the database closes the cursor.
type Rows struct {
	db   *Database
	cols []string

	mu     sync.Mutex
	rows   *sql.Rows
	closed bool
}

// Columns returns the result column names in select order.
func (r *Rows) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Next advances to the next row. It returns false at the end of the result
// set and after Close.
func (r *Rows) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	return r.rows.Next()
}

// Scan reads the current row as one value per column. Driver byte slices
// come back as strings and timestamps as RFC 3339 text, so every cell is
// expressible as a plain script value.
func (r *Rows) Scan() ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("rows are closed")
	}
	cells := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	for i, c := range cells {
		switch x := c.(type) {
		case []byte:
			cells[i] = string(x)
		case time.Time:
			cells[i] = x.Format(time.RFC3339Nano)
		}
	}
	return cells, nil
}

// Err returns the error, if any, that ended iteration early.
func (r *Rows) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

// Close releases the cursor's connection back to the pool. Idempotent.
func (r *Rows) Close() error {
	err := r.close()
	r.db.forget(r)
	return err
}

func (r *Rows) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	rows := r.rows
	r.rows = nil
	if rows == nil {
		return nil
	}
	return rows.Close()
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// RegisterSQL installs std.sql.Database and std.sql.Rows. Cursors are
// returned as internal references: a reachable cursor proxy keeps its
// database proxy alive, and neither class is copyable. Collection of a
// database proxy closes the handle and everything open on it.
func RegisterSQL(e *bridge.Engine) error {
	_, err := bridge.DefineClass[Rows]("std.sql.Rows").
		ConstMethod("columns", (*Rows).Columns).
		Method("next", (*Rows).Next).
		Method("scan", (*Rows).Scan).
		Method("err", (*Rows).Err).
		Method("close", (*Rows).Close).
		NoCopy().
		Build(e)
	if err != nil {
		return err
	}

	_, err = bridge.DefineClass[Database]("std.sql.Database").
		Constructor(OpenDatabase).
		Property("driver", (*Database).Driver, nil).
		Method("exec", (*Database).Exec).
		Method("exec", (*Database).ExecArgs).
		Method("query", (*Database).Query, bridge.WithReturnPolicy(bridge.ReferenceInternal)).
		Method("query", (*Database).QueryArgs, bridge.WithReturnPolicy(bridge.ReferenceInternal)).
		Method("close", (*Database).Close).
		Finalize(func(d *Database) { _ = d.Close() }).
		NoCopy().
		Build(e)
	return err
}
