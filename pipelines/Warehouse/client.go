package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// ErrConnection indicates the warehouse is unreachable. Fatal to the calling
// operation; no retry.
var ErrConnection = errors.New("warehouse unreachable")

// TableNames lists the nine source tables, in fetch order.
var TableNames = []string{
	"customers",
	"geolocation",
	"orders",
	"order_items",
	"order_payments",
	"order_reviews",
	"products",
	"sellers",
	"category_translation",
}

// Client wraps a single read-only connection pool to the warehouse
type Client struct {
	db     *sql.DB
	schema string
}

// NewClient opens a connection pool to the warehouse. Supported drivers are
// "pgx" (Postgres) and "sqlite3" (local file warehouses).
func NewClient(driver, dsn, schema string) (*Client, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return &Client{db: db, schema: schema}, nil
}

// Ping verifies the warehouse connection
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.db.Close()
}

// FetchTable runs SELECT * against the named table and returns the full
// result with column names lower-cased. Only the nine known table names are
// accepted.
func (c *Client) FetchTable(ctx context.Context, name string) (*Table, error) {
	if !knownTable(name) {
		return nil, fmt.Errorf("unknown warehouse table: %s", name)
	}

	qualified := name
	if c.schema != "" {
		qualified = c.schema + "." + name
	}

	rows, err := c.db.QueryContext(ctx, "SELECT * FROM "+qualified)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrConnection, name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	for i, col := range cols {
		cols[i] = strings.ToLower(col)
	}

	table := &Table{Name: name, Columns: cols}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", name, err)
		}

		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConnection, name, err)
	}

	return table, nil
}

// FetchAll fetches all nine source tables into one snapshot
func (c *Client) FetchAll(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	snapshot := make(Snapshot, len(TableNames))

	for _, name := range TableNames {
		table, err := c.FetchTable(ctx, name)
		if err != nil {
			return nil, err
		}
		snapshot[name] = table
	}

	utils.GetLogger().Info("Warehouse snapshot fetched",
		utils.Int("tables", len(snapshot)),
		utils.Float("duration_ms", time.Since(start).Seconds()*1000),
		utils.Component("warehouse"))

	return snapshot, nil
}

func knownTable(name string) bool {
	for _, t := range TableNames {
		if t == name {
			return true
		}
	}
	return false
}
