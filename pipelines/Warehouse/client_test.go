package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestWarehouse creates a sqlite warehouse with all nine tables and a few
// rows in the ones the tests read
func newTestWarehouse(t *testing.T) *Client {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "warehouse.db")
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()

	schema := []string{
		`CREATE TABLE customers (customer_id TEXT, customer_city TEXT, customer_state TEXT)`,
		`CREATE TABLE geolocation (geolocation_zip_code_prefix TEXT, geolocation_city TEXT)`,
		`CREATE TABLE orders (order_id TEXT, customer_id TEXT, order_status TEXT,
			order_purchase_timestamp TEXT, order_delivered_customer_date TEXT,
			order_estimated_delivery_date TEXT)`,
		`CREATE TABLE order_items (order_id TEXT, product_id TEXT, seller_id TEXT, price REAL)`,
		`CREATE TABLE order_payments (order_id TEXT, payment_value REAL, payment_installments INTEGER)`,
		`CREATE TABLE order_reviews (order_id TEXT, review_score INTEGER)`,
		`CREATE TABLE products (product_id TEXT, product_category_name TEXT,
			product_photos_qty INTEGER, product_description_lenght INTEGER, product_weight_g REAL)`,
		`CREATE TABLE sellers (seller_id TEXT, seller_city TEXT, seller_state TEXT)`,
		`CREATE TABLE category_translation (product_category_name TEXT, product_category_name_english TEXT)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	_, err = db.Exec(`INSERT INTO customers VALUES ('c1', 'sao paulo', 'SP'), ('c2', NULL, 'RJ')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES
		('o1', 'c1', 'delivered', '2017-10-02 10:56:33', '2017-10-10 21:25:13', '2017-10-18 00:00:00'),
		('o2', 'c2', 'canceled', '2018-07-24 20:41:37', NULL, '2018-08-13 00:00:00')`)
	require.NoError(t, err)

	client, err := NewClient("sqlite3", dsn, "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFetchTable(t *testing.T) {
	client := newTestWarehouse(t)

	table, err := client.FetchTable(context.Background(), "customers")
	require.NoError(t, err)

	assert.Equal(t, "customers", table.Name)
	assert.Equal(t, []string{"customer_id", "customer_city", "customer_state"}, table.Columns)
	require.Equal(t, 2, table.NumRows())
	assert.Equal(t, []string{"c1", "sao paulo", "SP"}, table.Rows[0])

	// NULL cells come back as empty strings
	assert.Equal(t, "", table.Rows[1][1])
}

func TestFetchTableUnknownName(t *testing.T) {
	client := newTestWarehouse(t)

	_, err := client.FetchTable(context.Background(), "pg_catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown warehouse table")
}

func TestFetchAll(t *testing.T) {
	client := newTestWarehouse(t)

	snapshot, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, snapshot, len(TableNames))
	for _, name := range TableNames {
		require.NotNil(t, snapshot.Table(name), "missing table %s", name)
	}
	assert.Equal(t, 2, snapshot.Table("orders").NumRows())
	assert.Equal(t, 0, snapshot.Table("sellers").NumRows())
}

func TestFetchAllConnectionError(t *testing.T) {
	client, err := NewClient("sqlite3", filepath.Join(t.TempDir(), "missing", "no.db"), "")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestTableHead(t *testing.T) {
	table := &Table{
		Name:    "orders",
		Columns: []string{"order_id"},
		Rows:    [][]string{{"o1"}, {"o2"}, {"o3"}},
	}

	assert.Equal(t, 2, table.Head(2).NumRows())
	assert.Equal(t, 3, table.Head(10).NumRows())
	assert.Equal(t, 0, table.Head(-1).NumRows())
	assert.Equal(t, 3, table.NumRows())
	assert.Equal(t, [][]string{{"o1"}}, table.Head(1).Rows)
}

func TestCacheSnapshotReuse(t *testing.T) {
	client := newTestWarehouse(t)
	cache := NewCache(client)

	assert.True(t, cache.FetchedAt().IsZero())

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	fetchedAt := cache.FetchedAt()
	assert.False(t, fetchedAt.IsZero())

	// Second call reuses the same snapshot without refetching
	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fetchedAt, cache.FetchedAt())
	assert.Same(t, first.Table("orders"), second.Table("orders"))
}

func TestCacheInvalidate(t *testing.T) {
	client := newTestWarehouse(t)
	cache := NewCache(client)

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	assert.True(t, cache.FetchedAt().IsZero())

	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first.Table("orders"), second.Table("orders"))
}

func TestCacheRefresh(t *testing.T) {
	client := newTestWarehouse(t)
	cache := NewCache(client)

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	require.NoError(t, cache.Refresh(context.Background()))

	second, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first.Table("orders"), second.Table("orders"))
}
