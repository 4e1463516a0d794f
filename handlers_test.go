package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// newTestServer builds a server over a small sqlite warehouse with enough
// joined rows to train the models quickly
func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "warehouse.db")
	seedTestWarehouse(t, dsn)

	config := &utils.Config{
		Server: utils.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Warehouse: utils.WarehouseConfig{
			Driver: "sqlite3",
			DSN:    dsn,
		},
		Models: utils.ModelsConfig{
			Dir:      filepath.Join(dir, "models"),
			NumTrees: 5,
			Seed:     42,
		},
		Report: utils.ReportConfig{
			Path:  filepath.Join(dir, "report.pdf"),
			Title: "E-Commerce Prediction Report",
		},
		Logging: utils.LoggingConfig{Level: "error", Format: "text"},
	}

	s, err := NewServer(config)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTestWarehouse(t *testing.T, dsn string) {
	t.Helper()

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

	_, err = db.Exec(`INSERT INTO customers VALUES
		('c1', 'sao paulo', 'SP'), ('c2', 'rio de janeiro', 'RJ')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO products VALUES
		('p1', 'moveis_decoracao', 3, 598, 8683),
		('p2', 'beleza_saude', 1, 240, 200)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sellers VALUES ('s1', 'campinas', 'SP')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO category_translation VALUES
		('moveis_decoracao', 'furniture_decor'), ('beleza_saude', 'health_beauty')`)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		orderID := fmt.Sprintf("o%d", i)
		customer := "c1"
		product := "p1"
		status := "delivered"
		delivered := "2017-10-10 12:00:00"
		score := 5
		payment := 150.0
		if i%2 == 1 {
			customer = "c2"
			product = "p2"
			delivered = "2017-10-25 12:00:00" // past the estimate
			score = 1
			payment = 20.0
		}
		if i%4 == 3 {
			status = "canceled"
		}

		_, err = db.Exec(`INSERT INTO orders VALUES (?, ?, ?, '2017-10-02 10:00:00', ?, '2017-10-18 00:00:00')`,
			orderID, customer, status, delivered)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO order_items VALUES (?, ?, 's1', 58.90)`, orderID, product)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO order_payments VALUES (?, ?, 2)`, orderID, payment)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO order_reviews VALUES (?, ?)`, orderID, score)
		require.NoError(t, err)
	}
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["warehouse"])
}

func TestHandleListTables(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	var body struct {
		Data struct {
			Tables []string `json:"tables"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Tables, 9)
	assert.Contains(t, body.Data.Tables, "order_reviews")
}

func TestHandleGetTable(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/tables/orders?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Name      string     `json:"name"`
			Columns   []string   `json:"columns"`
			Rows      [][]string `json:"rows"`
			TotalRows int        `json:"total_rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "orders", body.Data.Name)
	assert.Contains(t, body.Data.Columns, "order_status")
	assert.Len(t, body.Data.Rows, 2)
	assert.Equal(t, 12, body.Data.TotalRows)
}

func TestHandleGetTableDefaultLimit(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/tables/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Rows [][]string `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Rows, 10)
}

func TestHandleGetTableUnknown(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/tables/pg_shadow", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRefreshWarehouse(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/api/v1/warehouse/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			RefreshedAt string `json:"refreshed_at"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.RefreshedAt)
}

func TestHandleTrainModels(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/api/v1/models/train", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, key := range []string{reviewModelKey, lateModelKey, churnModelKey} {
		assert.True(t, s.store.Exists(key), "missing artifact for %s", key)
	}
}

func TestHandlePredict(t *testing.T) {
	s := newTestServer(t)

	input := map[string]any{
		"payment_value":              150.0,
		"payment_installments":       2,
		"product_photos_qty":         3,
		"product_description_lenght": 598,
		"product_weight_g":           8683,
		"purchase_dayofweek":         0,
	}

	rec := doRequest(s, "POST", "/api/v1/predict", input)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			ReviewScore float64 `json:"review_score"`
			IsLate      bool    `json:"is_late"`
			WillChurn   bool    `json:"will_churn"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.Data.ReviewScore, 1.0)
	assert.LessOrEqual(t, body.Data.ReviewScore, 5.0)
}

func TestHandlePredictInvalidBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/predict", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExportReport(t *testing.T) {
	s := newTestServer(t)
	destination := filepath.Join(t.TempDir(), "report.pdf")

	rec := doRequest(s, "POST", "/api/v1/report", map[string]any{
		"payment_value":      20.0,
		"purchase_dayofweek": 4,
		"destination":        destination,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Destination string   `json:"destination"`
			Lines       []string `json:"lines"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, destination, body.Data.Destination)
	require.Len(t, body.Data.Lines, 3)
	assert.Contains(t, body.Data.Lines[0], "Predicted Review Score: ")
	assert.Contains(t, body.Data.Lines[1], "Delivery Status: ")
	assert.Contains(t, body.Data.Lines[2], "Churn Risk: ")

	data, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/api/v1/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
