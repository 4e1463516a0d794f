package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cm := NewConfigManager()
	config := cm.GetConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "sqlite3", config.Warehouse.Driver)
	assert.Equal(t, "./models", config.Models.Dir)
	assert.Equal(t, 100, config.Models.NumTrees)
	assert.Equal(t, int64(42), config.Models.Seed)
	assert.Equal(t, "E-Commerce Prediction Report", config.Report.Title)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
warehouse:
  driver: "pgx"
  dsn: "postgres://localhost/olist"
  schema: "ecommerce"
models:
  num_trees: 25
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(path))

	config := cm.GetConfig()
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "pgx", config.Warehouse.Driver)
	assert.Equal(t, "ecommerce", config.Warehouse.Schema)
	assert.Equal(t, 25, config.Models.NumTrees)
	assert.Equal(t, "debug", config.Logging.Level)

	// Unset values fall back to defaults
	assert.Equal(t, "./models", config.Models.Dir)
	assert.Equal(t, int64(42), config.Models.Seed)
}

func TestLoadFromFileInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{"bad driver", "warehouse:\n  driver: \"mysql\"\n  dsn: \"x\"\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad log level", "logging:\n  level: \"verbose\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			cm := NewConfigManager()
			assert.Error(t, cm.LoadFromFile(path))
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ORDERLENS_PORT", "7070")
	t.Setenv("ORDERLENS_WAREHOUSE_DRIVER", "pgx")
	t.Setenv("ORDERLENS_WAREHOUSE_DSN", "postgres://warehouse/olist")
	t.Setenv("ORDERLENS_MODELS_DIR", "/var/lib/orderlens/models")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromEnvironment())

	config := cm.GetConfig()
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "pgx", config.Warehouse.Driver)
	assert.Equal(t, "postgres://warehouse/olist", config.Warehouse.DSN)
	assert.Equal(t, "/var/lib/orderlens/models", config.Models.Dir)
}

func TestGetConfigReturnsCopy(t *testing.T) {
	cm := NewConfigManager()
	config := cm.GetConfig()
	config.Server.Port = 1234

	assert.Equal(t, 8080, cm.GetConfig().Server.Port)
}
