package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from environment", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err, "Expected configuration to be created")
		assert.Equal(t, "localhost", config.Host)
		assert.Equal(t, "5433", config.Port)
		assert.Equal(t, "database", config.Database)
		assert.Equal(t, "public", config.Schema)
	})

	t.Run("Defaults schema and ssl mode", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")
		t.Setenv("DB_SCHEMA", "")
		t.Setenv("DB_SSLMODE", "")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "public", config.Schema)
		assert.Equal(t, "disable", config.SSLMode)
	})

	t.Run("Missing host returns error", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "5433")
		t.Setenv("DB_HOST", "")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err, "Expected error for missing host")
		assert.Contains(t, err.Error(), "DB_HOST")
	})
}

func TestConnectionString(t *testing.T) {
	config := &DatabaseConfiguration{
		Host:     "db.local",
		Port:     "5432",
		Database: "mapper",
		Username: "mapper",
		Password: "secret",
		Schema:   "public",
		SSLMode:  "disable",
	}

	dsn := config.ConnectionString()
	assert.Contains(t, dsn, "host=db.local")
	assert.Contains(t, dsn, "dbname=mapper")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "search_path=public")
}

func TestNewDatabaseNilConfiguration(t *testing.T) {
	_, err := NewDatabase("test", nil, nil)
	assert.Error(t, err, "Expected error for nil configuration")
	assert.Contains(t, err.Error(), "configuration is nil")
}
