package database

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradestore/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:           "db.internal",
		Port:           5433,
		User:           "grader",
		Password:       "p@ss word/=",
		Name:           "grades",
		ConnectTimeout: 1500 * time.Millisecond,
	}

	kv, err := pq.ParseURL(postgresDSN(cfg))
	require.NoError(t, err)
	assert.Contains(t, kv, `host='db.internal'`)
	assert.Contains(t, kv, `port='5433'`)
	assert.Contains(t, kv, `dbname='grades'`)
	assert.Contains(t, kv, `sslmode='disable'`)
	assert.Contains(t, kv, `application_name='gradestore'`)
	assert.Contains(t, kv, `connect_timeout='1'`)
	assert.Contains(t, kv, `password='p@ss word/='`)
}

func TestPostgresDSNKeepsSSLMode(t *testing.T) {
	dsn := postgresDSN(config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "grades", SSLMode: "verify-full"})
	assert.Contains(t, dsn, "sslmode=verify-full")
	assert.NotContains(t, dsn, "@")
	assert.NotContains(t, dsn, "connect_timeout")
}

func TestApplyPoolLimits(t *testing.T) {
	db, err := NewSQLite(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	applyPoolLimits(db, config.DatabaseConfig{MaxOpenConns: 4})
	assert.Equal(t, 4, db.Stats().MaxOpenConnections)
}

func TestNewPostgresFailsFastWhenUnreachable(t *testing.T) {
	start := time.Now()
	_, err := NewPostgres(config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		Name:           "grades",
		ConnectTimeout: time.Second,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
