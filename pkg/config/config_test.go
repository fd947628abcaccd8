package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "gradestore.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.False(t, cfg.SnapshotCache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.SnapshotCache.TTL)
	assert.Equal(t, ExportsLocal, cfg.Exports.Driver)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "POSTGRES")
	v.Set("SNAPSHOT_CACHE_TTL", "90s")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("DB_CONNECT_TIMEOUT", "2s")

	cfg := fromViper(v)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 90*time.Second, cfg.SnapshotCache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 2*time.Second, cfg.Database.ConnectTimeout)
}
