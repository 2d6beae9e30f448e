package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"unera/internal/config"
	"unera/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateAndConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, table := range []any{&models.User{}, &models.Follow{}, &models.Post{}, &models.Reaction{}, &models.Comment{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}

	require.NoError(t, configurePool(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "feed"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=feed sslmode=disable", DSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is not an error worth logging")

	l.Trace(ctx, time.Now(), query, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "GORM query error")
	buf.Reset()

	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	assert.Contains(t, buf.String(), "GORM slow query")
	buf.Reset()

	l.Trace(ctx, time.Now(), query, nil)
	assert.Empty(t, buf.String(), "fast queries are only logged at info level")

	l.LogMode(logger.Info).Trace(ctx, time.Now(), query, nil)
	assert.Contains(t, buf.String(), "GORM query")
	buf.Reset()

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), query, errors.New("ignored"))
	assert.Empty(t, buf.String())
}
