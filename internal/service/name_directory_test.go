package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"

	"namecache/internal/database"
	"namecache/internal/models"
)

// 需要真实 MySQL：NAMECACHE_TEST_MYSQL_DSN=user:pass@tcp(127.0.0.1:3306)/namecache_test?parseTime=True
func TestNameDirectoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("NAMECACHE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("NAMECACHE_TEST_MYSQL_DSN not set")
	}

	db, err := database.OpenDialector(mysql.Open(dsn), database.Config{})
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.AutoMigrate(db))

	ctx := context.Background()
	dir := NewNameDirectory(db)
	require.NoError(t, dir.Remove(ctx))

	now := time.Now().UTC().Truncate(time.Second)
	records := []models.NameRecord{
		models.NewLegacyRecord(uuid.New(), "Ann", "Resident", now),
		{
			ID:          uuid.New(),
			DisplayName: "Jo Doe",
			UserName:    "jo.doe",
			Updated:     now,
			NextUpdate:  now.Add(time.Hour),
		},
	}
	require.NoError(t, dir.Save(ctx, records))
	require.NoError(t, dir.Save(ctx, records[:1]))

	loaded, err := dir.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, records[0].ID, loaded[0].ID)
	assert.Equal(t, "ann", loaded[0].UserName)

	require.NoError(t, dir.Remove(ctx))
	loaded, err = dir.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
