package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namecache/internal/models"
)

type failingBackend struct{}

func (failingBackend) Load(context.Context) ([]models.NameRecord, error) {
	return nil, errors.New("disk on fire")
}
func (failingBackend) Save(context.Context, []models.NameRecord) error { return errors.New("disk on fire") }
func (failingBackend) Remove(context.Context) error                    { return nil }

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "name.cache")
	backend := NewFileBackend(path)

	now := time.Now().UTC().Truncate(time.Second)
	records := []models.NameRecord{
		displayRecord(uuid.New(), "Jo Doe", "jo.doe", now),
		models.NewLegacyRecord(uuid.New(), "Ann", "Resident", now),
	}
	require.NoError(t, backend.Save(ctx, records))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i := range records {
		assert.Equal(t, records[i].ID, loaded[i].ID)
		assert.Equal(t, records[i].DisplayName, loaded[i].DisplayName)
		assert.Equal(t, records[i].UserName, loaded[i].UserName)
		assert.Equal(t, records[i].IsDefaultDisplayName, loaded[i].IsDefaultDisplayName)
		assert.True(t, records[i].Updated.Equal(loaded[i].Updated))
		assert.Equal(t, records[i].IsLegacyOnly(), loaded[i].IsLegacyOnly())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileBackendDocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.cache")
	backend := NewFileBackend(path)
	require.NoError(t, backend.Save(context.Background(), []models.NameRecord{
		displayRecord(uuid.New(), "Jo Doe", "jo.doe", time.Now()),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, field := range []string{`"names"`, `"ID"`, `"LegacyFirstName"`, `"LegacyLastName"`,
		`"DisplayName"`, `"UserName"`, `"IsDefaultDisplayName"`, `"Updated"`, `"NextUpdate"`} {
		assert.Contains(t, string(data), field)
	}
}

func TestFileBackendMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "name.cache")
	backend := NewFileBackend(path)

	records, err := backend.Load(ctx)
	assert.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = backend.Load(ctx)
	assert.Error(t, err)

	cache := NewPersistentCache(backend, 48*time.Hour)
	assert.Empty(t, cache.Load(ctx, models.ModeSmart))

	require.NoError(t, backend.Remove(ctx))
	require.NoError(t, backend.Remove(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPersistentCacheAgeFilter(t *testing.T) {
	ctx := context.Background()
	backend := NewFileBackend(filepath.Join(t.TempDir(), "name.cache"))
	now := time.Now().UTC()

	fresh := displayRecord(uuid.New(), "Fresh", "fresh", now.Add(-time.Hour))
	stale := displayRecord(uuid.New(), "Stale", "stale", now.Add(-49*time.Hour))
	require.NoError(t, backend.Save(ctx, []models.NameRecord{fresh, stale}))

	cache := NewPersistentCache(backend, 48*time.Hour)
	cache.now = func() time.Time { return now }

	smart := cache.Load(ctx, models.ModeSmart)
	require.Len(t, smart, 1)
	assert.Equal(t, fresh.ID, smart[0].ID)

	standard := cache.Load(ctx, models.ModeStandard)
	assert.Len(t, standard, 2)
}

func TestPersistentCacheFailuresDegrade(t *testing.T) {
	cache := NewPersistentCache(failingBackend{}, time.Hour)
	assert.Empty(t, cache.Load(context.Background(), models.ModeSmart))
	assert.Error(t, cache.Save(context.Background(), nil))

	var none *PersistentCache
	assert.Nil(t, none.Load(context.Background(), models.ModeSmart))
	assert.ErrorIs(t, none.Save(context.Background(), nil), ErrNoBackend)
	assert.NoError(t, none.Remove(context.Background()))
}
