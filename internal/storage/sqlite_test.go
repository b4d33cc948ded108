package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-resolver/internal/models"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "food-resolver-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func sampleEntry(key string, at time.Time) models.CacheEntry {
	score := 0.9
	return models.CacheEntry{
		Key: key,
		Result: models.ResolutionResult{
			Success:    true,
			SourceName: "OpenFoodFacts",
			TrustScore: &score,
			Record: &models.FoodRecord{
				ProductName:      "Oat Crunch",
				Brand:            "Acme",
				Ingredients:      []string{"oats", "sugar"},
				ServingSizeGrams: 40,
				Nutrition: models.Nutrition{
					TotalCarbsGrams: models.Grams(27),
					FiberGrams:      models.Grams(3),
					SugarsGrams:     models.Grams(9),
				},
			},
		},
		ResolvedAt: at.UTC().Truncate(time.Millisecond),
	}
}

func TestSQLiteStoragePutLoadClear(t *testing.T) {
	dir := tempDir(t)
	s, err := NewSQLiteStorage(filepath.Join(dir, "nested", "cache.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, sampleEntry("12345678", now)))
	require.NoError(t, s.Put(ctx, sampleEntry("oat crunch", now)))

	entries, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := map[string]models.CacheEntry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	got := byKey["12345678"]
	want := sampleEntry("12345678", now)
	assert.Equal(t, want.ResolvedAt, got.ResolvedAt)
	assert.Equal(t, want.Result, got.Result)

	require.NoError(t, s.Delete(ctx, "oat crunch"))
	entries, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Clear(ctx))
	entries, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteStorageKeepsNewerEntry(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(tempDir(t), "cache.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	newer := sampleEntry("12345678", now)
	older := sampleEntry("12345678", now.Add(-time.Hour))
	older.Result.SourceName = "Local"

	require.NoError(t, s.Put(ctx, newer))
	require.NoError(t, s.Put(ctx, older))

	entries, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "OpenFoodFacts", entries[0].Result.SourceName)
}

func TestSQLiteStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(tempDir(t), "cache.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), sampleEntry("12345678", time.Now())))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteStorageSkipsUndecodableRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS cache_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLiteStorageWithDB(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"key", "result", "resolved_at_ms"}).
		AddRow("broken", "{not json", int64(1)).
		AddRow("12345678", `{"success":true,"source_name":"Local","incomplete":false}`, int64(1700000000000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, result, resolved_at_ms FROM cache_entries")).
		WillReturnRows(rows)

	entries, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678", entries[0].Key)
	assert.Equal(t, int64(1700000000000), entries[0].ResolvedAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorageWrapsWriteErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS cache_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLiteStorageWithDB(db)
	require.NoError(t, err)

	diskErr := errors.New("disk I/O error")
	entry := sampleEntry("12345678", time.Now())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cache_entries")).
		WithArgs("12345678", sqlmock.AnyArg(), entry.ResolvedAt.UnixMilli()).
		WillReturnError(diskErr)

	err = s.Put(context.Background(), entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, diskErr)
	assert.Contains(t, err.Error(), "failed to upsert cache entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorageSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnError(errors.New("read-only database"))
	_, err = NewSQLiteStorageWithDB(db)
	assert.ErrorContains(t, err, "failed to initialize schema")
}

func TestMemoryStorageKeepsNewerEntry(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Put(ctx, sampleEntry("k", now)))
	stale := sampleEntry("k", now.Add(-time.Minute))
	stale.Result.SourceName = "Local"
	require.NoError(t, m.Put(ctx, stale))

	entries, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "OpenFoodFacts", entries[0].Result.SourceName)

	require.NoError(t, m.Clear(ctx))
	entries, _ = m.LoadAll(ctx)
	assert.Empty(t, entries)
}
