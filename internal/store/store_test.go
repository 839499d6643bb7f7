package store

import (
	"context"
	"os"
	"testing"

	"cdi-map/internal/migrate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore：需要 STATS_TEST_DSN 指向可写的 PostgreSQL，未配置时跳过
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STATS_TEST_DSN")
	if dsn == "" {
		t.Skip("STATS_TEST_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, migrate.EnsureSchema(s.DB()))
	_, err = s.DB().Exec(`DELETE FROM _region_views_daily WHERE slug LIKE 'test-%'`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`DELETE FROM _region_views_total WHERE slug LIKE 'test-%'`)
	require.NoError(t, err)
	return s
}

func TestIncrRegionViewRejectsEmptySlug(t *testing.T) {
	s := AttachDB(nil)
	assert.ErrorIs(t, s.IncrRegionView(context.Background(), ""), ErrEmptySlug)
}

func TestRegionTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.IncrRegionView(ctx, "test-rome"))
	require.NoError(t, s.IncrRegionView(ctx, "test-rome"))
	require.NoError(t, s.IncrRegionView(ctx, "test-milan"))

	got, err := s.RegionTotals(ctx)
	require.NoError(t, err)
	bySlug := map[string]RegionTotals{}
	for _, r := range got {
		bySlug[r.Slug] = r
	}
	assert.Equal(t, int64(2), bySlug["test-rome"].Total)
	assert.Equal(t, int64(2), bySlug["test-rome"].Today)
	assert.Equal(t, int64(1), bySlug["test-milan"].Total)
}
