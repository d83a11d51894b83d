package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

type mockCacheRepo struct {
	store   map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{store: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.store, key)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}

func (m *mockCacheRepo) Incr(ctx context.Context, key string) (int64, error) {
	var current int64
	if raw, ok := m.store[key]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			return 0, err
		}
	}
	current++
	m.store[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMockCacheRepo()
	svc := NewCacheService(repo, nil, 0, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", map[string]int{"version": 3}, 0))
	assert.Equal(t, 2*time.Second, repo.ttls["k"])

	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out["version"])

	require.NoError(t, svc.Invalidate(ctx, "k"))
	assert.Equal(t, []string{"k"}, repo.deleted)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMockCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.store)
	hit, err := svc.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceGetError(t *testing.T) {
	repo := newMockCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSnapshotGenerations(t *testing.T) {
	repo := newMockCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	generation, err := svc.Generation(ctx, snapshotGenerationKey("c1"))
	require.NoError(t, err)
	assert.Zero(t, generation)

	require.NoError(t, svc.Set(ctx, snapshotCacheKey("c1", 0), map[string]int{"version": 1}, 0))
	require.NoError(t, invalidateSnapshot(ctx, svc, "c1"))

	generation, err = svc.Generation(ctx, snapshotGenerationKey("c1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, generation)
	assert.Equal(t, "tables:snapshot:c1:1", snapshotCacheKey("c1", generation))
	assert.Equal(t, []string{"tables:snapshot:c1:0"}, repo.deleted)
}
