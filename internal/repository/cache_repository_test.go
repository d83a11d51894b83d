package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

func TestCacheRepositoryDisabledWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Set(ctx, "k", map[string]int{"a": 1}, time.Second))

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Delete(ctx, "k"))
	gen, err := repo.Incr(ctx, "g")
	assert.NoError(t, err)
	assert.Zero(t, gen)
	assert.NoError(t, repo.Close())
}
