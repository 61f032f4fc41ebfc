package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "sjsage522/keebsteals/pkg/errors"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("test_key", []byte("test_value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	err = mc.Delete("test_key")
	assert.NoError(t, err)

	_, err = mc.Get("test_key")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// deleting twice is fine
	assert.NoError(t, mc.Delete("test_key"))
}

func TestMemcacheUnreachableServerReturnsCacheError(t *testing.T) {
	mc := NewMemcacheService("127.0.0.1:1")

	_, err := mc.Get("deals")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrorTypeCache))

	err = mc.Set("deals", []byte("[]"), time.Minute)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrorTypeCache))

	err = mc.Delete("deals")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrorTypeCache))
}
