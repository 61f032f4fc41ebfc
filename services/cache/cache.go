package cache

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache: miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// GetJSON decodes the cached value for key into dest. It reports false on a miss.
func GetJSON(c CacheService, key string, dest interface{}) (bool, error) {
	data, err := c.Get(key)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value encoded as JSON
func SetJSON(c CacheService, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(key, data, expiration)
}

// ActiveDealsVersionKey holds the current version of the cached deal list.
// Lists are cached under a per-version key, so a list loaded before a sync
// can only land under the version it read and is never served afterwards.
const ActiveDealsVersionKey = "deals:active:version"

var versionSeq atomic.Uint64

// ActiveDealsKey returns the key the active deal list of a version is cached under
func ActiveDealsKey(version string) string {
	return "deals:active:" + version
}

// ActiveDealsVersion returns the current deal list version, starting one if absent
func ActiveDealsVersion(c CacheService) (string, error) {
	data, err := c.Get(ActiveDealsVersionKey)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return "", err
	}
	return BumpActiveDeals(c)
}

// BumpActiveDeals starts a new deal list version
func BumpActiveDeals(c CacheService) (string, error) {
	version := strconv.FormatInt(time.Now().UnixNano(), 36) + "." + strconv.FormatUint(versionSeq.Add(1), 36)
	if err := c.Set(ActiveDealsVersionKey, []byte(version), 0); err != nil {
		return "", err
	}
	return version, nil
}
