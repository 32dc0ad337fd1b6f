// Package cache keeps recently decoded levels keyed by path and content
// hash, so reloading an unchanged file skips decoding.
package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/dyuri/lvltool/internal/model"
)

// LoadFunc decodes level data on a cache miss
type LoadFunc func(data []byte) (*model.Map, error)

// Cache holds decoded maps. Cost is measured in bytes.
type Cache struct {
	maps *ristretto.Cache[uint64, *model.Map]
}

// New creates a cache bounded to roughly maxCostMB megabytes of decoded maps
func New(maxCostMB int64) (*Cache, error) {
	if maxCostMB <= 0 {
		maxCostMB = 64
	}
	maps, err := ristretto.NewCache(&ristretto.Config[uint64, *model.Map]{
		NumCounters: 1000,
		MaxCost:     maxCostMB * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create map cache: %w", err)
	}
	return &Cache{maps: maps}, nil
}

// Key hashes a path together with the file contents
func Key(path string, data []byte) uint64 {
	d := xxhash.New()
	d.WriteString(path)
	d.Write([]byte{0})
	d.Write(data)
	return d.Sum64()
}

// Load returns the cached map for (path, data), decoding it with load
// on a miss. hit reports whether decoding was skipped.
func (c *Cache) Load(path string, data []byte, load LoadFunc) (m *model.Map, hit bool, err error) {
	key := Key(path, data)
	if m, ok := c.maps.Get(key); ok {
		return m, true, nil
	}

	m, err = load(data)
	if err != nil {
		return nil, false, err
	}
	c.maps.Set(key, m, int64(model.GridCells+len(data)))
	c.maps.Wait()
	return m, false, nil
}

// Close stops the cache's background goroutines
func (c *Cache) Close() {
	c.maps.Close()
}
