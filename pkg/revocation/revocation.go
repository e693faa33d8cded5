// Copyright 2018-2026 Gaia Hub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package revocation maintains the per bucket revocation floor, the oldest
// issued-at a token may carry, behind a write-through TTL cache. The floor
// only ever moves forward: the driver enforces max-wins inside its
// transaction and the cache re-checks itself around every driver call so
// a stale value cannot clobber a fresher one.
package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaiahub/hub/pkg/cache"
)

// TTL is the lifetime of a cached revocation floor.
const TTL = 15 * time.Minute

// Backend is the slice of the storage driver the cache reads through to.
type Backend interface {
	ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error)
	WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error
}

// Cache is the write-through revocation floor cache.
type Cache struct {
	backend Backend
	cache   *cache.Tracked

	// mu makes the re-check plus store of a floor atomic; without it two
	// interleaved callers could leave a stale floor in the cache.
	mu sync.Mutex
}

// New builds a Cache holding at most size entries.
func New(backend Backend, size int, log *zerolog.Logger) *Cache {
	return &Cache{
		backend: backend,
		cache:   cache.New("auth_timestamp", size, TTL, log),
	}
}

// Get returns the revocation floor for bucketAddress, zero when the bucket
// never revoked. After a driver read the cache is consulted again: a
// concurrent Set may have landed a fresher floor while the read was in
// flight, and the larger value wins.
func (c *Cache) Get(ctx context.Context, bucketAddress string) (int64, error) {
	if v, ok := c.cache.Get(bucketAddress); ok {
		return v.(int64), nil
	}
	ts, err := c.backend.ReadAuthTimestamp(ctx, bucketAddress)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	if v, ok := c.cache.Get(bucketAddress); ok {
		if cached := v.(int64); cached > ts {
			ts = cached
		}
	}
	c.cache.Set(bucketAddress, ts)
	c.mu.Unlock()
	return ts, nil
}

// Set advances the revocation floor for bucketAddress to timestamp. A
// strictly larger cached floor makes the call a no-op; otherwise the driver
// performs its monotonic upsert and the cache follows unless a concurrent
// caller advanced it further in the meantime.
func (c *Cache) Set(ctx context.Context, bucketAddress string, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(bucketAddress); ok && v.(int64) > timestamp {
		return nil
	}
	if err := c.backend.WriteAuthTimestamp(ctx, bucketAddress, timestamp); err != nil {
		return err
	}
	if v, ok := c.cache.Get(bucketAddress); ok && v.(int64) > timestamp {
		return nil
	}
	c.cache.Set(bucketAddress, timestamp)
	return nil
}

// Evictions returns the number of entries dropped under size pressure.
func (c *Cache) Evictions() uint64 {
	return c.cache.Evictions()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.cache.Close()
}
