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

// Package cache provides the bounded TTL container backing the revocation
// and blacklist caches. Entries expire on an absolute TTL, hits do not
// extend lifetimes, and size evictions are counted so operators can spot an
// undersized cache.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// reportInterval is how often accumulated size evictions are logged.
const reportInterval = 10 * time.Minute

var evictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hub",
	Name:      "cache_evictions_total",
	Help:      "Cache entries dropped under size pressure, by cache.",
}, []string{"cache"})

// Tracked is a TTL+LRU cache with an eviction counter.
type Tracked struct {
	name  string
	cache *ttlcache.Cache
	log   *zerolog.Logger

	window atomic.Uint64
	total  atomic.Uint64
	done   chan struct{}
}

// New builds a Tracked cache holding at most size entries for at most ttl.
func New(name string, size int, ttl time.Duration, log *zerolog.Logger) *Tracked {
	c := ttlcache.NewCache()
	_ = c.SetTTL(ttl)
	c.SetCacheSizeLimit(size)
	c.SkipTTLExtensionOnHit(true)

	t := &Tracked{
		name:  name,
		cache: c,
		log:   log,
		done:  make(chan struct{}),
	}
	c.SetExpirationReasonCallback(func(key string, reason ttlcache.EvictionReason, _ interface{}) {
		if reason == ttlcache.EvictedSize {
			t.window.Add(1)
			t.total.Add(1)
			evictions.WithLabelValues(t.name).Inc()
		}
	})
	go t.reportLoop()
	return t
}

// Get returns the cached value for key if present and fresh.
func (t *Tracked) Get(key string) (interface{}, bool) {
	v, err := t.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Set stores value under key with the cache TTL.
func (t *Tracked) Set(key string, value interface{}) {
	_ = t.cache.Set(key, value)
}

// Evictions returns the total number of size evictions since construction.
func (t *Tracked) Evictions() uint64 {
	return t.total.Load()
}

// Close stops the eviction reporter and releases the container.
func (t *Tracked) Close() error {
	close(t.done)
	return t.cache.Close()
}

func (t *Tracked) reportLoop() {
	tick := time.NewTicker(reportInterval)
	defer tick.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-tick.C:
			if n := t.window.Swap(0); n > 0 {
				t.log.Warn().
					Str("cache", t.name).
					Uint64("evictions", n).
					Msg("cache evicted entries under size pressure, consider a larger cache size")
			}
		}
	}
}
