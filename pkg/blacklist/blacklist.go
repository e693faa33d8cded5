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

// Package blacklist answers whether an address is blocked for a given kind
// of operation. Block records are managed outside the hub; this package
// only reads them, through a TTL cache shaped like the revocation cache.
package blacklist

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaiahub/hub/pkg/cache"
)

// TTL is the lifetime of a cached blacklist status.
const TTL = 15 * time.Minute

// Blacklist types stored per address.
const (
	// TypeNone means the address is not blocked.
	TypeNone = 0
	// TypeFull blocks every operation.
	TypeFull = 1
	// TypeWrites blocks uploads only.
	TypeWrites = 2
)

// PerformType classifies the operation being checked.
type PerformType string

// The operations subject to blacklist checks.
const (
	PerformPut     PerformType = "PUT"
	PerformDelete  PerformType = "DELETE"
	PerformList    PerformType = "LIST"
	PerformPerform PerformType = "PERFORM"
)

// Backend is the slice of the storage driver the cache reads through to.
type Backend interface {
	ReadBlacklistStatus(ctx context.Context, address string) (int, error)
}

// Cache is the read-through blacklist cache.
type Cache struct {
	backend Backend
	cache   *cache.Tracked
}

// New builds a Cache holding at most size entries.
func New(backend Backend, size int, log *zerolog.Logger) *Cache {
	return &Cache{
		backend: backend,
		cache:   cache.New("blacklist", size, TTL, log),
	}
}

// Status returns the blacklist type recorded for address, TypeNone when
// no record exists.
func (c *Cache) Status(ctx context.Context, address string) (int, error) {
	if v, ok := c.cache.Get(address); ok {
		return v.(int), nil
	}
	status, err := c.backend.ReadBlacklistStatus(ctx, address)
	if err != nil {
		return 0, err
	}
	c.cache.Set(address, status)
	return status, nil
}

// IsBlacklisted reports whether address may not perform op.
func (c *Cache) IsBlacklisted(ctx context.Context, address string, op PerformType) (bool, error) {
	status, err := c.Status(ctx, address)
	if err != nil {
		return false, err
	}
	switch status {
	case TypeNone:
		return false, nil
	case TypeFull:
		return true, nil
	case TypeWrites:
		return op == PerformPut, nil
	default:
		return false, nil
	}
}

// Evictions returns the number of entries dropped under size pressure.
func (c *Cache) Evictions() uint64 {
	return c.cache.Evictions()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.cache.Close()
}
