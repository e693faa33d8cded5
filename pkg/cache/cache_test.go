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

package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracked(t *testing.T, size int, ttl time.Duration) *Tracked {
	t.Helper()
	log := zerolog.Nop()
	c := New("test", size, ttl, &log)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetSet(t *testing.T) {
	c := newTracked(t, 10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", 42)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	c.Set("k", 43)
	v, _ = c.Get("k")
	assert.Equal(t, 43, v)
}

func TestExpiry(t *testing.T) {
	c := newTracked(t, 10, 30*time.Millisecond)

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entries must expire after the ttl")
}

func TestSizeEvictionsCounted(t *testing.T) {
	c := newTracked(t, 2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Eventually(t, func() bool {
		return c.Evictions() == 1
	}, time.Second, 10*time.Millisecond)
}
