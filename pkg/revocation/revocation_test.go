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

package revocation

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu     sync.Mutex
	floors map[string]int64
	reads  int
	writes int
	fail   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{floors: map[string]int64{}}
}

func (f *fakeBackend) ReadAuthTimestamp(_ context.Context, addr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail != nil {
		return 0, f.fail
	}
	return f.floors[addr], nil
}

func (f *fakeBackend) WriteAuthTimestamp(_ context.Context, addr string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.fail != nil {
		return f.fail
	}
	if ts > f.floors[addr] {
		f.floors[addr] = ts
	}
	return nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestGetReadsThrough(t *testing.T) {
	backend := newFakeBackend()
	backend.floors["addr"] = 1500
	c := New(backend, 10, testLogger())
	defer func() { _ = c.Close() }()

	ts, err := c.Get(context.Background(), "addr")
	require.NoError(t, err)
	assert.EqualValues(t, 1500, ts)
	assert.Equal(t, 1, backend.reads)

	// second read is served from the cache
	ts, err = c.Get(context.Background(), "addr")
	require.NoError(t, err)
	assert.EqualValues(t, 1500, ts)
	assert.Equal(t, 1, backend.reads)
}

func TestGetDefaultsToZero(t *testing.T) {
	c := New(newFakeBackend(), 10, testLogger())
	defer func() { _ = c.Close() }()

	ts, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, ts)
}

func TestSetWritesThrough(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, 10, testLogger())
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set(context.Background(), "addr", 2000))
	assert.EqualValues(t, 2000, backend.floors["addr"])

	ts, err := c.Get(context.Background(), "addr")
	require.NoError(t, err)
	assert.EqualValues(t, 2000, ts)
	assert.Equal(t, 0, backend.reads, "write-through must prime the cache")
}

func TestSetIsMonotonic(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, 10, testLogger())
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	for _, ts := range []int64{100, 900, 400, 900, 200} {
		require.NoError(t, c.Set(ctx, "addr", ts))
	}

	got, err := c.Get(ctx, "addr")
	require.NoError(t, err)
	assert.EqualValues(t, 900, got, "floor must never regress")
	assert.EqualValues(t, 900, backend.floors["addr"])
}

func TestSetSkipsWhenCacheIsAhead(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, 10, testLogger())
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "addr", 500))
	writes := backend.writes

	require.NoError(t, c.Set(ctx, "addr", 300))
	assert.Equal(t, writes, backend.writes, "stale floor must not reach the driver")
}

func TestErrorsPropagate(t *testing.T) {
	backend := newFakeBackend()
	backend.fail = errors.New("driver down")
	c := New(backend, 10, testLogger())
	defer func() { _ = c.Close() }()

	_, err := c.Get(context.Background(), "addr")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "addr", 1))
}

func TestConcurrentSetsConverge(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend, 100, testLogger())
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			_ = c.Set(ctx, "addr", ts)
		}(i)
	}
	wg.Wait()

	got, err := c.Get(ctx, "addr")
	require.NoError(t, err)
	assert.EqualValues(t, 50, got)
}
