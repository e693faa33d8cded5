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

// Package lock serializes mutations per endpoint key within one process.
// Contention is rejected, not queued: a second writer on the same key gets
// told to come back later. Cross process serialization is the storage
// driver's generation precondition, not this package.
package lock

import "sync"

// Registry is the set of endpoint keys currently being mutated.
type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{held: map[string]struct{}{}}
}

// TryAcquire claims key. When the key is free it returns a release handle
// and true; the handle must run on every exit path and is safe to call
// more than once. When the key is already held it returns ok == false.
func (r *Registry) TryAcquire(key string) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.held[key]; taken {
		return nil, false
	}
	r.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.held, key)
			r.mu.Unlock()
		})
	}, true
}

// Count returns the number of keys currently held.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
