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

package storage

import "sort"

// ClampPageSize bounds a client-requested page size to [1, configured],
// defaulting to configured when the request carries none.
func ClampPageSize(requested, configured int) int {
	if requested <= 0 || requested > configured {
		return configured
	}
	return requested
}

// Paginate sorts keys and returns the page that follows the opaque
// continuation token. The returned token is the last key of the page,
// empty when the listing is exhausted. Drivers without a native cursor
// build their listings on this.
func Paginate(keys []string, page string, size int) ([]string, string) {
	sort.Strings(keys)
	if page != "" {
		i := sort.SearchStrings(keys, page)
		if i < len(keys) && keys[i] == page {
			i++
		}
		keys = keys[i:]
	}
	if size > 0 && len(keys) > size {
		keys = keys[:size]
		return keys, keys[len(keys)-1]
	}
	return keys, ""
}
