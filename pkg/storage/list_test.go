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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 100, ClampPageSize(0, 100))
	assert.Equal(t, 100, ClampPageSize(-3, 100))
	assert.Equal(t, 100, ClampPageSize(500, 100))
	assert.Equal(t, 7, ClampPageSize(7, 100))
}

func TestPaginate(t *testing.T) {
	keys := []string{"c", "a", "b", "e", "d"}

	page1, tok := Paginate(keys, "", 2)
	assert.Equal(t, []string{"a", "b"}, page1)
	assert.Equal(t, "b", tok)

	page2, tok := Paginate(keys, tok, 2)
	assert.Equal(t, []string{"c", "d"}, page2)
	assert.Equal(t, "d", tok)

	page3, tok := Paginate(keys, tok, 2)
	assert.Equal(t, []string{"e"}, page3)
	assert.Empty(t, tok)
}

func TestPaginateDeletedToken(t *testing.T) {
	// A token whose key has since been deleted still resumes after it.
	keys := []string{"a", "c", "d"}
	page, tok := Paginate(keys, "b", 2)
	assert.Equal(t, []string{"c", "d"}, page)
	assert.Empty(t, tok)
}
