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
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoricalName(t *testing.T) {
	before := time.Now().UnixMilli()
	got := HistoricalName("photos/x.jpg")
	after := time.Now().UnixMilli()

	assert.True(t, strings.HasPrefix(got, "photos/.history."), got)
	assert.True(t, strings.HasSuffix(got, ".x.jpg"), got)
	assert.True(t, IsHistorical(got), got)

	// photos/.history.<millis>.<rand>.x.jpg
	parts := strings.Split(got, ".")
	require.Len(t, parts, 6)
	millis, err := strconv.ParseInt(parts[2], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, millis, before)
	assert.LessOrEqual(t, millis, after)
	assert.Len(t, parts[3], 10)
}

func TestHistoricalNameTopLevel(t *testing.T) {
	got := HistoricalName("avatar.png")
	assert.True(t, strings.HasPrefix(got, ".history."), got)
	assert.True(t, strings.HasSuffix(got, ".avatar.png"), got)
	assert.True(t, IsHistorical(got))
}

func TestHistoricalNamesDiffer(t *testing.T) {
	a := HistoricalName("a/b.txt")
	b := HistoricalName("a/b.txt")
	assert.NotEqual(t, a, b)
}

func TestIsHistorical(t *testing.T) {
	tests := map[string]bool{
		"photos/.history.123.abcDEF0123.x.jpg": true,
		".history.123.abcDEF0123.x.jpg":        true,
		"photos/x.jpg":                         false,
		"photos/history.x.jpg":                 false,
		".history/x.jpg":                       false,
		"a/.history.b/c.jpg":                   false,
	}
	for path, want := range tests {
		assert.Equal(t, want, IsHistorical(path), path)
	}
}

func TestAuthTimestampPath(t *testing.T) {
	assert.Equal(t, "1Addr-auth/timestamp", AuthTimestampPath("1Addr"))
}

func TestBlacklistPath(t *testing.T) {
	assert.Equal(t, "hub-blacklist/1Addr", BlacklistPath("1Addr"))
}
