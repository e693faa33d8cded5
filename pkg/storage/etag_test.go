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
	"crypto/md5"
	"testing"

	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETagFromMD5(t *testing.T) {
	sum := md5.Sum([]byte("hello"))
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, ETagFromMD5(sum[:]))
}

func TestNormalizeETag(t *testing.T) {
	assert.Equal(t, `"abc"`, NormalizeETag("abc"))
	assert.Equal(t, `"abc"`, NormalizeETag(`"abc"`))
	assert.Equal(t, "", NormalizeETag(""))
}

func TestCheckPreconditions(t *testing.T) {
	cur := `"5d41402abc4b2a76b9719d911017c592"`

	// no preconditions
	assert.NoError(t, CheckPreconditions(true, cur, "", ""))
	assert.NoError(t, CheckPreconditions(false, "", "", ""))

	// If-Match
	assert.NoError(t, CheckPreconditions(true, cur, cur, ""))
	assert.NoError(t, CheckPreconditions(true, cur, "5d41402abc4b2a76b9719d911017c592", ""))
	assert.NoError(t, CheckPreconditions(true, cur, "*", ""))

	err := CheckPreconditions(true, cur, `"stale"`, "")
	require.Error(t, err)
	var pf errtypes.PreconditionFailed
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, cur, pf.ETag)

	err = CheckPreconditions(false, "", `"anything"`, "")
	require.ErrorAs(t, err, &pf)

	// If-None-Match: only * is meaningful
	assert.NoError(t, CheckPreconditions(false, "", "", "*"))
	err = CheckPreconditions(true, cur, "", "*")
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, cur, pf.ETag)
}
