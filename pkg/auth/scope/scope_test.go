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

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiahub/hub/pkg/errtypes"
)

func TestValidateEntries(t *testing.T) {
	require.NoError(t, ValidateEntries(nil))
	require.NoError(t, ValidateEntries([]Entry{
		{Scope: PutFile, Domain: "a.txt"},
		{Scope: PutFilePrefix, Domain: "notes/"},
	}))

	err := ValidateEntries([]Entry{{Scope: "readFile", Domain: "a"}})
	require.Error(t, err)
	_, ok := err.(errtypes.IsValidation)
	assert.True(t, ok)

	nine := make([]Entry, 9)
	for i := range nine {
		nine[i] = Entry{Scope: PutFile, Domain: "a"}
	}
	assert.Error(t, ValidateEntries(nine))
}

func TestParsePartitions(t *testing.T) {
	s, err := Parse([]Entry{
		{Scope: PutFile, Domain: "index.html"},
		{Scope: PutFilePrefix, Domain: "pub/"},
		{Scope: DeleteFile, Domain: "tmp.bin"},
		{Scope: DeleteFilePrefix, Domain: "tmp/"},
		{Scope: PutFileArchival, Domain: "log.txt"},
		{Scope: PutFileArchivalPrefix, Domain: "photos/"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, s.WritePaths)
	assert.Equal(t, []string{"pub/"}, s.WritePrefixes)
	assert.Equal(t, []string{"tmp.bin"}, s.DeletePaths)
	assert.Equal(t, []string{"tmp/"}, s.DeletePrefixes)
	assert.Equal(t, []string{"log.txt"}, s.WriteArchivalPaths)
	assert.Equal(t, []string{"photos/"}, s.WriteArchivalPrefixes)
	assert.True(t, s.ArchivalRestricted())
}

func TestAuthorizeWrite(t *testing.T) {
	empty := &Set{}
	require.NoError(t, empty.AuthorizeWrite("anything/goes.txt"), "empty write scopes allow any path")

	s := &Set{WritePaths: []string{"index.html"}, WritePrefixes: []string{"pub/"}}
	require.NoError(t, s.AuthorizeWrite("index.html"))
	require.NoError(t, s.AuthorizeWrite("pub/img.png"))

	err := s.AuthorizeWrite("private/secret.txt")
	require.Error(t, err)
	_, ok := err.(errtypes.IsValidation)
	assert.True(t, ok)
}

func TestAuthorizeWriteArchival(t *testing.T) {
	s := &Set{WriteArchivalPrefixes: []string{"photos/"}}
	require.True(t, s.ArchivalRestricted())
	require.NoError(t, s.AuthorizeWrite("photos/x.jpg"))

	err := s.AuthorizeWrite("notes/a.txt")
	require.Error(t, err, "archival restriction confines writes to archival grants")
	_, ok := err.(errtypes.IsValidation)
	assert.True(t, ok)

	// the restriction applies to deletes as well
	err = s.AuthorizeDelete("notes/a.txt")
	require.Error(t, err)
}

func TestAuthorizeDelete(t *testing.T) {
	s := &Set{DeletePrefixes: []string{"tmp/"}}
	require.NoError(t, s.AuthorizeDelete("tmp/scratch.bin"))
	assert.Error(t, s.AuthorizeDelete("keep/file.txt"))
}

func TestCheckPath(t *testing.T) {
	require.NoError(t, CheckPath("a/b/c.txt"))

	for _, p := range []string{"../etc/passwd", "x/../y", "trailing.."} {
		err := CheckPath(p)
		require.Error(t, err, p)
		_, ok := err.(errtypes.IsBadPath)
		assert.True(t, ok, p)
	}
}
