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

package hub

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiahub/hub/pkg/auth/scope"
)

type listReply struct {
	Entries []interface{} `json:"entries"`
	Page    interface{}   `json:"page"`
}

func TestListEmpty(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer, nil, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := listReply{}
	decodeBody(t, w, &resp)
	assert.NotNil(t, resp.Entries)
	assert.Empty(t, resp.Entries)
	assert.Nil(t, resp.Page)
}

func TestListEntries(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	for _, name := range []string{"a.txt", "b/c.txt", "d.txt"} {
		w := serve(s, http.MethodPost, "/store/"+addr+"/"+name, bearer, strings.NewReader("x"), nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer, nil, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := listReply{}
	decodeBody(t, w, &resp)
	assert.Equal(t, []interface{}{"a.txt", "b/c.txt", "d.txt"}, resp.Entries)
	assert.Nil(t, resp.Page)
}

func TestListPagination(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	for i := 0; i < 3; i++ {
		w := serve(s, http.MethodPost, fmt.Sprintf("/store/%s/f%d.txt", addr, i), bearer, strings.NewReader("x"), nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer,
		strings.NewReader(`{"pageSize": 2}`), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	first := listReply{}
	decodeBody(t, w, &first)
	require.Len(t, first.Entries, 2)
	require.NotNil(t, first.Page)
	token, ok := first.Page.(string)
	require.True(t, ok)

	body := fmt.Sprintf(`{"pageSize": 2, "page": %q}`, token)
	w = serve(s, http.MethodPost, "/list-files/"+addr, bearer, strings.NewReader(body), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	second := listReply{}
	decodeBody(t, w, &second)
	require.Len(t, second.Entries, 1)
	assert.Nil(t, second.Page)

	assert.Equal(t, []interface{}{"f0.txt", "f1.txt"}, first.Entries)
	assert.Equal(t, []interface{}{"f2.txt"}, second.Entries)
}

func TestListStat(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	w := serve(s, http.MethodPost, "/store/"+addr+"/f.txt", bearer, strings.NewReader("hello"), nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = serve(s, http.MethodPost, "/list-files/"+addr, bearer,
		strings.NewReader(`{"stat": true}`), nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := struct {
		Entries []listStatEntry `json:"entries"`
	}{}
	decodeBody(t, w, &resp)
	require.Len(t, resp.Entries, 1)
	e := resp.Entries[0]
	assert.Equal(t, "f.txt", e.Name)
	assert.True(t, e.Exists)
	assert.Equal(t, int64(5), e.ContentLength)
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, e.ETag)
	assert.Greater(t, e.LastModifiedDate, int64(0))
}

func TestListBodyLimits(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer,
		strings.NewReader(strings.Repeat(" ", maxJSONBody+1)), nil)
	requireWireError(t, w, http.StatusRequestEntityTooLarge, "PayloadTooLargeError")

	w = serve(s, http.MethodPost, "/list-files/"+addr, bearer, strings.NewReader("{"), nil)
	requireWireError(t, w, http.StatusBadRequest, "InvalidInputError")
}

func TestListSkipsHistoryUnderArchivalScopes(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)

	claims := baseClaims(pubHex)
	claims.Scopes = []scope.Entry{{Scope: scope.PutFileArchivalPrefix, Domain: ""}}
	bearer := bearerFor(t, priv, claims)

	// two writes leave a live object and one historical version
	for _, body := range []string{"v1", "v2"} {
		w := serve(s, http.MethodPost, "/store/"+addr+"/x.txt", bearer, strings.NewReader(body), nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer, nil, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := listReply{}
	decodeBody(t, w, &resp)
	assert.Equal(t, []interface{}{"x.txt"}, resp.Entries)
}

func TestListNullSentinelOnFilteredPage(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)

	claims := baseClaims(pubHex)
	claims.Scopes = []scope.Entry{{Scope: scope.PutFileArchivalPrefix, Domain: ""}}
	bearer := bearerFor(t, priv, claims)

	for _, body := range []string{"v1", "v2"} {
		w := serve(s, http.MethodPost, "/store/"+addr+"/x.txt", bearer, strings.NewReader(body), nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	// the first one-entry page holds only the filtered historical version;
	// the null entry keeps the client paginating
	w := serve(s, http.MethodPost, "/list-files/"+addr, bearer,
		strings.NewReader(`{"pageSize": 1}`), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	first := listReply{}
	decodeBody(t, w, &first)
	require.Len(t, first.Entries, 1)
	assert.Nil(t, first.Entries[0])
	require.NotNil(t, first.Page)

	token := first.Page.(string)
	body := fmt.Sprintf(`{"pageSize": 1, "page": %q}`, token)
	w = serve(s, http.MethodPost, "/list-files/"+addr, bearer, strings.NewReader(body), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	second := listReply{}
	decodeBody(t, w, &second)
	assert.Equal(t, []interface{}{"x.txt"}, second.Entries)
	assert.Nil(t, second.Page)
}
