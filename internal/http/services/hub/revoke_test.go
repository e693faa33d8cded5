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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokeFlow(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)

	oldClaims := baseClaims(pubHex)
	oldClaims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	oldBearer := bearerFor(t, priv, oldClaims)

	w := serve(s, http.MethodPost, "/store/"+addr+"/f.txt", oldBearer, strings.NewReader("x"), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	floor := time.Now().Unix()
	body := fmt.Sprintf(`{"oldestValidTimestamp": %d}`, floor)
	w = serve(s, http.MethodPost, "/revoke-all/"+addr, oldBearer, strings.NewReader(body), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())

	// the revoked token is now rejected with the floor it has to beat
	w = serve(s, http.MethodPost, "/store/"+addr+"/f.txt", oldBearer, strings.NewReader("y"), nil)
	e := requireWireError(t, w, http.StatusUnauthorized, "AuthTokenTimestampValidationError")
	assert.Equal(t, floor, e.OldestValidTokenTimestamp)

	// a token minted after the floor gets through
	newClaims := baseClaims(pubHex)
	newClaims.IssuedAt = jwt.NewNumericDate(time.Now().Add(10 * time.Second))
	newBearer := bearerFor(t, priv, newClaims)
	w = serve(s, http.MethodPost, "/store/"+addr+"/f.txt", newBearer, strings.NewReader("y"), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestRevokeSkipsOwnFloor(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)

	claims := baseClaims(pubHex)
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	bearer := bearerFor(t, priv, claims)

	floor := time.Now().Unix()
	body := fmt.Sprintf(`{"oldestValidTimestamp": %d}`, floor)
	w := serve(s, http.MethodPost, "/revoke-all/"+addr, bearer, strings.NewReader(body), nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	// the same pre-floor token may keep raising the floor
	body = fmt.Sprintf(`{"oldestValidTimestamp": %d}`, floor+1)
	w = serve(s, http.MethodPost, "/revoke-all/"+addr, bearer, strings.NewReader(body), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestRevokeValidation(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, addr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	for _, body := range []string{``, `{}`, `{"oldestValidTimestamp": 0}`, `{"oldestValidTimestamp": -5}`} {
		w := serve(s, http.MethodPost, "/revoke-all/"+addr, bearer, strings.NewReader(body), nil)
		requireWireError(t, w, http.StatusBadRequest, "InvalidInputError")
	}

	w := serve(s, http.MethodPost, "/revoke-all/"+addr, bearer, strings.NewReader("{"), nil)
	requireWireError(t, w, http.StatusBadRequest, "InvalidInputError")

	w = serve(s, http.MethodPost, "/revoke-all/"+addr, bearer,
		strings.NewReader(strings.Repeat(" ", maxJSONBody+1)), nil)
	requireWireError(t, w, http.StatusRequestEntityTooLarge, "PayloadTooLargeError")
}

func TestRevokeRequiresMatchingToken(t *testing.T) {
	s := newTestService(t, nil)
	priv, pubHex, _ := newTestKey(t)
	_, _, otherAddr := newTestKey(t)
	bearer := bearerFor(t, priv, baseClaims(pubHex))

	w := serve(s, http.MethodPost, "/revoke-all/"+otherAddr, bearer,
		strings.NewReader(`{"oldestValidTimestamp": 1}`), nil)
	requireWireError(t, w, http.StatusUnauthorized, "ValidationError")

	w = serve(s, http.MethodPost, "/revoke-all/"+otherAddr, "",
		strings.NewReader(`{"oldestValidTimestamp": 1}`), nil)
	requireWireError(t, w, http.StatusUnauthorized, "ValidationError")
}
