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

package auth

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestES256KRegistered(t *testing.T) {
	m := jwt.GetSigningMethod(AlgES256K)
	require.NotNil(t, m)
	assert.Equal(t, AlgES256K, m.Alg())
}

func TestES256KRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	sig, err := methodES256K.Sign("header.payload", priv)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	require.NoError(t, methodES256K.Verify("header.payload", sig, priv.PubKey()))
	assert.Error(t, methodES256K.Verify("header.tampered", sig, priv.PubKey()))

	sig[10] ^= 0xff
	assert.Error(t, methodES256K.Verify("header.payload", sig, priv.PubKey()))
}

func TestES256KRejectsForeignKey(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	sig, err := methodES256K.Sign("header.payload", priv)
	require.NoError(t, err)
	assert.Error(t, methodES256K.Verify("header.payload", sig, other.PubKey()))
}

func TestES256KKeyTypes(t *testing.T) {
	_, err := methodES256K.Sign("x", "not a key")
	assert.ErrorIs(t, err, jwt.ErrInvalidKeyType)

	err = methodES256K.Verify("x", make([]byte, 64), []byte("not a key"))
	assert.ErrorIs(t, err, jwt.ErrInvalidKeyType)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	err = methodES256K.Verify("x", []byte("short"), priv.PubKey())
	assert.ErrorIs(t, err, jwt.ErrSignatureInvalid)
}
