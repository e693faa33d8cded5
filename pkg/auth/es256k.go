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
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/golang-jwt/jwt/v5"
)

// AlgES256K is the JOSE algorithm name for ECDSA over secp256k1 with SHA-256.
const AlgES256K = "ES256K"

// SigningMethodES256K implements ECDSA on the secp256k1 curve with SHA-256
// digests, the algorithm storage clients sign their tokens with. Signatures
// are the JOSE form, the raw 64 byte R || S concatenation. Expects
// *secp256k1.PublicKey for verification and *secp256k1.PrivateKey for
// signing.
type SigningMethodES256K struct{}

var methodES256K = &SigningMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(AlgES256K, func() jwt.SigningMethod {
		return methodES256K
	})
}

// Alg implements the jwt.SigningMethod interface.
func (m *SigningMethodES256K) Alg() string { return AlgES256K }

// Verify implements the jwt.SigningMethod interface.
func (m *SigningMethodES256K) Verify(signingString string, sig []byte, key interface{}) error {
	pub, ok := key.(*secp256k1.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(sig) != 64 {
		return jwt.ErrSignatureInvalid
	}

	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
		// component overflows the group order
		return jwt.ErrSignatureInvalid
	}

	digest := sha256.Sum256([]byte(signingString))
	if !secpecdsa.NewSignature(&r, &s).Verify(digest[:], pub) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// Sign implements the jwt.SigningMethod interface.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	priv, ok := key.(*secp256k1.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}

	digest := sha256.Sum256([]byte(signingString))
	sig := secpecdsa.Sign(priv, digest[:])
	r := sig.R()
	s := sig.S()
	rb := r.Bytes()
	sb := s.Bytes()

	out := make([]byte, 0, 64)
	out = append(out, rb[:]...)
	out = append(out, sb[:]...)
	return out, nil
}
