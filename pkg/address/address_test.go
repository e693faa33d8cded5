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

package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPublicKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "compressed",
			key:  "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
			want: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
		},
		{
			name: "uncompressed",
			key:  "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
			want: "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm",
		},
		{
			name: "uncompressed second point",
			key:  "0450863ad64a87ae8a2fe83c1af1a8403cb53f53e486d8511dad8a04887e5b23522cd470243453a299fa9e77237716103abc11a1df38855ed6f2ee187e9c582ba6",
			want: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromPublicKey(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromPublicKeyErrors(t *testing.T) {
	_, err := FromPublicKey("zz")
	assert.Error(t, err, "non hex input must fail")

	_, err = FromPublicKey("02")
	assert.Error(t, err, "truncated key must fail")

	// x coordinate not on the curve
	_, err = FromPublicKey("020000000000000000000000000000000000000000000000000000000000000005")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"))
	require.NoError(t, Validate("16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM"))

	assert.Error(t, Validate("1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMh"), "corrupted checksum")
	assert.Error(t, Validate("16UwLL9"), "too short")
	assert.Error(t, Validate("0OIl"), "characters outside the base58 alphabet")
}
