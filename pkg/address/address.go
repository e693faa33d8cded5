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

// Package address derives principal addresses from secp256k1 public keys.
// An address is the base58check encoding (version byte 0x00) of the
// RIPEMD160-SHA256 hash of the public key bytes exactly as the client
// serialized them, so compressed and uncompressed encodings of the same
// point yield different addresses.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

// version is the base58check version byte for principal addresses.
const version = 0x00

// addressLen is the decoded length: version + 20 byte hash + 4 byte checksum.
const addressLen = 25

// FromPublicKey derives the address for a hex encoded SEC compressed or
// uncompressed secp256k1 public key.
func FromPublicKey(hexKey string) (string, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return "", errors.Wrap(err, "address: decoding public key hex")
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return "", errors.Wrap(err, "address: parsing public key")
	}
	return encode(hash160(raw)), nil
}

// Validate checks that addr is a well formed base58check address.
func Validate(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return errors.Wrap(err, "address: decoding base58")
	}
	if len(raw) != addressLen {
		return errors.Errorf("address: invalid length %d", len(raw))
	}
	if !bytes.Equal(checksum(raw[:21]), raw[21:]) {
		return errors.New("address: checksum mismatch")
	}
	return nil
}

func hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	rmd := ripemd160.New()
	_, _ = rmd.Write(sha[:])
	return rmd.Sum(nil)
}

// checksum is the first four bytes of a double SHA256.
func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func encode(hash []byte) string {
	b := make([]byte, 0, addressLen)
	b = append(b, version)
	b = append(b, hash...)
	b = append(b, checksum(b)...)
	return base58.Encode(b)
}
