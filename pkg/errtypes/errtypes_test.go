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

package errtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{Validation("bad token"), func(e error) bool { _, ok := e.(IsValidation); return ok }},
		{BadPath("relative path"), func(e error) bool { _, ok := e.(IsBadPath); return ok }},
		{InvalidInput("no content"), func(e error) bool { _, ok := e.(IsInvalidInput); return ok }},
		{DoesNotExist("missing"), func(e error) bool { _, ok := e.(IsDoesNotExist); return ok }},
		{Conflict("write in progress"), func(e error) bool { _, ok := e.(IsConflict); return ok }},
		{NotEnoughProof("proofs required"), func(e error) bool { _, ok := e.(IsNotEnoughProof); return ok }},
		{PayloadTooLarge("too big"), func(e error) bool { _, ok := e.(IsPayloadTooLarge); return ok }},
		{InternalError("boom"), func(e error) bool { _, ok := e.(IsInternalError); return ok }},
		{NewAuthTokenTimestamp(42), func(e error) bool { _, ok := e.(IsAuthTokenTimestamp); return ok }},
		{PreconditionFailed{Message: "etag mismatch"}, func(e error) bool { _, ok := e.(IsPreconditionFailed); return ok }},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), "marker not implemented for %T", tt.err)
		assert.NotEmpty(t, tt.err.Error())
	}
}

func TestAuthTokenTimestampCarriesFloor(t *testing.T) {
	err := NewAuthTokenTimestamp(1500000000)
	require.EqualValues(t, 1500000000, err.OldestValidTimestamp)
	assert.Contains(t, err.Error(), "1500000000")
}

func TestPreconditionFailedCarriesETag(t *testing.T) {
	err := PreconditionFailed{Message: "etag does not match", ETag: `"abc"`}
	assert.Equal(t, `"abc"`, err.ETag)
	assert.Equal(t, "etag does not match", err.Error())
}
