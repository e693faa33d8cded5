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
	"encoding/hex"
	"strings"

	"github.com/gaiahub/hub/pkg/errtypes"
)

// ETagFromMD5 formats an md5 digest as the quoted etag the hub serves.
func ETagFromMD5(sum []byte) string {
	return `"` + hex.EncodeToString(sum) + `"`
}

// NormalizeETag returns the canonical quoted form of an etag. Backends
// differ on whether they quote; the hub always serves quoted etags.
func NormalizeETag(etag string) string {
	if etag == "" {
		return ""
	}
	return `"` + strings.Trim(etag, `"`) + `"`
}

// ETagsEqual compares two etags ignoring surrounding quotes, so client
// supplied If-Match values match in either form.
func ETagsEqual(a, b string) bool {
	return strings.Trim(a, `"`) == strings.Trim(b, `"`)
}

// CheckPreconditions applies the If-Match / If-None-Match rules shared
// by all drivers before a mutation. An If-Match of "*" is accepted
// without an etag comparison. The returned PreconditionFailed carries
// the current etag so clients can resynchronize.
func CheckPreconditions(exists bool, etag, ifMatch, ifNoneMatch string) error {
	if ifMatch != "" && ifMatch != "*" {
		if !exists || !ETagsEqual(etag, ifMatch) {
			return errtypes.PreconditionFailed{
				Message: "The provided etag does not match the resource",
				ETag:    etag,
			}
		}
	}
	if ifNoneMatch == "*" && exists {
		return errtypes.PreconditionFailed{
			Message: "The resource already exists",
			ETag:    etag,
		}
	}
	return nil
}
