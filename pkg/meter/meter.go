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

// Package meter bounds upload streams. The reader forwards bytes without
// buffering and fails the stream once the running total passes the cap, so
// the driver upload consuming it aborts mid flight instead of spooling an
// oversized body.
package meter

import (
	"fmt"
	"io"

	"github.com/gaiahub/hub/pkg/errtypes"
)

// Cap computes the effective upload limit: the client reported content
// length when it is positive and within max, else max.
func Cap(contentLength, max int64) int64 {
	if contentLength > 0 && contentLength <= max {
		return contentLength
	}
	return max
}

// Reader is a pass-through byte meter.
type Reader struct {
	src   io.Reader
	limit int64
	count int64
	err   error
}

// New wraps src so that reading beyond limit bytes fails with
// errtypes.PayloadTooLarge.
func New(src io.Reader, limit int64) *Reader {
	return &Reader{src: src, limit: limit}
}

// Read implements io.Reader. Once the cap is exceeded the error is sticky
// and no further bytes are forwarded.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.count += int64(n)
		if r.count > r.limit {
			over := r.count - r.limit
			n -= int(over)
			if n < 0 {
				n = 0
			}
			r.count = r.limit
			r.err = errtypes.PayloadTooLarge(fmt.Sprintf("Payload exceeded the maximum upload size of %d bytes", r.limit))
			return n, r.err
		}
	}
	return n, err
}

// Count returns the number of bytes forwarded so far.
func (r *Reader) Count() int64 {
	return r.count
}

// Err returns the cap violation, nil while the stream is within bounds.
// Callers use it to tell a cap abort from a backend upload failure, the
// backend only ever sees the meter's error second hand.
func (r *Reader) Err() error {
	return r.err
}
