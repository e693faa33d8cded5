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

// Package errtypes defines the hub error taxonomy. It would have been nice
// to call this package errors, but that clashes with github.com/pkg/errors
// and the reserved word. Each kind is a concrete type carrying the
// user-facing message; callers detect kinds through the Is* marker
// interfaces so the HTTP layer can map them to status codes without
// depending on concrete types.
package errtypes

import "fmt"

// Validation is the error to use when token parsing or verification fails.
type Validation string

func (e Validation) Error() string { return string(e) }

// IsValidation is the marker method.
func (e Validation) IsValidation() {}

// BadPath is the error to use when an object path fails the sanity rules.
type BadPath string

func (e BadPath) Error() string { return string(e) }

// IsBadPath is the marker method.
func (e BadPath) IsBadPath() {}

// InvalidInput is the error to use when a request body or parameter is
// structurally unacceptable.
type InvalidInput string

func (e InvalidInput) Error() string { return string(e) }

// IsInvalidInput is the marker method.
func (e InvalidInput) IsInvalidInput() {}

// DoesNotExist is the error to use when a storage key is absent.
type DoesNotExist string

func (e DoesNotExist) Error() string { return string(e) }

// IsDoesNotExist is the marker method.
func (e DoesNotExist) IsDoesNotExist() {}

// Conflict is the error to use when an endpoint is already being mutated.
type Conflict string

func (e Conflict) Error() string { return string(e) }

// IsConflict is the marker method.
func (e Conflict) IsConflict() {}

// NotEnoughProof is the error to use when the social proof requirement
// of a bucket is not met.
type NotEnoughProof string

func (e NotEnoughProof) Error() string { return string(e) }

// IsNotEnoughProof is the marker method.
func (e NotEnoughProof) IsNotEnoughProof() {}

// PayloadTooLarge is the error to use when an upload exceeds the size cap.
type PayloadTooLarge string

func (e PayloadTooLarge) Error() string { return string(e) }

// IsPayloadTooLarge is the marker method.
func (e PayloadTooLarge) IsPayloadTooLarge() {}

// InternalError is the catch-all for driver and I/O failures that have no
// more specific kind.
type InternalError string

func (e InternalError) Error() string { return string(e) }

// IsInternalError is the marker method.
func (e InternalError) IsInternalError() {}

// AuthTokenTimestamp is the error returned when a token's issued-at lies
// below the bucket's revocation floor. It carries the floor so the response
// can tell the client the oldest acceptable timestamp.
type AuthTokenTimestamp struct {
	Message string
	// OldestValidTimestamp is the revocation floor in unix seconds.
	OldestValidTimestamp int64
}

func (e AuthTokenTimestamp) Error() string { return e.Message }

// IsAuthTokenTimestamp is the marker method.
func (e AuthTokenTimestamp) IsAuthTokenTimestamp() {}

// NewAuthTokenTimestamp builds the error for the given floor.
func NewAuthTokenTimestamp(floor int64) AuthTokenTimestamp {
	return AuthTokenTimestamp{
		Message:              fmt.Sprintf("Token is expired, the oldest valid token timestamp for this bucket is %d", floor),
		OldestValidTimestamp: floor,
	}
}

// PreconditionFailed is the error for failed If-Match / If-None-Match /
// generation checks. ETag carries the current stored etag when known so
// clients can retry conditionally.
type PreconditionFailed struct {
	Message string
	ETag    string
}

func (e PreconditionFailed) Error() string { return e.Message }

// IsPreconditionFailed is the marker method.
func (e PreconditionFailed) IsPreconditionFailed() {}

// IsValidation is the interface to implement to signal a 401 validation
// failure.
type IsValidation interface {
	IsValidation()
}

// IsAuthTokenTimestamp is the interface to implement to signal a revoked
// token; implementors also expose the revocation floor.
type IsAuthTokenTimestamp interface {
	IsAuthTokenTimestamp()
}

// IsBadPath is the interface to implement to signal a rejected path.
type IsBadPath interface {
	IsBadPath()
}

// IsInvalidInput is the interface to implement to signal unusable input.
type IsInvalidInput interface {
	IsInvalidInput()
}

// IsDoesNotExist is the interface to implement to signal a missing key.
type IsDoesNotExist interface {
	IsDoesNotExist()
}

// IsConflict is the interface to implement to signal endpoint contention.
type IsConflict interface {
	IsConflict()
}

// IsNotEnoughProof is the interface to implement to signal missing social
// proofs.
type IsNotEnoughProof interface {
	IsNotEnoughProof()
}

// IsPayloadTooLarge is the interface to implement to signal an oversized
// upload.
type IsPayloadTooLarge interface {
	IsPayloadTooLarge()
}

// IsPreconditionFailed is the interface to implement to signal a failed
// conditional operation.
type IsPreconditionFailed interface {
	IsPreconditionFailed()
}

// IsInternalError is the interface to implement to signal an unclassified
// server-side failure.
type IsInternalError interface {
	IsInternalError()
}
