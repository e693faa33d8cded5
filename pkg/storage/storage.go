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

// Package storage defines the driver contract the hub consumes: a
// generation-versioned object store plus a small key/value corner for
// revocation and blacklist records. Implementations live under fs/.
package storage

import (
	"context"
	"io"

	"github.com/gaiahub/hub/pkg/queue"
)

// Driver is the contract between the hub handlers and a backing store.
// All mutating operations are conditional on the store's generation
// numbers so that concurrent writers across processes cannot clobber
// each other; within a process the per-endpoint lock already serializes
// them.
type Driver interface {
	// EnsureInitialized verifies the backend is reachable and usable.
	// It is called once at service construction; failure is fatal.
	EnsureInitialized(ctx context.Context) error

	// ListFiles returns object names under args.PathPrefix.
	ListFiles(ctx context.Context, args ListArgs) (*ListResult, error)

	// ListFilesStat is ListFiles with per-entry metadata.
	ListFilesStat(ctx context.Context, args ListArgs) (*ListStatResult, error)

	// PerformStat returns metadata for a single key. A missing key is
	// not an error: the result carries Exists=false.
	PerformStat(ctx context.Context, args StatArgs) (*Metadata, error)

	// PerformWrite streams args.Content into the store under the
	// conditional semantics of the hub: stat, etag preconditions,
	// generation-fenced upload.
	PerformWrite(ctx context.Context, args WriteArgs) (*WriteResult, error)

	// PerformDelete removes a key, failing with DoesNotExist when the
	// key is absent and PreconditionFailed when an If-Match etag does
	// not match.
	PerformDelete(ctx context.Context, args DeleteArgs) (*DeleteResult, error)

	// PerformRename moves a key within the same bucket namespace,
	// preserving content type. Used by the archival write path.
	PerformRename(ctx context.Context, args RenameArgs) (*RenameResult, error)

	// ReadAuthTimestamp returns the revocation floor recorded for the
	// bucket address, 0 when none was ever written.
	ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error)

	// WriteAuthTimestamp upserts the revocation floor. The stored value
	// never decreases: a smaller timestamp than the recorded one is a
	// no-op.
	WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error

	// ReadBlacklistStatus returns the integer blacklist type recorded
	// for an address, 0 when none.
	ReadBlacklistStatus(ctx context.Context, address string) (int, error)

	// ReadURLPrefix returns the base URL the driver would use to
	// synthesize public URLs. Handlers may override it with a
	// configured read prefix.
	ReadURLPrefix() string

	// Close releases backend resources.
	Close() error
}

// Metadata describes a stored object.
type Metadata struct {
	Name          string
	Exists        bool
	ETag          string
	ContentType   string
	ContentLength int64
	Generation    int64
	LastModified  int64
}

// ListArgs selects a page of object names.
type ListArgs struct {
	PathPrefix string
	Page       string
	PageSize   int
}

// ListResult is one page of names. Page is the opaque continuation
// token for the next page, empty when the listing is exhausted.
type ListResult struct {
	Entries []string
	Page    string
}

// ListStatResult is one page of metadata entries.
type ListStatResult struct {
	Entries []*Metadata
	Page    string
}

// StatArgs identifies a single key.
type StatArgs struct {
	StorageTopLevel string
	Path            string
}

// WriteArgs carries a streaming upload. ContentLength is the
// client-reported length, negative when unknown; drivers must not trust
// it for allocation, the meter upstream enforces the cap.
type WriteArgs struct {
	StorageTopLevel string
	Path            string
	Content         io.Reader
	ContentType     string
	ContentLength   int64
	// CacheControl is stored as object metadata where the backend
	// supports it, so reads served straight off the store honor it.
	CacheControl    string
	IfMatchTag      string
	IfNoneMatchTag  string
	AssocIssAddress string
}

// WriteResult reports a completed upload.
type WriteResult struct {
	PublicURL  string
	ETag       string
	SizeChange int64
	FileLogs   []queue.FileLog
}

// DeleteArgs identifies a conditional delete.
type DeleteArgs struct {
	StorageTopLevel string
	Path            string
	IfMatchTag      string
	AssocIssAddress string
}

// DeleteResult reports a completed delete.
type DeleteResult struct {
	SizeChange int64
	FileLogs   []queue.FileLog
}

// RenameArgs identifies a conditional move within one bucket.
type RenameArgs struct {
	StorageTopLevel string
	Path            string
	NewPath         string
	IfMatchTag      string
	AssocIssAddress string
}

// RenameResult reports a completed move.
type RenameResult struct {
	FileLogs []queue.FileLog
}

// AuthTimestampPath returns the storage key of the revocation record
// for a bucket. The "-auth" top level keeps the record out of
// "<bucketAddress>/" listings.
func AuthTimestampPath(bucketAddress string) string {
	return bucketAddress + "-auth/timestamp"
}

// BlacklistPath returns the storage key of the blacklist record for an
// address.
func BlacklistPath(address string) string {
	return "hub-blacklist/" + address
}

// AuthTimestampRecord is the JSON document stored at AuthTimestampPath.
// Timestamps are seconds since the epoch, dates are unix millis.
type AuthTimestampRecord struct {
	Timestamp  int64 `json:"timestamp"`
	CreateDate int64 `json:"createDate"`
	UpdateDate int64 `json:"updateDate"`
}

// BlacklistRecord is the JSON document stored at BlacklistPath.
type BlacklistRecord struct {
	Type int `json:"type"`
}
