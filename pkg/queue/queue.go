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

// Package queue carries backup and file-log tasks to the background
// worker. Publishing is best effort by contract: the hub logs a failed
// enqueue and never fails the originating request over it.
package queue

import (
	"context"
	"time"
)

// File-log actions. Writes log CREATE for new keys and UPDATE for
// overwrites; deletions and the removal half of a rename log DELETE.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// FileLog is the append-only record of one mutation.
type FileLog struct {
	Path            string    `json:"path"`
	AssocIssAddress string    `json:"assoIssAddress,omitempty"`
	Action          string    `json:"action"`
	Size            int64     `json:"size"`
	SizeChange      int64     `json:"sizeChange"`
	CreateDT        time.Time `json:"createDT"`
}

// Task bundles the side effects of a request for the worker.
type Task struct {
	BackupPaths []string  `json:"backupPaths,omitempty"`
	FileLogs    []FileLog `json:"fileLogs,omitempty"`
}

// Empty reports whether the task carries nothing worth publishing.
func (t Task) Empty() bool {
	return len(t.BackupPaths) == 0 && len(t.FileLogs) == 0
}

// Publisher delivers tasks to the worker.
type Publisher interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

// Noop drops tasks, for hubs running without a background worker.
type Noop struct{}

// Enqueue implements the Publisher interface.
func (Noop) Enqueue(context.Context, Task) error { return nil }

// Close implements the Publisher interface.
func (Noop) Close() error { return nil }
