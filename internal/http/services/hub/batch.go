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

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/gaiahub/hub/pkg/auth"
	"github.com/gaiahub/hub/pkg/auth/scope"
	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
)

const (
	// batchWindow bounds the fan-out of a parallel group.
	batchWindow = 10
	// maxLeafError truncates captured per-leaf error messages.
	maxLeafError = 999
)

// performNode is one node of the request tree: an interior group when
// Values is set, a leaf operation otherwise.
type performNode struct {
	Values       []performNode `json:"values"`
	IsSequential bool          `json:"isSequential"`

	ID                        json.RawMessage `json:"id"`
	Type                      string          `json:"type"`
	Path                      string          `json:"path"`
	Content                   json.RawMessage `json:"content"`
	ContentType               string          `json:"contentType"`
	DoIgnoreDoesNotExistError bool            `json:"doIgnoreDoesNotExistError"`
}

type leafResult struct {
	Success   bool            `json:"success"`
	ID        json.RawMessage `json:"id,omitempty"`
	PublicURL string          `json:"publicURL,omitempty"`
	ETag      string          `json:"etag,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// batchRun accumulates the side effects of all leaves; parallel windows
// append concurrently.
type batchRun struct {
	svc      *svc
	identity *auth.Identity
	scopes   *scope.Set

	mu   sync.Mutex
	task queue.Task
}

func (s *svc) handlePerformFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	if !validAddressSegment(address) {
		http.NotFound(w, r)
		return
	}

	identity, err := s.authorize(ctx, r, address, blacklist.PerformPerform)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scopes, err := identity.Scopes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.proofs.CheckProofs(ctx, identity.Address); err != nil {
		writeError(w, r, err)
		return
	}

	root := performNode{}
	if err := readJSONBody(r, s.maxBytes, &root); err != nil {
		writeError(w, r, err)
		return
	}
	if len(root.Values) == 0 && root.Type == "" {
		writeError(w, r, errtypes.InvalidInput("The request body carries no operations"))
		return
	}

	run := &batchRun{svc: s, identity: identity, scopes: scopes}
	results, _ := run.execute(ctx, root)
	s.enqueue(ctx, run.task)

	if results == nil {
		results = []leafResult{}
	}
	writeJSON(w, http.StatusAccepted, results)
}

// execute walks one node and returns the flattened leaf results plus
// whether any of them failed, which sequential parents use to stop early.
func (b *batchRun) execute(ctx context.Context, node performNode) ([]leafResult, bool) {
	if len(node.Values) == 0 {
		res := b.leaf(ctx, node)
		return []leafResult{res}, !res.Success
	}

	if node.IsSequential {
		var all []leafResult
		for _, child := range node.Values {
			results, failed := b.execute(ctx, child)
			all = append(all, results...)
			if failed {
				return all, true
			}
		}
		return all, false
	}

	// parallel group, bounded windows, results in input order
	var all []leafResult
	failed := false
	for start := 0; start < len(node.Values); start += batchWindow {
		end := start + batchWindow
		if end > len(node.Values) {
			end = len(node.Values)
		}
		window := node.Values[start:end]
		results := make([][]leafResult, len(window))
		windowFailed := make([]bool, len(window))
		var wg sync.WaitGroup
		for i := range window {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], windowFailed[i] = b.execute(ctx, window[i])
			}(i)
		}
		wg.Wait()
		for i, r := range results {
			all = append(all, r...)
			if windowFailed[i] {
				failed = true
			}
		}
	}
	return all, failed
}

// leaf dispatches one operation. Failures never escape: they come back as
// a captured result so the rest of the batch can proceed.
func (b *batchRun) leaf(ctx context.Context, node performNode) leafResult {
	var res leafResult
	var err error
	switch node.Type {
	case "PUT":
		res, err = b.putLeaf(ctx, node)
	case "DELETE":
		res, err = b.deleteLeaf(ctx, node)
	default:
		err = errtypes.InvalidInput("Unsupported perform type " + node.Type)
	}
	if err != nil {
		msg := err.Error()
		if len(msg) > maxLeafError {
			msg = msg[:maxLeafError]
		}
		return leafResult{Success: false, ID: node.ID, Error: msg}
	}
	res.Success = true
	res.ID = node.ID
	return res
}

func (b *batchRun) putLeaf(ctx context.Context, node performNode) (leafResult, error) {
	s := b.svc
	if err := b.checkBlacklist(ctx, blacklist.PerformPut); err != nil {
		return leafResult{}, err
	}
	if err := b.scopes.AuthorizeWrite(node.Path); err != nil {
		return leafResult{}, err
	}

	content, contentType, err := coerceContent(node.Content, node.ContentType)
	if err != nil {
		return leafResult{}, err
	}
	if int64(len(content)) > s.maxBytes {
		return leafResult{}, errtypes.PayloadTooLarge(fmt.Sprintf("The max file upload size is %d megabytes", s.conf.MaxFileUploadSize))
	}

	release, ok := s.locks.TryAcquire(b.identity.Address + "/" + node.Path)
	if !ok {
		return leafResult{}, errtypes.Conflict("Concurrent operation in progress for this endpoint, try again in a moment")
	}
	defer release()

	if b.scopes.ArchivalRestricted() {
		histPath := storage.HistoricalName(node.Path)
		res, err := s.driver.PerformRename(ctx, storage.RenameArgs{
			StorageTopLevel: b.identity.Address,
			Path:            node.Path,
			NewPath:         histPath,
			AssocIssAddress: b.identity.AssociationIssuer,
		})
		switch {
		case err == nil:
			b.collect(queue.Task{
				BackupPaths: []string{b.identity.Address + "/" + histPath},
				FileLogs:    res.FileLogs,
			})
		case isKind[errtypes.IsDoesNotExist](err):
			// first write
		default:
			return leafResult{}, err
		}
	}

	res, err := s.driver.PerformWrite(ctx, storage.WriteArgs{
		StorageTopLevel: b.identity.Address,
		Path:            node.Path,
		Content:         bytes.NewReader(content),
		ContentType:     contentType,
		ContentLength:   int64(len(content)),
		CacheControl:    s.conf.CacheControl,
		AssocIssAddress: b.identity.AssociationIssuer,
	})
	if err != nil {
		return leafResult{}, err
	}
	b.collect(queue.Task{
		BackupPaths: []string{b.identity.Address + "/" + node.Path},
		FileLogs:    res.FileLogs,
	})
	return leafResult{PublicURL: s.rewritePublicURL(res.PublicURL), ETag: res.ETag}, nil
}

func (b *batchRun) deleteLeaf(ctx context.Context, node performNode) (leafResult, error) {
	s := b.svc
	if err := b.checkBlacklist(ctx, blacklist.PerformDelete); err != nil {
		return leafResult{}, err
	}
	if err := b.scopes.AuthorizeDelete(node.Path); err != nil {
		return leafResult{}, err
	}

	release, ok := s.locks.TryAcquire(b.identity.Address + "/" + node.Path)
	if !ok {
		return leafResult{}, errtypes.Conflict("Concurrent operation in progress for this endpoint, try again in a moment")
	}
	defer release()

	if b.scopes.ArchivalRestricted() {
		histPath := storage.HistoricalName(node.Path)
		res, err := s.driver.PerformRename(ctx, storage.RenameArgs{
			StorageTopLevel: b.identity.Address,
			Path:            node.Path,
			NewPath:         histPath,
			AssocIssAddress: b.identity.AssociationIssuer,
		})
		if err != nil {
			if node.DoIgnoreDoesNotExistError && isKind[errtypes.IsDoesNotExist](err) {
				return leafResult{}, nil
			}
			return leafResult{}, err
		}
		b.collect(queue.Task{
			BackupPaths: []string{b.identity.Address + "/" + histPath},
			FileLogs:    res.FileLogs,
		})
		return leafResult{}, nil
	}

	res, err := s.driver.PerformDelete(ctx, storage.DeleteArgs{
		StorageTopLevel: b.identity.Address,
		Path:            node.Path,
		AssocIssAddress: b.identity.AssociationIssuer,
	})
	if err != nil {
		if node.DoIgnoreDoesNotExistError && isKind[errtypes.IsDoesNotExist](err) {
			return leafResult{}, nil
		}
		return leafResult{}, err
	}
	b.collect(queue.Task{FileLogs: res.FileLogs})
	return leafResult{}, nil
}

func (b *batchRun) checkBlacklist(ctx context.Context, op blacklist.PerformType) error {
	blocked, err := b.svc.blacklist.IsBlacklisted(ctx, b.identity.Address, op)
	if err != nil {
		return err
	}
	if blocked {
		return errtypes.Validation("Address " + b.identity.Address + " is not allowed to modify files")
	}
	if b.svc.conf.CheckAssocBlacklist && b.identity.AssociationIssuer != "" {
		blocked, err := b.svc.blacklist.IsBlacklisted(ctx, b.identity.AssociationIssuer, op)
		if err != nil {
			return err
		}
		if blocked {
			return errtypes.Validation("Association issuer " + b.identity.AssociationIssuer + " is not allowed to modify files")
		}
	}
	return nil
}

func (b *batchRun) collect(task queue.Task) {
	b.mu.Lock()
	b.task.BackupPaths = append(b.task.BackupPaths, task.BackupPaths...)
	b.task.FileLogs = append(b.task.FileLogs, task.FileLogs...)
	b.mu.Unlock()
}

// coerceContent turns a leaf's JSON content value into stored bytes. A
// JSON string stores its text, a JSON object or array stores its JSON
// form; anything else is not a storable value.
func coerceContent(raw json.RawMessage, contentType string) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, "", errtypes.InvalidInput("A PUT operation requires a content value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, "", errtypes.InvalidInput("Failed to parse the content value")
		}
		if contentType == "" {
			contentType = "text/plain"
		}
		return []byte(s), contentType, nil
	case '{', '[':
		if contentType == "" {
			contentType = "application/json"
		}
		return trimmed, contentType, nil
	default:
		return nil, "", errtypes.InvalidInput("Unsupported content value, expected a string or a JSON object")
	}
}
