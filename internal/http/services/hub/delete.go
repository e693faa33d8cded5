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
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
)

func (s *svc) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	path := strings.TrimSuffix(chi.URLParam(r, "*"), "/")
	if !validAddressSegment(address) || path == "" {
		http.NotFound(w, r)
		return
	}

	identity, err := s.authorize(ctx, r, address, blacklist.PerformDelete)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scopes, err := identity.Scopes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := scopes.AuthorizeDelete(path); err != nil {
		writeError(w, r, err)
		return
	}

	if r.Header.Get("If-None-Match") != "" {
		writeError(w, r, errtypes.PreconditionFailed{
			Message: "The If-None-Match header is not supported on deletions",
		})
		return
	}
	ifMatch := r.Header.Get("If-Match")

	release, ok := s.locks.TryAcquire(address + "/" + path)
	if !ok {
		writeError(w, r, errtypes.Conflict("Concurrent operation in progress for this endpoint, try again in a moment"))
		return
	}
	defer release()

	task := queue.Task{}
	if scopes.ArchivalRestricted() {
		// archival deletes keep the data under a historical name
		histPath := storage.HistoricalName(path)
		res, err := s.driver.PerformRename(ctx, storage.RenameArgs{
			StorageTopLevel: address,
			Path:            path,
			NewPath:         histPath,
			IfMatchTag:      ifMatch,
			AssocIssAddress: identity.AssociationIssuer,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		task.BackupPaths = append(task.BackupPaths, address+"/"+histPath)
		task.FileLogs = append(task.FileLogs, res.FileLogs...)
	} else {
		res, err := s.driver.PerformDelete(ctx, storage.DeleteArgs{
			StorageTopLevel: address,
			Path:            path,
			IfMatchTag:      ifMatch,
			AssocIssAddress: identity.AssociationIssuer,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		task.FileLogs = append(task.FileLogs, res.FileLogs...)
	}
	s.enqueue(ctx, task)

	w.WriteHeader(http.StatusAccepted)
}
