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
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/meter"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
)

// maxContentTypeLen caps the Content-Type header a client may attach to
// an object.
const maxContentTypeLen = 1024

type writeResponse struct {
	PublicURL string `json:"publicURL"`
	ETag      string `json:"etag"`
}

func (s *svc) handleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	path := strings.TrimSuffix(chi.URLParam(r, "*"), "/")
	if !validAddressSegment(address) || path == "" {
		http.NotFound(w, r)
		return
	}

	identity, err := s.authorize(ctx, r, address, blacklist.PerformPut)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scopes, err := identity.Scopes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := scopes.AuthorizeWrite(path); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.proofs.CheckProofs(ctx, identity.Address); err != nil {
		writeError(w, r, err)
		return
	}

	ifMatch := r.Header.Get("If-Match")
	ifNoneMatch := r.Header.Get("If-None-Match")
	if ifMatch != "" && ifNoneMatch != "" {
		writeError(w, r, errtypes.PreconditionFailed{
			Message: "Request should not contain both If-Match and If-None-Match headers",
		})
		return
	}
	if ifNoneMatch != "" && ifNoneMatch != "*" {
		writeError(w, r, errtypes.PreconditionFailed{
			Message: "Misuse of the If-None-Match header. It must be set to * on write requests",
		})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if len(contentType) > maxContentTypeLen {
		writeError(w, r, errtypes.InvalidInput("Content-Type header exceeds the maximum length"))
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// reject a declared oversize before touching the body
	if r.ContentLength > s.maxBytes {
		writeError(w, r, errtypes.PayloadTooLarge(fmt.Sprintf("The max file upload size is %d megabytes", s.conf.MaxFileUploadSize)))
		return
	}

	release, ok := s.locks.TryAcquire(address + "/" + path)
	if !ok {
		writeError(w, r, errtypes.Conflict("Concurrent operation in progress for this endpoint, try again in a moment"))
		return
	}
	defer release()

	task := queue.Task{}

	// archival scopes turn an overwrite into a rename of the old object
	// to a historical name; the first write of a path has nothing to
	// rename and that is fine
	if scopes.ArchivalRestricted() {
		histPath := storage.HistoricalName(path)
		res, err := s.driver.PerformRename(ctx, storage.RenameArgs{
			StorageTopLevel: address,
			Path:            path,
			NewPath:         histPath,
			AssocIssAddress: identity.AssociationIssuer,
		})
		switch {
		case err == nil:
			task.BackupPaths = append(task.BackupPaths, address+"/"+histPath)
			task.FileLogs = append(task.FileLogs, res.FileLogs...)
		case isKind[errtypes.IsDoesNotExist](err):
			// first write
		default:
			writeError(w, r, err)
			return
		}
	}

	body := meter.New(r.Body, meter.Cap(r.ContentLength, s.maxBytes))
	res, err := s.driver.PerformWrite(ctx, storage.WriteArgs{
		StorageTopLevel: address,
		Path:            path,
		Content:         body,
		ContentType:     contentType,
		ContentLength:   r.ContentLength,
		CacheControl:    s.conf.CacheControl,
		IfMatchTag:      ifMatch,
		IfNoneMatchTag:  ifNoneMatch,
		AssocIssAddress: identity.AssociationIssuer,
	})
	if err != nil {
		// a cap abort surfaces through the driver wrapped in backend
		// dressing, the meter knows the real reason
		if mErr := body.Err(); mErr != nil {
			err = mErr
		}
		writeError(w, r, err)
		return
	}

	publicURL := s.rewritePublicURL(res.PublicURL)
	task.BackupPaths = append(task.BackupPaths, address+"/"+path)
	task.FileLogs = append(task.FileLogs, res.FileLogs...)
	s.enqueue(ctx, task)

	bytesUploaded.Add(float64(body.Count()))
	writeJSON(w, http.StatusAccepted, writeResponse{PublicURL: publicURL, ETag: res.ETag})
}

// rewritePublicURL swaps the driver's native URL prefix for the configured
// read endpoint, so clients read through the hub's public front even when
// the driver would point at the raw backend.
func (s *svc) rewritePublicURL(u string) string {
	driverPrefix := s.driver.ReadURLPrefix()
	if s.conf.ReadURL == "" || s.conf.ReadURL == driverPrefix {
		return u
	}
	if strings.HasPrefix(u, driverPrefix) {
		return s.conf.ReadURL + strings.TrimPrefix(u, driverPrefix)
	}
	return u
}
