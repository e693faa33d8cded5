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
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/storage"
)

// maxJSONBody caps the small JSON request bodies (list, revoke).
const maxJSONBody = 4096

type listRequest struct {
	Page     string `json:"page"`
	PageSize int    `json:"pageSize"`
	Stat     bool   `json:"stat"`
}

type listResponse struct {
	Entries []interface{} `json:"entries"`
	Page    interface{}   `json:"page"`
}

type listStatEntry struct {
	Name             string `json:"name"`
	Exists           bool   `json:"exists"`
	LastModifiedDate int64  `json:"lastModifiedDate"`
	ContentLength    int64  `json:"contentLength"`
	ETag             string `json:"etag"`
}

// readJSONBody decodes a small JSON request body into v. An empty body is
// accepted and leaves v untouched.
func readJSONBody(r *http.Request, limit int64, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return errtypes.InvalidInput("Failed to read the request body")
	}
	if int64(len(body)) > limit {
		return errtypes.PayloadTooLarge("Request body is too large")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errtypes.InvalidInput("Failed to parse the request body as JSON")
	}
	return nil
}

func (s *svc) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	if !validAddressSegment(address) {
		http.NotFound(w, r)
		return
	}

	identity, err := s.authorize(ctx, r, address, blacklist.PerformList)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scopes, err := identity.Scopes()
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := listRequest{}
	if err := readJSONBody(r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}

	// the trailing slash keeps the sibling "<address>-auth" namespace out
	// of the listing
	args := storage.ListArgs{
		PathPrefix: address + "/",
		Page:       req.Page,
		PageSize:   req.PageSize,
	}

	var entries []interface{}
	var page string
	if req.Stat {
		res, err := s.driver.ListFilesStat(ctx, args)
		if err != nil {
			writeError(w, r, err)
			return
		}
		page = res.Page
		for _, md := range res.Entries {
			if scopes.ArchivalRestricted() && storage.IsHistorical(md.Name) {
				continue
			}
			entries = append(entries, listStatEntry{
				Name:             md.Name,
				Exists:           md.Exists,
				LastModifiedDate: md.LastModified,
				ContentLength:    md.ContentLength,
				ETag:             md.ETag,
			})
		}
	} else {
		res, err := s.driver.ListFiles(ctx, args)
		if err != nil {
			writeError(w, r, err)
			return
		}
		page = res.Page
		for _, name := range res.Entries {
			if scopes.ArchivalRestricted() && storage.IsHistorical(name) {
				continue
			}
			entries = append(entries, name)
		}
	}

	// a fully filtered page would read as end of listing; the null entry
	// tells the client to keep paginating
	if len(entries) == 0 && page != "" {
		entries = append(entries, nil)
	}
	if entries == nil {
		entries = []interface{}{}
	}

	resp := listResponse{Entries: entries}
	if page != "" {
		resp.Page = page
	}
	writeJSON(w, http.StatusAccepted, resp)
}
