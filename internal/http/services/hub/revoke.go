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

	"github.com/go-chi/chi/v5"

	"github.com/gaiahub/hub/pkg/errtypes"
)

type revokeRequest struct {
	OldestValidTimestamp int64 `json:"oldestValidTimestamp"`
}

type revokeResponse struct {
	Status string `json:"status"`
}

func (s *svc) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	if !validAddressSegment(address) {
		http.NotFound(w, r)
		return
	}

	// verified without a revocation floor: the token raising the floor
	// must not be rejected by the very floor it raises
	if _, err := s.verify(r, address, 0); err != nil {
		writeError(w, r, err)
		return
	}

	req := revokeRequest{}
	if err := readJSONBody(r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OldestValidTimestamp <= 0 {
		writeError(w, r, errtypes.InvalidInput("Invalid oldestValidTimestamp value"))
		return
	}

	if err := s.revocation.Set(ctx, address, req.OldestValidTimestamp); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, revokeResponse{Status: "success"})
}
