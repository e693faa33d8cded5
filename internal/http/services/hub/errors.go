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
	"net/http"

	"github.com/pkg/errors"

	"github.com/gaiahub/hub/pkg/appctx"
	"github.com/gaiahub/hub/pkg/errtypes"
)

// Wire names for the error kinds, mirrored by clients.
const (
	errNameValidation         = "ValidationError"
	errNameAuthTokenTimestamp = "AuthTokenTimestampValidationError"
	errNameBadPath            = "BadPathError"
	errNameInvalidInput       = "InvalidInputError"
	errNameDoesNotExist       = "DoesNotExistError"
	errNameNotEnoughProof     = "NotEnoughProofError"
	errNameConflict           = "ConflictError"
	errNamePayloadTooLarge    = "PayloadTooLargeError"
	errNamePrecondition       = "PreconditionFailedError"
)

type errorBody struct {
	Message                   string `json:"message"`
	Error                     string `json:"error,omitempty"`
	ETag                      string `json:"etag,omitempty"`
	OldestValidTokenTimestamp int64  `json:"oldestValidTokenTimestamp,omitempty"`
}

// writeError maps an error to its HTTP status and wire shape. Unclassified
// errors become an opaque 500, the cause only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := appctx.GetLogger(r.Context())

	var atErr errtypes.AuthTokenTimestamp
	if errors.As(err, &atErr) {
		log.Debug().Err(err).Msg("expired token timestamp")
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Message:                   atErr.Message,
			Error:                     errNameAuthTokenTimestamp,
			OldestValidTokenTimestamp: atErr.OldestValidTimestamp,
		})
		return
	}

	var pfErr errtypes.PreconditionFailed
	if errors.As(err, &pfErr) {
		log.Debug().Err(err).Msg("precondition failed")
		writeJSON(w, http.StatusPreconditionFailed, errorBody{
			Message: pfErr.Message,
			Error:   errNamePrecondition,
			ETag:    pfErr.ETag,
		})
		return
	}

	var status int
	var name string
	switch {
	case isKind[errtypes.IsValidation](err):
		status, name = http.StatusUnauthorized, errNameValidation
	case isKind[errtypes.IsBadPath](err):
		status, name = http.StatusForbidden, errNameBadPath
	case isKind[errtypes.IsInvalidInput](err):
		status, name = http.StatusBadRequest, errNameInvalidInput
	case isKind[errtypes.IsDoesNotExist](err):
		status, name = http.StatusNotFound, errNameDoesNotExist
	case isKind[errtypes.IsNotEnoughProof](err):
		status, name = http.StatusPaymentRequired, errNameNotEnoughProof
	case isKind[errtypes.IsConflict](err):
		status, name = http.StatusConflict, errNameConflict
	case isKind[errtypes.IsPayloadTooLarge](err):
		status, name = http.StatusRequestEntityTooLarge, errNamePayloadTooLarge
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Server Error"})
		return
	}

	log.Debug().Err(err).Int("status", status).Msg("request rejected")
	writeJSON(w, status, errorBody{Message: err.Error(), Error: name})
}

func isKind[T any](err error) bool {
	var target T
	return errors.As(err, &target)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
