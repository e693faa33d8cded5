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

// Package appctx creates a context with useful components attached to the
// context like loggers and request ids.
package appctx

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gaiahub/hub/pkg/appctx"
	"github.com/gaiahub/hub/pkg/reqid"
)

// New returns a middleware that stores a request scoped logger in the
// context, tagged with a request id. An id supplied by the client is
// kept, so ids minted by a proxy in front survive into the logs.
func New(log zerolog.Logger) func(http.Handler) http.Handler {
	chain := func(h http.Handler) http.Handler {
		return handler(log, h)
	}
	return chain
}

func handler(log zerolog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(reqid.ReqIDHeaderName)
		if reqID == "" {
			reqID = reqid.MintReqID()
		}
		w.Header().Set(reqid.ReqIDHeaderName, reqID)

		ctx := reqid.ContextSetReqID(r.Context(), reqID)
		sub := log.With().Str("reqid", reqID).Logger()
		ctx = appctx.WithLogger(ctx, &sub)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
