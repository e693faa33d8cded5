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

// Package secure registers a middleware that sets a baseline of security
// related response headers.
package secure

import (
	"net/http"

	"github.com/mitchellh/mapstructure"

	"github.com/gaiahub/hub/pkg/rhttp/global"
)

const defaultPriority = 200

func init() {
	global.RegisterMiddleware("secure", New)
}

type secure struct {
	ContentSecurityPolicy string `mapstructure:"content_security_policy"`
	Priority              int    `mapstructure:"priority"`
}

// New creates a new secure middleware.
func New(m map[string]interface{}) (global.Middleware, int, error) {
	s := &secure{}
	if err := mapstructure.Decode(m, s); err != nil {
		return nil, 0, err
	}

	if s.Priority == 0 {
		s.Priority = defaultPriority
	}

	if s.ContentSecurityPolicy == "" {
		s.ContentSecurityPolicy = "frame-ancestors 'none'"
	}

	return s.Handler, s.Priority, nil
}

// Handler is the middleware function.
func (m *secure) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", m.ContentSecurityPolicy)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Permitted-Cross-Domain-Policies", "none")
		w.Header().Set("X-Robots-Tag", "none")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		}

		next.ServeHTTP(w, r)
	})
}
