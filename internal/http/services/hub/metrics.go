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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bytesUploaded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hub",
	Name:      "bytes_uploaded_total",
	Help:      "Bytes accepted through the store endpoint.",
})

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hub",
	Name:      "requests_total",
	Help:      "Requests served, by operation and status code.",
}, []string{"operation", "code"})

// instrument counts completed requests for one operation.
func instrument(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next(sw, r)
		code := sw.status
		if code == 0 {
			code = http.StatusOK
		}
		requestsTotal.WithLabelValues(op, strconv.Itoa(code)).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}
