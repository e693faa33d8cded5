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

// Package global holds the registries where HTTP services and middlewares
// announce themselves at init time.
package global

import (
	"net/http"

	"github.com/rs/zerolog"
)

// NewService is the function that HTTP services need to register at init time.
type NewService func(conf map[string]interface{}, log *zerolog.Logger) (Service, error)

// Services is a map of service name and its new function.
var Services = map[string]NewService{}

// Register registers a new HTTP service with name and new function.
// Not safe for concurrent use. Safe for use from package init.
func Register(name string, newFunc NewService) {
	Services[name] = newFunc
}

// NewMiddleware is the function that HTTP middlewares need to register at
// init time. The second return value is the chaining priority.
type NewMiddleware func(conf map[string]interface{}) (Middleware, int, error)

// NewMiddlewares contains all the registered new middleware functions.
var NewMiddlewares = map[string]NewMiddleware{}

// RegisterMiddleware registers a new HTTP middleware and its new function.
// Not safe for concurrent use. Safe for use from package init.
func RegisterMiddleware(name string, n NewMiddleware) {
	NewMiddlewares[name] = n
}

// Middleware is a middleware http handler.
type Middleware func(h http.Handler) http.Handler

// Service represents a HTTP service.
type Service interface {
	Handler() http.Handler
	Prefix() string
	Close() error
}
