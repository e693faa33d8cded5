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

// Package loader loads the HTTP services and middlewares.
package loader

import (
	// Load HTTP services.
	_ "github.com/gaiahub/hub/internal/http/services/hub"
	_ "github.com/gaiahub/hub/internal/http/services/pprof"
	_ "github.com/gaiahub/hub/internal/http/services/prometheus"

	// Load HTTP middlewares.
	_ "github.com/gaiahub/hub/internal/http/interceptors/cors"
	_ "github.com/gaiahub/hub/internal/http/interceptors/log"
	_ "github.com/gaiahub/hub/internal/http/interceptors/secure"
)
