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

package loader

import (
	// Load storage drivers.
	_ "github.com/gaiahub/hub/pkg/storage/fs/disk"
	_ "github.com/gaiahub/hub/pkg/storage/fs/gcs"
	_ "github.com/gaiahub/hub/pkg/storage/fs/memory"
	_ "github.com/gaiahub/hub/pkg/storage/fs/s3"
)
