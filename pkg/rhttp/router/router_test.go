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

package router_test

import (
	"testing"

	"github.com/gaiahub/hub/pkg/rhttp/router"
)

func TestShiftPath(t *testing.T) {
	tests := map[string]struct {
		path string
		head string
		tail string
	}{
		"empty": {
			path: "",
			head: "",
			tail: "/",
		},
		"root": {
			path: "/",
			head: "",
			tail: "/",
		},
		"single_component": {
			path: "/hub_info",
			head: "hub_info",
			tail: "/",
		},
		"nested": {
			path: "/store/15GAu/file.txt",
			head: "store",
			tail: "/15GAu/file.txt",
		},
		"no_leading_slash": {
			path: "store/15GAu",
			head: "store",
			tail: "/15GAu",
		},
		"double_slash_collapsed": {
			path: "/a//b",
			head: "a",
			tail: "/b",
		},
		"relative_collapsed": {
			path: "/a/b/../c",
			head: "a",
			tail: "/c",
		},
		"trailing_slash": {
			path: "/metrics/",
			head: "metrics",
			tail: "/",
		},
		"relative_above_root": {
			path: "/../a",
			head: "a",
			tail: "/",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			head, tail := router.ShiftPath(test.path)
			if head != test.head || tail != test.tail {
				t.Fatalf("%s got (%q, %q) instead of (%q, %q)", t.Name(), head, tail, test.head, test.tail)
			}
		})
	}
}
