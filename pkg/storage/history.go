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

package storage

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// HistoryPrefix marks an object name as a historical version. A name is
// historical iff its basename starts with this prefix.
const HistoryPrefix = ".history."

const (
	base62Alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	historyRandChars = 10
)

// HistoricalName returns the name an existing object is moved to before
// an archival overwrite or delete. For a path "<dir>/<base>" the result
// is "<dir>/.history.<unixMillis>.<rand>.<base>", keeping the version
// next to the live object.
func HistoricalName(path string) string {
	dir, base := splitPath(path)
	var b strings.Builder
	b.WriteString(dir)
	b.WriteString(HistoryPrefix)
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	b.WriteByte('.')
	b.WriteString(randBase62(historyRandChars))
	b.WriteByte('.')
	b.WriteString(base)
	return b.String()
}

// IsHistorical reports whether path names a historical version.
func IsHistorical(path string) bool {
	_, base := splitPath(path)
	return strings.HasPrefix(base, HistoryPrefix)
}

// splitPath splits path at the last slash. dir keeps the trailing slash
// so dir+base reassembles the input.
func splitPath(path string) (dir, base string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i+1], path[i+1:]
}

func randBase62(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = base62Alphabet[int(b[i])%len(base62Alphabet)]
	}
	return string(b)
}
