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

// Package scope translates token scope entries into the path and prefix
// sets consulted on every mutation.
package scope

import (
	"strings"

	"github.com/gaiahub/hub/pkg/errtypes"
)

// MaxEntries is the maximum number of scope entries a token may carry.
const MaxEntries = 8

// Scope names accepted in tokens.
const (
	PutFile               = "putFile"
	PutFilePrefix         = "putFilePrefix"
	DeleteFile            = "deleteFile"
	DeleteFilePrefix      = "deleteFilePrefix"
	PutFileArchival       = "putFileArchival"
	PutFileArchivalPrefix = "putFileArchivalPrefix"
)

var supportedScopes = map[string]struct{}{
	PutFile:               {},
	PutFilePrefix:         {},
	DeleteFile:            {},
	DeleteFilePrefix:      {},
	PutFileArchival:       {},
	PutFileArchivalPrefix: {},
}

// Entry is a single scope grant as it appears in the token payload.
type Entry struct {
	Scope  string `json:"scope"`
	Domain string `json:"domain"`
}

// ValidateEntries rejects unknown scope names and oversized scope lists.
func ValidateEntries(entries []Entry) error {
	if len(entries) > MaxEntries {
		return errtypes.Validation("Too many authentication scopes")
	}
	for _, e := range entries {
		if _, ok := supportedScopes[e.Scope]; !ok {
			return errtypes.Validation("Unrecognized scope " + e.Scope)
		}
	}
	return nil
}

// Set partitions the scope entries of a verified token into the six
// path/prefix sets.
type Set struct {
	WritePaths            []string
	WritePrefixes         []string
	DeletePaths           []string
	DeletePrefixes        []string
	WriteArchivalPaths    []string
	WriteArchivalPrefixes []string
}

// Parse validates entries and partitions them into a Set.
func Parse(entries []Entry) (*Set, error) {
	if err := ValidateEntries(entries); err != nil {
		return nil, err
	}
	s := &Set{}
	for _, e := range entries {
		switch e.Scope {
		case PutFile:
			s.WritePaths = append(s.WritePaths, e.Domain)
		case PutFilePrefix:
			s.WritePrefixes = append(s.WritePrefixes, e.Domain)
		case DeleteFile:
			s.DeletePaths = append(s.DeletePaths, e.Domain)
		case DeleteFilePrefix:
			s.DeletePrefixes = append(s.DeletePrefixes, e.Domain)
		case PutFileArchival:
			s.WriteArchivalPaths = append(s.WriteArchivalPaths, e.Domain)
		case PutFileArchivalPrefix:
			s.WriteArchivalPrefixes = append(s.WriteArchivalPrefixes, e.Domain)
		}
	}
	return s, nil
}

// ArchivalRestricted reports whether any write-archival grant is present.
// Archival restricted scope sets turn overwrites and deletes into renames
// to historical names.
func (s *Set) ArchivalRestricted() bool {
	return len(s.WriteArchivalPaths) > 0 || len(s.WriteArchivalPrefixes) > 0
}

// AuthorizeWrite checks path sanity, the archival restriction and the
// write grants for a mutation on path.
func (s *Set) AuthorizeWrite(path string) error {
	if err := CheckPath(path); err != nil {
		return err
	}
	if err := s.checkArchival(path); err != nil {
		return err
	}
	if len(s.WritePaths) == 0 && len(s.WritePrefixes) == 0 {
		return nil
	}
	if matches(path, s.WritePaths, s.WritePrefixes) {
		return nil
	}
	return errtypes.Validation("Address not authorized to write to " + path)
}

// AuthorizeDelete checks path sanity, the archival restriction and the
// delete grants for a deletion of path.
func (s *Set) AuthorizeDelete(path string) error {
	if err := CheckPath(path); err != nil {
		return err
	}
	if err := s.checkArchival(path); err != nil {
		return err
	}
	if len(s.DeletePaths) == 0 && len(s.DeletePrefixes) == 0 {
		return nil
	}
	if matches(path, s.DeletePaths, s.DeletePrefixes) {
		return nil
	}
	return errtypes.Validation("Address not authorized to delete " + path)
}

// CheckPath enforces the only path sanity rule: no ".." anywhere.
func CheckPath(path string) error {
	if strings.Contains(path, "..") {
		return errtypes.BadPath("Invalid path " + path)
	}
	return nil
}

func (s *Set) checkArchival(path string) error {
	if !s.ArchivalRestricted() {
		return nil
	}
	if matches(path, s.WriteArchivalPaths, s.WriteArchivalPrefixes) {
		return nil
	}
	return errtypes.Validation("Address not authorized outside archival scopes for " + path)
}

func matches(path string, paths, prefixes []string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
