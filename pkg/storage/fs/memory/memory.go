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

// Package memory implements the storage driver on in-process maps. It
// keeps the full conditional-write semantics of the real backends, so
// the handler tests exercise the same precondition and generation paths
// the production drivers take.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/gaiahub/hub/pkg/storage/fs/registry"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

func init() {
	registry.Register("memory", New)
}

type config struct {
	ReadURL  string `mapstructure:"read_url"`
	PageSize int    `mapstructure:"page_size"`
}

func (c *config) init() {
	if c.ReadURL == "" {
		c.ReadURL = "http://localhost:8088/read/"
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "error decoding conf")
	}
	return c, nil
}

type object struct {
	data        []byte
	contentType string
	etag        string
	generation  int64
	modified    int64
}

type memdriver struct {
	conf *config

	mu      sync.Mutex
	objects map[string]*object
	nextGen int64
}

// New returns an implementation of the storage.Driver interface backed
// by process memory.
func New(m map[string]interface{}) (storage.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	c.init()
	return &memdriver{
		conf:    c,
		objects: map[string]*object{},
		nextGen: 1,
	}, nil
}

func (d *memdriver) EnsureInitialized(ctx context.Context) error { return nil }

func (d *memdriver) ReadURLPrefix() string { return d.conf.ReadURL }

func (d *memdriver) Close() error { return nil }

// list returns one page of keys with args.PathPrefix stripped. The
// continuation token is the last full key of the page.
func (d *memdriver) list(args storage.ListArgs) ([]string, string) {
	d.mu.Lock()
	keys := make([]string, 0, len(d.objects))
	for k := range d.objects {
		if strings.HasPrefix(k, args.PathPrefix) {
			keys = append(keys, k)
		}
	}
	d.mu.Unlock()

	size := storage.ClampPageSize(args.PageSize, d.conf.PageSize)
	keys, page := storage.Paginate(keys, args.Page, size)
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, args.PathPrefix)
	}
	return keys, page
}

func (d *memdriver) ListFiles(ctx context.Context, args storage.ListArgs) (*storage.ListResult, error) {
	entries, page := d.list(args)
	return &storage.ListResult{Entries: entries, Page: page}, nil
}

func (d *memdriver) ListFilesStat(ctx context.Context, args storage.ListArgs) (*storage.ListStatResult, error) {
	names, page := d.list(args)
	entries := make([]*storage.Metadata, 0, len(names))
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		if o, ok := d.objects[args.PathPrefix+name]; ok {
			entries = append(entries, o.metadata(name))
		}
	}
	return &storage.ListStatResult{Entries: entries, Page: page}, nil
}

func (o *object) metadata(name string) *storage.Metadata {
	return &storage.Metadata{
		Name:          name,
		Exists:        true,
		ETag:          o.etag,
		ContentType:   o.contentType,
		ContentLength: int64(len(o.data)),
		Generation:    o.generation,
		LastModified:  o.modified,
	}
}

func (d *memdriver) PerformStat(ctx context.Context, args storage.StatArgs) (*storage.Metadata, error) {
	key := args.StorageTopLevel + "/" + args.Path
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[key]
	if !ok {
		return &storage.Metadata{Name: args.Path, Exists: false}, nil
	}
	return o.metadata(args.Path), nil
}

func (d *memdriver) PerformWrite(ctx context.Context, args storage.WriteArgs) (*storage.WriteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path

	d.mu.Lock()
	var gen, oldSize int64
	var etag string
	cur, exists := d.objects[key]
	if exists {
		gen, oldSize, etag = cur.generation, int64(len(cur.data)), cur.etag
	}
	d.mu.Unlock()

	if err := storage.CheckPreconditions(exists, etag, args.IfMatchTag, args.IfNoneMatchTag); err != nil {
		return nil, err
	}

	// The body is consumed outside the lock. The generation recorded at
	// stat time fences the commit below, like ifGenerationMatch on a
	// real object store.
	data, err := io.ReadAll(args.Content)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	cur, exists = d.objects[key]
	var curGen int64
	if exists {
		curGen = cur.generation
	}
	if curGen != gen {
		var curETag string
		if exists {
			curETag = cur.etag
		}
		return nil, errtypes.PreconditionFailed{
			Message: "The resource changed while the write was in flight",
			ETag:    curETag,
		}
	}

	sum := md5.Sum(data)
	o := &object{
		data:        data,
		contentType: args.ContentType,
		etag:        storage.ETagFromMD5(sum[:]),
		generation:  d.nextGen,
		modified:    time.Now().Unix(),
	}
	d.nextGen++
	d.objects[key] = o

	action := queue.ActionCreate
	if exists {
		action = queue.ActionUpdate
	}
	size := int64(len(data))
	return &storage.WriteResult{
		PublicURL:  d.conf.ReadURL + key,
		ETag:       o.etag,
		SizeChange: size - oldSize,
		FileLogs: []queue.FileLog{{
			Path:            key,
			AssocIssAddress: args.AssocIssAddress,
			Action:          action,
			Size:            size,
			SizeChange:      size - oldSize,
			CreateDT:        time.Now(),
		}},
	}, nil
}

func (d *memdriver) PerformDelete(ctx context.Context, args storage.DeleteArgs) (*storage.DeleteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, exists := d.objects[key]
	if !exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.etag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}
	size := int64(len(cur.data))
	delete(d.objects, key)
	return &storage.DeleteResult{
		SizeChange: -size,
		FileLogs: []queue.FileLog{{
			Path:            key,
			AssocIssAddress: args.AssocIssAddress,
			Action:          queue.ActionDelete,
			SizeChange:      -size,
			CreateDT:        time.Now(),
		}},
	}, nil
}

func (d *memdriver) PerformRename(ctx context.Context, args storage.RenameArgs) (*storage.RenameResult, error) {
	oldKey := args.StorageTopLevel + "/" + args.Path
	newKey := args.StorageTopLevel + "/" + args.NewPath
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, exists := d.objects[oldKey]
	if !exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.etag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}
	size := int64(len(cur.data))
	d.objects[newKey] = &object{
		data:        cur.data,
		contentType: cur.contentType,
		etag:        cur.etag,
		generation:  d.nextGen,
		modified:    time.Now().Unix(),
	}
	d.nextGen++
	delete(d.objects, oldKey)
	now := time.Now()
	return &storage.RenameResult{
		FileLogs: []queue.FileLog{
			{
				Path:            oldKey,
				AssocIssAddress: args.AssocIssAddress,
				Action:          queue.ActionDelete,
				SizeChange:      -size,
				CreateDT:        now,
			},
			{
				Path:            newKey,
				AssocIssAddress: args.AssocIssAddress,
				Action:          queue.ActionCreate,
				Size:            size,
				SizeChange:      size,
				CreateDT:        now,
			},
		},
	}, nil
}

func (d *memdriver) ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error) {
	key := storage.AuthTimestampPath(bucketAddress)
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.objects[key]
	if !ok {
		return 0, nil
	}
	var rec storage.AuthTimestampRecord
	if err := json.Unmarshal(cur.data, &rec); err != nil {
		return 0, nil
	}
	return rec.Timestamp, nil
}

func (d *memdriver) WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error {
	key := storage.AuthTimestampPath(bucketAddress)
	d.mu.Lock()
	defer d.mu.Unlock()
	var rec storage.AuthTimestampRecord
	if cur, ok := d.objects[key]; ok {
		if err := json.Unmarshal(cur.data, &rec); err == nil && rec.Timestamp >= timestamp {
			return nil
		}
	}
	now := time.Now().UnixMilli()
	if rec.CreateDate == 0 {
		rec.CreateDate = now
	}
	rec.Timestamp = timestamp
	rec.UpdateDate = now
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "error encoding auth timestamp")
	}
	sum := md5.Sum(data)
	d.objects[key] = &object{
		data:        data,
		contentType: "application/json",
		etag:        storage.ETagFromMD5(sum[:]),
		generation:  d.nextGen,
		modified:    time.Now().Unix(),
	}
	d.nextGen++
	return nil
}

func (d *memdriver) ReadBlacklistStatus(ctx context.Context, address string) (int, error) {
	key := storage.BlacklistPath(address)
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.objects[key]
	if !ok {
		return 0, nil
	}
	var rec storage.BlacklistRecord
	if err := json.Unmarshal(cur.data, &rec); err != nil {
		return 0, nil
	}
	return rec.Type, nil
}
