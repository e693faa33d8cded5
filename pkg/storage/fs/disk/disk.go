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

// Package disk implements the storage driver on a local filesystem.
// Object bodies live under the configured root, object metadata (etag,
// content type, generation) lives in extended attributes, uploads land
// atomically through a temp file rename. A shared flock serializes the
// stat-check-commit window so the generation fence also holds across
// processes on the same host.
package disk

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/gaiahub/hub/pkg/storage/fs/registry"
	"github.com/google/renameio/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/pkg/xattr"
	"github.com/rogpeppe/go-internal/lockedfile"
)

func init() {
	registry.Register("disk", New)
}

const (
	etagAttr        = "user.hub.etag"
	contentTypeAttr = "user.hub.content_type"
	generationAttr  = "user.hub.generation"

	lockName = ".hub.lock"
	tmpName  = ".hub.tmp"
)

type config struct {
	Root     string `mapstructure:"root"`
	ReadURL  string `mapstructure:"read_url"`
	PageSize int    `mapstructure:"page_size"`
}

func (c *config) init() {
	if c.Root == "" {
		c.Root = "/var/tmp/hub"
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

type diskdriver struct {
	conf *config
}

// New returns an implementation of the storage.Driver interface that
// keeps objects on a local filesystem.
func New(m map[string]interface{}) (storage.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	c.init()
	if c.ReadURL == "" {
		return nil, errors.New("disk: read_url must be configured")
	}
	if !strings.HasSuffix(c.ReadURL, "/") {
		c.ReadURL += "/"
	}
	return &diskdriver{conf: c}, nil
}

func (d *diskdriver) EnsureInitialized(ctx context.Context) error {
	if err := os.MkdirAll(d.conf.Root, 0755); err != nil {
		return errors.Wrap(err, "disk: could not create root")
	}
	return os.MkdirAll(filepath.Join(d.conf.Root, tmpName), 0755)
}

func (d *diskdriver) ReadURLPrefix() string { return d.conf.ReadURL }

func (d *diskdriver) Close() error { return nil }

// abs maps a storage key to a filesystem path and refuses keys that
// would resolve outside the root.
func (d *diskdriver) abs(key string) (string, error) {
	p := filepath.Join(d.conf.Root, filepath.FromSlash(key))
	if p != d.conf.Root && !strings.HasPrefix(p, d.conf.Root+string(filepath.Separator)) {
		return "", errtypes.BadPath("Invalid path")
	}
	return p, nil
}

// lock takes the driver-wide commit lock. It covers the re-stat plus
// rename of a mutation, not the body streaming.
func (d *diskdriver) lock() (func(), error) {
	f, err := lockedfile.OpenFile(filepath.Join(d.conf.Root, lockName), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "disk: could not take commit lock")
	}
	return func() { f.Close() }, nil
}

func (d *diskdriver) stat(key string) (*storage.Metadata, error) {
	p, err := d.abs(key)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &storage.Metadata{Name: key, Exists: false}, nil
		}
		return nil, errors.Wrap(err, "disk: stat failed")
	}
	if fi.IsDir() {
		return &storage.Metadata{Name: key, Exists: false}, nil
	}

	md := &storage.Metadata{
		Name:          key,
		Exists:        true,
		ContentLength: fi.Size(),
		LastModified:  fi.ModTime().Unix(),
	}
	if v, err := xattr.Get(p, etagAttr); err == nil {
		md.ETag = string(v)
	} else {
		sum, err := fileMD5(p)
		if err != nil {
			return nil, err
		}
		md.ETag = storage.ETagFromMD5(sum)
	}
	if v, err := xattr.Get(p, contentTypeAttr); err == nil {
		md.ContentType = string(v)
	} else if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		md.ContentType = ct
	} else {
		md.ContentType = "application/octet-stream"
	}
	if v, err := xattr.Get(p, generationAttr); err == nil {
		md.Generation, _ = strconv.ParseInt(string(v), 10, 64)
	} else {
		md.Generation = fi.ModTime().UnixNano()
	}
	return md, nil
}

func fileMD5(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "disk: could not hash file")
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, errors.Wrap(err, "disk: could not hash file")
	}
	return h.Sum(nil), nil
}

func (d *diskdriver) PerformStat(ctx context.Context, args storage.StatArgs) (*storage.Metadata, error) {
	md, err := d.stat(args.StorageTopLevel + "/" + args.Path)
	if err != nil {
		return nil, err
	}
	md.Name = args.Path
	return md, nil
}

func (d *diskdriver) PerformWrite(ctx context.Context, args storage.WriteArgs) (*storage.WriteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path
	p, err := d.abs(key)
	if err != nil {
		return nil, err
	}

	cur, err := d.stat(key)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckPreconditions(cur.Exists, cur.ETag, args.IfMatchTag, args.IfNoneMatchTag); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, errors.Wrap(err, "disk: could not create parent")
	}
	pending, err := renameio.NewPendingFile(p,
		renameio.WithTempDir(filepath.Join(d.conf.Root, tmpName)),
		renameio.WithPermissions(0644))
	if err != nil {
		return nil, errors.Wrap(err, "disk: could not create temp file")
	}
	defer pending.Cleanup()

	h := md5.New()
	size, err := io.Copy(io.MultiWriter(pending, h), args.Content)
	if err != nil {
		return nil, err
	}
	etag := storage.ETagFromMD5(h.Sum(nil))

	unlock, err := d.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	// The key must not have moved since the stat above, absent counting
	// as generation 0.
	live, err := d.stat(key)
	if err != nil {
		return nil, err
	}
	var statGen, liveGen, oldSize int64
	if cur.Exists {
		statGen = cur.Generation
	}
	if live.Exists {
		liveGen, oldSize = live.Generation, live.ContentLength
	}
	if liveGen != statGen {
		return nil, errtypes.PreconditionFailed{
			Message: "The resource changed while the write was in flight",
			ETag:    live.ETag,
		}
	}

	gen := nextGeneration(liveGen)
	tmp := pending.Name()
	if err := xattr.Set(tmp, etagAttr, []byte(etag)); err != nil {
		return nil, errors.Wrap(err, "disk: could not set etag attribute")
	}
	if err := xattr.Set(tmp, contentTypeAttr, []byte(args.ContentType)); err != nil {
		return nil, errors.Wrap(err, "disk: could not set content type attribute")
	}
	if err := xattr.Set(tmp, generationAttr, []byte(strconv.FormatInt(gen, 10))); err != nil {
		return nil, errors.Wrap(err, "disk: could not set generation attribute")
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, errors.Wrap(err, "disk: could not commit file")
	}

	action := queue.ActionCreate
	if live.Exists {
		action = queue.ActionUpdate
	}
	return &storage.WriteResult{
		PublicURL:  d.conf.ReadURL + key,
		ETag:       etag,
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

func nextGeneration(cur int64) int64 {
	gen := time.Now().UnixNano()
	if gen <= cur {
		gen = cur + 1
	}
	return gen
}

func (d *diskdriver) PerformDelete(ctx context.Context, args storage.DeleteArgs) (*storage.DeleteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path
	p, err := d.abs(key)
	if err != nil {
		return nil, err
	}

	unlock, err := d.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := d.stat(key)
	if err != nil {
		return nil, err
	}
	if !cur.Exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.ETag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}
	if err := os.Remove(p); err != nil {
		return nil, errors.Wrap(err, "disk: could not remove file")
	}
	d.pruneEmptyParents(p, args.StorageTopLevel)

	return &storage.DeleteResult{
		SizeChange: -cur.ContentLength,
		FileLogs: []queue.FileLog{{
			Path:            key,
			AssocIssAddress: args.AssocIssAddress,
			Action:          queue.ActionDelete,
			SizeChange:      -cur.ContentLength,
			CreateDT:        time.Now(),
		}},
	}, nil
}

// pruneEmptyParents removes directories a delete emptied, stopping at
// the top level directory.
func (d *diskdriver) pruneEmptyParents(p, storageTopLevel string) {
	top, err := d.abs(storageTopLevel)
	if err != nil {
		return
	}
	for dir := filepath.Dir(p); dir != top && strings.HasPrefix(dir, top); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}

func (d *diskdriver) PerformRename(ctx context.Context, args storage.RenameArgs) (*storage.RenameResult, error) {
	oldKey := args.StorageTopLevel + "/" + args.Path
	newKey := args.StorageTopLevel + "/" + args.NewPath
	oldPath, err := d.abs(oldKey)
	if err != nil {
		return nil, err
	}
	newPath, err := d.abs(newKey)
	if err != nil {
		return nil, err
	}

	unlock, err := d.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := d.stat(oldKey)
	if err != nil {
		return nil, err
	}
	if !cur.Exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.ETag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}

	target, err := d.stat(newKey)
	if err != nil {
		return nil, err
	}
	var targetGen int64
	if target.Exists {
		targetGen = target.Generation
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return nil, errors.Wrap(err, "disk: could not create parent")
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, errors.Wrap(err, "disk: could not move file")
	}
	gen := nextGeneration(targetGen)
	if err := xattr.Set(newPath, generationAttr, []byte(strconv.FormatInt(gen, 10))); err != nil {
		return nil, errors.Wrap(err, "disk: could not set generation attribute")
	}
	d.pruneEmptyParents(oldPath, args.StorageTopLevel)

	now := time.Now()
	return &storage.RenameResult{
		FileLogs: []queue.FileLog{
			{
				Path:            oldKey,
				AssocIssAddress: args.AssocIssAddress,
				Action:          queue.ActionDelete,
				SizeChange:      -cur.ContentLength,
				CreateDT:        now,
			},
			{
				Path:            newKey,
				AssocIssAddress: args.AssocIssAddress,
				Action:          queue.ActionCreate,
				Size:            cur.ContentLength,
				SizeChange:      cur.ContentLength,
				CreateDT:        now,
			},
		},
	}, nil
}

// list walks the root and returns one page of keys matching the prefix,
// already stripped.
func (d *diskdriver) list(args storage.ListArgs) ([]string, string, error) {
	var keys []string
	err := filepath.WalkDir(d.conf.Root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		name := e.Name()
		if e.IsDir() {
			if p != d.conf.Root && strings.HasPrefix(name, ".hub.") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".hub.") {
			return nil
		}
		rel, err := filepath.Rel(d.conf.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, args.PathPrefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "disk: could not walk root")
	}

	size := storage.ClampPageSize(args.PageSize, d.conf.PageSize)
	keys, page := storage.Paginate(keys, args.Page, size)
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, args.PathPrefix)
	}
	return keys, page, nil
}

func (d *diskdriver) ListFiles(ctx context.Context, args storage.ListArgs) (*storage.ListResult, error) {
	entries, page, err := d.list(args)
	if err != nil {
		return nil, err
	}
	return &storage.ListResult{Entries: entries, Page: page}, nil
}

func (d *diskdriver) ListFilesStat(ctx context.Context, args storage.ListArgs) (*storage.ListStatResult, error) {
	names, page, err := d.list(args)
	if err != nil {
		return nil, err
	}
	entries := make([]*storage.Metadata, 0, len(names))
	for _, name := range names {
		md, err := d.stat(args.PathPrefix + name)
		if err != nil {
			return nil, err
		}
		if !md.Exists {
			continue
		}
		md.Name = name
		entries = append(entries, md)
	}
	return &storage.ListStatResult{Entries: entries, Page: page}, nil
}

func (d *diskdriver) ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error) {
	p, err := d.abs(storage.AuthTimestampPath(bucketAddress))
	if err != nil {
		return 0, err
	}
	data, err := lockedfile.Read(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "disk: could not read auth timestamp")
	}
	var rec storage.AuthTimestampRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, nil
	}
	return rec.Timestamp, nil
}

func (d *diskdriver) WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error {
	p, err := d.abs(storage.AuthTimestampPath(bucketAddress))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrap(err, "disk: could not create parent")
	}

	f, err := lockedfile.OpenFile(p, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrap(err, "disk: could not open auth timestamp")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "disk: could not read auth timestamp")
	}
	var rec storage.AuthTimestampRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err == nil && rec.Timestamp >= timestamp {
			return nil
		}
	}
	now := time.Now().UnixMilli()
	if rec.CreateDate == 0 {
		rec.CreateDate = now
	}
	rec.Timestamp = timestamp
	rec.UpdateDate = now
	out, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "disk: could not encode auth timestamp")
	}
	if err := f.Truncate(0); err != nil {
		return errors.Wrap(err, "disk: could not truncate auth timestamp")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "disk: could not rewind auth timestamp")
	}
	if _, err := f.Write(out); err != nil {
		return errors.Wrap(err, "disk: could not write auth timestamp")
	}
	return nil
}

func (d *diskdriver) ReadBlacklistStatus(ctx context.Context, address string) (int, error) {
	p, err := d.abs(storage.BlacklistPath(address))
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "disk: could not read blacklist record")
	}
	var rec storage.BlacklistRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, nil
	}
	return rec.Type, nil
}
