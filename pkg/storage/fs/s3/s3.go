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

// Package s3 implements the storage driver on any s3 compatible store
// through the minio client. S3 has no generation numbers, so the write
// fence rides on conditional headers: If-Match with the statted etag
// for overwrites, If-None-Match star for creates.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/gaiahub/hub/pkg/storage/fs/registry"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

func init() {
	registry.Register("s3", New)
}

type config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	ReadURL   string `mapstructure:"read_url"`
	PageSize  int    `mapstructure:"page_size"`
}

func (c *config) init() {
	if c.Endpoint == "" {
		c.Endpoint = "https://s3.amazonaws.com"
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

type s3driver struct {
	conf   *config
	client *minio.Client
}

// New returns an implementation of the storage.Driver interface that
// talks to an s3 compatible blobstore.
func New(m map[string]interface{}) (storage.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	c.init()
	if c.Bucket == "" {
		return nil, errors.New("s3: bucket must be configured")
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse s3 endpoint")
	}
	useSSL := u.Scheme != "http"
	client, err := minio.New(u.Host, &minio.Options{
		Region: c.Region,
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup s3 client")
	}

	if c.ReadURL == "" {
		c.ReadURL = u.Scheme + "://" + u.Host + "/" + c.Bucket + "/"
	}
	if !strings.HasSuffix(c.ReadURL, "/") {
		c.ReadURL += "/"
	}
	return &s3driver{conf: c, client: client}, nil
}

func (d *s3driver) EnsureInitialized(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.conf.Bucket)
	if err != nil {
		return errors.Wrapf(err, "could not check bucket '%s'", d.conf.Bucket)
	}
	if exists {
		return nil
	}
	err = d.client.MakeBucket(ctx, d.conf.Bucket, minio.MakeBucketOptions{Region: d.conf.Region})
	return errors.Wrapf(err, "could not create bucket '%s'", d.conf.Bucket)
}

func (d *s3driver) ReadURLPrefix() string { return d.conf.ReadURL }

func (d *s3driver) Close() error { return nil }

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	return minio.ToErrorResponse(err).StatusCode == http.StatusPreconditionFailed
}

func (d *s3driver) stat(ctx context.Context, key string) (*storage.Metadata, error) {
	info, err := d.client.StatObject(ctx, d.conf.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return &storage.Metadata{Name: key, Exists: false}, nil
		}
		return nil, errors.Wrapf(err, "could not stat object '%s'", key)
	}
	return &storage.Metadata{
		Name:          key,
		Exists:        true,
		ETag:          storage.NormalizeETag(info.ETag),
		ContentType:   info.ContentType,
		ContentLength: info.Size,
		Generation:    info.LastModified.UnixNano(),
		LastModified:  info.LastModified.Unix(),
	}, nil
}

func (d *s3driver) PerformStat(ctx context.Context, args storage.StatArgs) (*storage.Metadata, error) {
	md, err := d.stat(ctx, args.StorageTopLevel+"/"+args.Path)
	if err != nil {
		return nil, err
	}
	md.Name = args.Path
	return md, nil
}

// condition fences an upload on the state observed at stat time.
func condition(opts *minio.PutObjectOptions, cur *storage.Metadata) {
	if cur.Exists {
		opts.SetMatchETag(strings.Trim(cur.ETag, `"`))
	} else {
		opts.SetMatchETagExcept("*")
	}
}

func (d *s3driver) PerformWrite(ctx context.Context, args storage.WriteArgs) (*storage.WriteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path

	cur, err := d.stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckPreconditions(cur.Exists, cur.ETag, args.IfMatchTag, args.IfNoneMatchTag); err != nil {
		return nil, err
	}

	// Multipart uploads produce composite etags. A single part PUT
	// keeps etag == md5(body), which the hub contract relies on.
	opts := minio.PutObjectOptions{
		ContentType:      args.ContentType,
		CacheControl:     args.CacheControl,
		DisableMultipart: true,
	}
	condition(&opts, cur)

	length := args.ContentLength
	if length < 0 {
		length = -1
	}
	info, err := d.client.PutObject(ctx, d.conf.Bucket, key, args.Content, length, opts)
	if err != nil {
		if isPreconditionFailed(err) {
			live, statErr := d.stat(ctx, key)
			if statErr != nil {
				live = cur
			}
			return nil, errtypes.PreconditionFailed{
				Message: "The resource changed while the write was in flight",
				ETag:    live.ETag,
			}
		}
		return nil, errors.Wrapf(err, "could not store object '%s'", key)
	}

	var oldSize int64
	if cur.Exists {
		oldSize = cur.ContentLength
	}
	action := queue.ActionCreate
	if cur.Exists {
		action = queue.ActionUpdate
	}
	return &storage.WriteResult{
		PublicURL:  d.conf.ReadURL + key,
		ETag:       storage.NormalizeETag(info.ETag),
		SizeChange: info.Size - oldSize,
		FileLogs: []queue.FileLog{{
			Path:            key,
			AssocIssAddress: args.AssocIssAddress,
			Action:          action,
			Size:            info.Size,
			SizeChange:      info.Size - oldSize,
			CreateDT:        time.Now(),
		}},
	}, nil
}

func (d *s3driver) PerformDelete(ctx context.Context, args storage.DeleteArgs) (*storage.DeleteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path

	cur, err := d.stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cur.Exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.ETag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}
	if err := d.client.RemoveObject(ctx, d.conf.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return nil, errors.Wrapf(err, "could not delete object '%s'", key)
	}
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

func (d *s3driver) PerformRename(ctx context.Context, args storage.RenameArgs) (*storage.RenameResult, error) {
	oldKey := args.StorageTopLevel + "/" + args.Path
	newKey := args.StorageTopLevel + "/" + args.NewPath

	cur, err := d.stat(ctx, oldKey)
	if err != nil {
		return nil, err
	}
	if !cur.Exists {
		return nil, errtypes.DoesNotExist("File does not exist")
	}
	if err := storage.CheckPreconditions(true, cur.ETag, args.IfMatchTag, ""); err != nil {
		return nil, err
	}

	src := minio.CopySrcOptions{
		Bucket:    d.conf.Bucket,
		Object:    oldKey,
		MatchETag: strings.Trim(cur.ETag, `"`),
	}
	dst := minio.CopyDestOptions{
		Bucket: d.conf.Bucket,
		Object: newKey,
	}
	if _, err := d.client.CopyObject(ctx, dst, src); err != nil {
		if isPreconditionFailed(err) {
			return nil, errtypes.PreconditionFailed{
				Message: "The resource changed while the move was in flight",
				ETag:    cur.ETag,
			}
		}
		return nil, errors.Wrapf(err, "could not copy object '%s'", oldKey)
	}
	if err := d.client.RemoveObject(ctx, d.conf.Bucket, oldKey, minio.RemoveObjectOptions{}); err != nil {
		return nil, errors.Wrapf(err, "could not delete object '%s'", oldKey)
	}

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

// list iterates one page of keys after the continuation token.
func (d *s3driver) list(ctx context.Context, args storage.ListArgs) ([]minio.ObjectInfo, string, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	size := storage.ClampPageSize(args.PageSize, d.conf.PageSize)
	objects := d.client.ListObjects(listCtx, d.conf.Bucket, minio.ListObjectsOptions{
		Prefix:     args.PathPrefix,
		Recursive:  true,
		StartAfter: args.Page,
	})

	var entries []minio.ObjectInfo
	var page string
	for obj := range objects {
		if obj.Err != nil {
			return nil, "", errors.Wrap(obj.Err, "could not list objects")
		}
		if len(entries) == size {
			page = entries[len(entries)-1].Key
			break
		}
		entries = append(entries, obj)
	}
	return entries, page, nil
}

func (d *s3driver) ListFiles(ctx context.Context, args storage.ListArgs) (*storage.ListResult, error) {
	objects, page, err := d.list(ctx, args)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, strings.TrimPrefix(obj.Key, args.PathPrefix))
	}
	return &storage.ListResult{Entries: entries, Page: page}, nil
}

func (d *s3driver) ListFilesStat(ctx context.Context, args storage.ListArgs) (*storage.ListStatResult, error) {
	objects, page, err := d.list(ctx, args)
	if err != nil {
		return nil, err
	}
	entries := make([]*storage.Metadata, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, &storage.Metadata{
			Name:          strings.TrimPrefix(obj.Key, args.PathPrefix),
			Exists:        true,
			ETag:          storage.NormalizeETag(obj.ETag),
			ContentLength: obj.Size,
			Generation:    obj.LastModified.UnixNano(),
			LastModified:  obj.LastModified.Unix(),
		})
	}
	return &storage.ListStatResult{Entries: entries, Page: page}, nil
}

// readRecord fetches and decodes a small JSON record, returning its
// etag for conditional rewrites.
func (d *s3driver) readRecord(ctx context.Context, key string, v interface{}) (etag string, exists bool, err error) {
	obj, err := d.client.GetObject(ctx, d.conf.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", false, errors.Wrapf(err, "could not get object '%s'", key)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "could not stat object '%s'", key)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return "", false, errors.Wrapf(err, "could not read object '%s'", key)
	}
	// A corrupt record decodes to zero values and gets rewritten by the
	// next conditional update.
	_ = json.Unmarshal(data, v)
	return info.ETag, true, nil
}

func (d *s3driver) ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error) {
	var rec storage.AuthTimestampRecord
	if _, _, err := d.readRecord(ctx, storage.AuthTimestampPath(bucketAddress), &rec); err != nil {
		return 0, err
	}
	return rec.Timestamp, nil
}

func (d *s3driver) WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error {
	key := storage.AuthTimestampPath(bucketAddress)
	return storage.Retry(func() error {
		var rec storage.AuthTimestampRecord
		etag, exists, err := d.readRecord(ctx, key, &rec)
		if err != nil {
			return err
		}
		if exists && rec.Timestamp >= timestamp {
			return nil
		}
		now := time.Now().UnixMilli()
		if rec.CreateDate == 0 {
			rec.CreateDate = now
		}
		rec.Timestamp = timestamp
		rec.UpdateDate = now
		out, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "could not encode auth timestamp")
		}

		opts := minio.PutObjectOptions{ContentType: "application/json", DisableMultipart: true}
		if exists {
			opts.SetMatchETag(strings.Trim(etag, `"`))
		} else {
			opts.SetMatchETagExcept("*")
		}
		_, err = d.client.PutObject(ctx, d.conf.Bucket, key, bytes.NewReader(out), int64(len(out)), opts)
		if err != nil {
			return errors.Wrapf(err, "could not store auth timestamp for '%s'", bucketAddress)
		}
		return nil
	})
}

func (d *s3driver) ReadBlacklistStatus(ctx context.Context, address string) (int, error) {
	var rec storage.BlacklistRecord
	if _, _, err := d.readRecord(ctx, storage.BlacklistPath(address), &rec); err != nil {
		return 0, err
	}
	return rec.Type, nil
}
