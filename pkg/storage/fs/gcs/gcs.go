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

// Package gcs implements the storage driver on Google Cloud Storage.
// GCS generations give the write fence natively: every mutation is
// conditioned on the generation observed at stat time, creates on the
// object not existing.
package gcs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/gaiahub/hub/pkg/storage/fs/registry"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	registry.Register("gcs", New)
}

type config struct {
	Bucket          string `mapstructure:"bucket"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	ReadURL         string `mapstructure:"read_url"`
	PageSize        int    `mapstructure:"page_size"`
}

func (c *config) init() {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.ReadURL == "" {
		c.ReadURL = "https://storage.googleapis.com/" + c.Bucket + "/"
	}
	if !strings.HasSuffix(c.ReadURL, "/") {
		c.ReadURL += "/"
	}
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "error decoding conf")
	}
	return c, nil
}

type gcsdriver struct {
	conf   *config
	client *gstorage.Client
}

// New returns an implementation of the storage.Driver interface that
// talks to Google Cloud Storage.
func New(m map[string]interface{}) (storage.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	if c.Bucket == "" {
		return nil, errors.New("gcs: bucket must be configured")
	}
	c.init()

	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	client, err := gstorage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup gcs client")
	}
	return &gcsdriver{conf: c, client: client}, nil
}

func (d *gcsdriver) EnsureInitialized(ctx context.Context) error {
	bkt := d.client.Bucket(d.conf.Bucket)
	_, err := bkt.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gstorage.ErrBucketNotExist) || d.conf.ProjectID == "" {
		return errors.Wrapf(err, "could not check bucket '%s'", d.conf.Bucket)
	}
	err = bkt.Create(ctx, d.conf.ProjectID, nil)
	return errors.Wrapf(err, "could not create bucket '%s'", d.conf.Bucket)
}

func (d *gcsdriver) ReadURLPrefix() string { return d.conf.ReadURL }

func (d *gcsdriver) Close() error { return d.client.Close() }

func isGoogleStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

func attrsToMetadata(attrs *gstorage.ObjectAttrs, name string) *storage.Metadata {
	return &storage.Metadata{
		Name:          name,
		Exists:        true,
		ETag:          storage.ETagFromMD5(attrs.MD5),
		ContentType:   attrs.ContentType,
		ContentLength: attrs.Size,
		Generation:    attrs.Generation,
		LastModified:  attrs.Updated.Unix(),
	}
}

func (d *gcsdriver) stat(ctx context.Context, key string) (*storage.Metadata, error) {
	attrs, err := d.client.Bucket(d.conf.Bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return &storage.Metadata{Name: key, Exists: false}, nil
		}
		return nil, errors.Wrapf(err, "could not stat object '%s'", key)
	}
	return attrsToMetadata(attrs, key), nil
}

func (d *gcsdriver) PerformStat(ctx context.Context, args storage.StatArgs) (*storage.Metadata, error) {
	md, err := d.stat(ctx, args.StorageTopLevel+"/"+args.Path)
	if err != nil {
		return nil, err
	}
	md.Name = args.Path
	return md, nil
}

// fence returns the object handle conditioned on the state observed at
// stat time.
func fence(obj *gstorage.ObjectHandle, cur *storage.Metadata) *gstorage.ObjectHandle {
	if cur.Exists {
		return obj.If(gstorage.Conditions{GenerationMatch: cur.Generation})
	}
	return obj.If(gstorage.Conditions{DoesNotExist: true})
}

func (d *gcsdriver) PerformWrite(ctx context.Context, args storage.WriteArgs) (*storage.WriteResult, error) {
	key := args.StorageTopLevel + "/" + args.Path

	cur, err := d.stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckPreconditions(cur.Exists, cur.ETag, args.IfMatchTag, args.IfNoneMatchTag); err != nil {
		return nil, err
	}

	obj := d.client.Bucket(d.conf.Bucket).Object(key)
	wc := fence(obj, cur).NewWriter(ctx)
	wc.ContentType = args.ContentType
	wc.CacheControl = args.CacheControl
	if _, err := io.Copy(wc, args.Content); err != nil {
		wc.Close()
		return nil, err
	}
	if err := wc.Close(); err != nil {
		if isGoogleStatus(err, http.StatusPreconditionFailed) {
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

	attrs := wc.Attrs()
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
		ETag:       storage.ETagFromMD5(attrs.MD5),
		SizeChange: attrs.Size - oldSize,
		FileLogs: []queue.FileLog{{
			Path:            key,
			AssocIssAddress: args.AssocIssAddress,
			Action:          action,
			Size:            attrs.Size,
			SizeChange:      attrs.Size - oldSize,
			CreateDT:        time.Now(),
		}},
	}, nil
}

func (d *gcsdriver) PerformDelete(ctx context.Context, args storage.DeleteArgs) (*storage.DeleteResult, error) {
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

	obj := d.client.Bucket(d.conf.Bucket).Object(key)
	err = obj.If(gstorage.Conditions{GenerationMatch: cur.Generation}).Delete(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, errtypes.DoesNotExist("File does not exist")
		}
		if isGoogleStatus(err, http.StatusPreconditionFailed) {
			live, statErr := d.stat(ctx, key)
			if statErr != nil {
				live = cur
			}
			return nil, errtypes.PreconditionFailed{
				Message: "The resource changed while the delete was in flight",
				ETag:    live.ETag,
			}
		}
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

func (d *gcsdriver) PerformRename(ctx context.Context, args storage.RenameArgs) (*storage.RenameResult, error) {
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

	bkt := d.client.Bucket(d.conf.Bucket)
	src := bkt.Object(oldKey).If(gstorage.Conditions{GenerationMatch: cur.Generation})
	if _, err := bkt.Object(newKey).CopierFrom(src).Run(ctx); err != nil {
		if isGoogleStatus(err, http.StatusPreconditionFailed) {
			return nil, errtypes.PreconditionFailed{
				Message: "The resource changed while the move was in flight",
				ETag:    cur.ETag,
			}
		}
		return nil, errors.Wrapf(err, "could not copy object '%s'", oldKey)
	}
	err = bkt.Object(oldKey).If(gstorage.Conditions{GenerationMatch: cur.Generation}).Delete(ctx)
	if err != nil && !errors.Is(err, gstorage.ErrObjectNotExist) {
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

// list iterates one page of objects after the continuation token.
func (d *gcsdriver) list(ctx context.Context, args storage.ListArgs) ([]*gstorage.ObjectAttrs, string, error) {
	size := storage.ClampPageSize(args.PageSize, d.conf.PageSize)
	query := &gstorage.Query{Prefix: args.PathPrefix}
	if args.Page != "" {
		// StartOffset is inclusive, the token names the last key already
		// delivered.
		query.StartOffset = args.Page
	}

	it := d.client.Bucket(d.conf.Bucket).Objects(ctx, query)
	var entries []*gstorage.ObjectAttrs
	var page string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", errors.Wrap(err, "could not list objects")
		}
		if attrs.Name == args.Page {
			continue
		}
		if len(entries) == size {
			page = entries[len(entries)-1].Name
			break
		}
		entries = append(entries, attrs)
	}
	return entries, page, nil
}

func (d *gcsdriver) ListFiles(ctx context.Context, args storage.ListArgs) (*storage.ListResult, error) {
	objects, page, err := d.list(ctx, args)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(objects))
	for _, attrs := range objects {
		entries = append(entries, strings.TrimPrefix(attrs.Name, args.PathPrefix))
	}
	return &storage.ListResult{Entries: entries, Page: page}, nil
}

func (d *gcsdriver) ListFilesStat(ctx context.Context, args storage.ListArgs) (*storage.ListStatResult, error) {
	objects, page, err := d.list(ctx, args)
	if err != nil {
		return nil, err
	}
	entries := make([]*storage.Metadata, 0, len(objects))
	for _, attrs := range objects {
		entries = append(entries, attrsToMetadata(attrs, strings.TrimPrefix(attrs.Name, args.PathPrefix)))
	}
	return &storage.ListStatResult{Entries: entries, Page: page}, nil
}

// readRecord fetches and decodes a small JSON record, returning the
// generation for conditional rewrites.
func (d *gcsdriver) readRecord(ctx context.Context, key string, v interface{}) (generation int64, exists bool, err error) {
	rc, err := d.client.Bucket(d.conf.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return 0, false, nil
		}
		return 0, false, errors.Wrapf(err, "could not get object '%s'", key)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, false, errors.Wrapf(err, "could not read object '%s'", key)
	}
	// A corrupt record decodes to zero values and gets rewritten by the
	// next conditional update.
	_ = json.Unmarshal(data, v)
	return rc.Attrs.Generation, true, nil
}

func (d *gcsdriver) ReadAuthTimestamp(ctx context.Context, bucketAddress string) (int64, error) {
	var rec storage.AuthTimestampRecord
	if _, _, err := d.readRecord(ctx, storage.AuthTimestampPath(bucketAddress), &rec); err != nil {
		return 0, err
	}
	return rec.Timestamp, nil
}

func (d *gcsdriver) WriteAuthTimestamp(ctx context.Context, bucketAddress string, timestamp int64) error {
	key := storage.AuthTimestampPath(bucketAddress)
	return storage.Retry(func() error {
		var rec storage.AuthTimestampRecord
		gen, exists, err := d.readRecord(ctx, key, &rec)
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

		obj := d.client.Bucket(d.conf.Bucket).Object(key)
		if exists {
			obj = obj.If(gstorage.Conditions{GenerationMatch: gen})
		} else {
			obj = obj.If(gstorage.Conditions{DoesNotExist: true})
		}
		wc := obj.NewWriter(ctx)
		wc.ContentType = "application/json"
		if _, err := wc.Write(out); err != nil {
			wc.Close()
			return err
		}
		if err := wc.Close(); err != nil {
			return errors.Wrapf(err, "could not store auth timestamp for '%s'", bucketAddress)
		}
		return nil
	})
}

func (d *gcsdriver) ReadBlacklistStatus(ctx context.Context, address string) (int, error) {
	var rec storage.BlacklistRecord
	if _, _, err := d.readRecord(ctx, storage.BlacklistPath(address), &rec); err != nil {
		return 0, err
	}
	return rec.Type, nil
}
