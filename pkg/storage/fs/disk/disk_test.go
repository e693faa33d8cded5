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

package disk

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gaiahub/hub/pkg/errtypes"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/pkg/xattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "15GAGiT2j2F1EzZrvjk3B8vBCfwVEzQaZx"

func newDriver(t *testing.T) storage.Driver {
	t.Helper()
	root := t.TempDir()

	probe := filepath.Join(root, "probe")
	require.NoError(t, os.WriteFile(probe, nil, 0644))
	if err := xattr.Set(probe, etagAttr, []byte("1")); err != nil {
		t.Skipf("extended attributes not supported on %s: %v", root, err)
	}
	require.NoError(t, os.Remove(probe))

	d, err := New(map[string]interface{}{
		"root":     root,
		"read_url": "https://hub.example.com/read",
	})
	require.NoError(t, err)
	require.NoError(t, d.EnsureInitialized(context.Background()))
	return d
}

func write(t *testing.T, d storage.Driver, path, body string) *storage.WriteResult {
	t.Helper()
	res, err := d.PerformWrite(context.Background(), storage.WriteArgs{
		StorageTopLevel: bucket,
		Path:            path,
		Content:         strings.NewReader(body),
		ContentType:     "text/plain",
		ContentLength:   int64(len(body)),
	})
	require.NoError(t, err)
	return res
}

func TestWriteAndStat(t *testing.T) {
	d := newDriver(t)
	res := write(t, d, "dir/hello.txt", "hello")

	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, res.ETag)
	assert.Equal(t, "https://hub.example.com/read/"+bucket+"/dir/hello.txt", res.PublicURL)
	assert.Equal(t, int64(5), res.SizeChange)

	md, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "dir/hello.txt"})
	require.NoError(t, err)
	assert.True(t, md.Exists)
	assert.Equal(t, res.ETag, md.ETag)
	assert.Equal(t, "text/plain", md.ContentType)
	assert.Equal(t, int64(5), md.ContentLength)
	assert.Positive(t, md.Generation)
}

func TestOverwriteBumpsGeneration(t *testing.T) {
	d := newDriver(t)
	write(t, d, "a.txt", "one")
	before, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "a.txt"})
	require.NoError(t, err)

	res := write(t, d, "a.txt", "twotwo")
	assert.Equal(t, int64(3), res.SizeChange)

	after, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "a.txt"})
	require.NoError(t, err)
	assert.Greater(t, after.Generation, before.Generation)
}

func TestWritePreconditions(t *testing.T) {
	d := newDriver(t)
	res := write(t, d, "a.txt", "one")

	_, err := d.PerformWrite(context.Background(), storage.WriteArgs{
		StorageTopLevel: bucket,
		Path:            "a.txt",
		Content:         strings.NewReader("x"),
		IfMatchTag:      `"ffffffffffffffffffffffffffffffff"`,
	})
	var pf errtypes.PreconditionFailed
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, res.ETag, pf.ETag)

	_, err = d.PerformWrite(context.Background(), storage.WriteArgs{
		StorageTopLevel: bucket,
		Path:            "a.txt",
		Content:         strings.NewReader("x"),
		IfNoneMatchTag:  "*",
	})
	require.ErrorAs(t, err, &pf)
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	d := newDriver(t)
	write(t, d, "photos/2024/x.jpg", "bytes")

	_, err := d.PerformDelete(context.Background(), storage.DeleteArgs{StorageTopLevel: bucket, Path: "photos/2024/x.jpg"})
	require.NoError(t, err)

	dd := d.(*diskdriver)
	_, err = os.Stat(filepath.Join(dd.conf.Root, bucket, "photos"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissing(t *testing.T) {
	d := newDriver(t)
	_, err := d.PerformDelete(context.Background(), storage.DeleteArgs{StorageTopLevel: bucket, Path: "nope"})
	var dne errtypes.DoesNotExist
	require.ErrorAs(t, err, &dne)
}

func TestRenameKeepsMetadata(t *testing.T) {
	d := newDriver(t)
	res := write(t, d, "photos/x.jpg", "jpegbytes")

	_, err := d.PerformRename(context.Background(), storage.RenameArgs{
		StorageTopLevel: bucket,
		Path:            "photos/x.jpg",
		NewPath:         "photos/.history.1.abcdefghij.x.jpg",
	})
	require.NoError(t, err)

	old, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "photos/x.jpg"})
	require.NoError(t, err)
	assert.False(t, old.Exists)

	moved, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "photos/.history.1.abcdefghij.x.jpg"})
	require.NoError(t, err)
	assert.True(t, moved.Exists)
	assert.Equal(t, res.ETag, moved.ETag)
	assert.Equal(t, "text/plain", moved.ContentType)
}

func TestListSkipsInternalFiles(t *testing.T) {
	d := newDriver(t)
	write(t, d, "a.txt", "1")
	write(t, d, "b/c.txt", "2")
	require.NoError(t, d.WriteAuthTimestamp(context.Background(), bucket, 7))

	res, err := d.ListFiles(context.Background(), storage.ListArgs{PathPrefix: bucket + "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, res.Entries)
}

func TestListPagination(t *testing.T) {
	d := newDriver(t)
	for _, p := range []string{"a", "b", "c"} {
		write(t, d, p, "x")
	}

	var got []string
	page := ""
	for {
		res, err := d.ListFiles(context.Background(), storage.ListArgs{
			PathPrefix: bucket + "/",
			Page:       page,
			PageSize:   2,
		})
		require.NoError(t, err)
		got = append(got, res.Entries...)
		if res.Page == "" {
			break
		}
		page = res.Page
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestListFilesStat(t *testing.T) {
	d := newDriver(t)
	write(t, d, "a.txt", "hello")

	res, err := d.ListFilesStat(context.Background(), storage.ListArgs{PathPrefix: bucket + "/"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "a.txt", res.Entries[0].Name)
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, res.Entries[0].ETag)
	assert.Equal(t, int64(5), res.Entries[0].ContentLength)
}

func TestAuthTimestampMonotone(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	ts, err := d.ReadAuthTimestamp(ctx, bucket)
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, d.WriteAuthTimestamp(ctx, bucket, 500))
	require.NoError(t, d.WriteAuthTimestamp(ctx, bucket, 100))
	ts, err = d.ReadAuthTimestamp(ctx, bucket)
	require.NoError(t, err)
	assert.EqualValues(t, 500, ts)
}

func TestReadBlacklistStatus(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	typ, err := d.ReadBlacklistStatus(ctx, "1BadActor")
	require.NoError(t, err)
	assert.Zero(t, typ)

	dd := d.(*diskdriver)
	p := filepath.Join(dd.conf.Root, "hub-blacklist", "1BadActor")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(`{"type":1}`), 0644))

	typ, err = d.ReadBlacklistStatus(ctx, "1BadActor")
	require.NoError(t, err)
	assert.Equal(t, 1, typ)
}

func TestPathEscapeRejected(t *testing.T) {
	d := newDriver(t)
	_, err := d.PerformStat(context.Background(), storage.StatArgs{StorageTopLevel: bucket, Path: "../../etc/passwd"})
	var bp errtypes.BadPath
	require.ErrorAs(t, err, &bp)
}
