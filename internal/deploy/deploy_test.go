package deploy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, key, contentType, cacheControl, body string
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{
		bucket:       aws.ToString(in.Bucket),
		key:          aws.ToString(in.Key),
		contentType:  aws.ToString(in.ContentType),
		cacheControl: aws.ToString(in.CacheControl),
		body:         string(b),
	})
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func TestUploadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "<html></html>")
	writeFile(t, filepath.Join(dir, "blog", "hello", "index.html"), "hello")
	writeFile(t, filepath.Join(dir, "static", "images", "abc-480.jpg"), "jpg")

	fake := &fakePutter{}
	n, err := New(fake, "bucket", "/site/", nil).UploadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	byKey := make(map[string]putCall)
	for _, c := range fake.calls {
		assert.Equal(t, "bucket", c.bucket)
		byKey[c.key] = c
	}
	require.Contains(t, byKey, "site/index.html")
	require.Contains(t, byKey, "site/blog/hello/index.html")
	require.Contains(t, byKey, "site/static/images/abc-480.jpg")

	assert.Equal(t, "hello", byKey["site/blog/hello/index.html"].body)
	assert.Contains(t, byKey["site/index.html"].contentType, "text/html")
	assert.Equal(t, "image/jpeg", byKey["site/static/images/abc-480.jpg"].contentType)
	assert.Contains(t, byKey["site/static/images/abc-480.jpg"].cacheControl, "immutable")
	assert.Equal(t, "public, max-age=300", byKey["site/index.html"].cacheControl)
}

func TestUploadDirNoPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sitemap.xml"), "<urlset/>")

	fake := &fakePutter{}
	_, err := New(fake, "b", "", nil).UploadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "sitemap.xml", fake.calls[0].key)
}

func TestUploadDirError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "x")

	boom := errors.New("boom")
	_, err := New(&fakePutter{err: boom}, "b", "", nil).UploadDir(context.Background(), dir)
	require.ErrorIs(t, err, boom)
}

func TestContentTypeFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType("LICENSE"))
}
