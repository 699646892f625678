package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeS3 is an in-memory bucket implementing s3API.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*fakeObject
	putErr  error
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: map[string]*fakeObject{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = &fakeObject{
		data:        data,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) get(key string) (*fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.get(*in.Key)
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.get(*in.Key)
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key, obj := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key), LastModified: aws.Time(obj.modified)})
		}
	}
	return out, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.example.com/" + *in.Bucket + "/" + *in.Key, Method: "GET"}, nil
}

func TestS3Store_SaveURLClaim(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeS3("media")
	store := newS3Store(bucket, fakePresigner{}, "media", "uploads/", 1024)

	id, err := store.Save(ctx, "cat.png", "image/png", 3, bytes.NewReader([]byte("png")))
	require.NoError(t, err)

	obj, ok := bucket.get("uploads/" + id)
	require.True(t, ok)
	require.Equal(t, "cat.png", obj.metadata["original-filename"])

	u, err := store.URL(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "https://s3.example.com/media/uploads/"+id, u)

	file, err := store.Claim(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "cat.png", file.Filename)
	require.Equal(t, "image/png", file.ContentType)
	require.Equal(t, int64(3), file.Size)
	require.Equal(t, u, file.URL)

	data, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	require.Equal(t, "png", string(data))

	_, ok = bucket.get("uploads/" + id)
	require.True(t, ok, "object survives until the claim is closed")
	require.NoError(t, file.Close())
	_, ok = bucket.get("uploads/" + id)
	require.False(t, ok)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeS3("media")
	store := newS3Store(bucket, fakePresigner{}, "media", "", 2)

	_, err := store.Save(ctx, "a", "text/plain", 5, bytes.NewReader([]byte("12345")))
	require.ErrorIs(t, err, ErrTooLarge)
	_, err = store.Save(ctx, "a", "text/plain", 0, bytes.NewReader([]byte("12345")))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Claim(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.URL(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	bucket.putErr = errors.New("access denied")
	_, err = store.Save(ctx, "a", "text/plain", 1, bytes.NewReader([]byte("1")))
	require.ErrorContains(t, err, "access denied")
}

func TestS3Store_Cleanup(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeS3("media")
	store := newS3Store(bucket, fakePresigner{}, "media", "tmp/", 0).WithURLExpiry(time.Minute)

	oldID, err := store.Save(ctx, "old", "text/plain", 1, bytes.NewReader([]byte("o")))
	require.NoError(t, err)
	newID, err := store.Save(ctx, "new", "text/plain", 1, bytes.NewReader([]byte("n")))
	require.NoError(t, err)

	bucket.mu.Lock()
	bucket.objects["tmp/"+oldID].modified = time.Now().Add(-2 * time.Hour)
	bucket.objects["keep/other"] = &fakeObject{modified: time.Now().Add(-48 * time.Hour)}
	bucket.mu.Unlock()

	require.NoError(t, store.Cleanup(ctx, time.Hour))

	_, ok := bucket.get("tmp/" + oldID)
	require.False(t, ok)
	_, ok = bucket.get("tmp/" + newID)
	require.True(t, ok)
	_, ok = bucket.get("keep/other")
	require.True(t, ok, "objects outside the prefix are untouched")
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(S3ClientConfig{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	opts := client.Options()
	require.Equal(t, "eu-west-1", opts.Region)
	require.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	require.True(t, opts.UsePathStyle)

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "key", creds.AccessKeyID)

	require.NotNil(t, NewS3Store(client, "media", "uploads/", 0))
}
