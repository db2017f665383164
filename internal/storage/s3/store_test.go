package s3

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheerr "github.com/stratacache/stratacache/pkg/errors"
)

type fakeObject struct {
	body     []byte
	metadata map[string]string
}

type fakeClient struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	getErr  error
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]fakeObject)}
}

func (f *fakeClient) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = fakeObject{body: body, metadata: params.Metadata}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(params.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &awss3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func compressiblePayload(n int) []byte {
	return bytes.Repeat([]byte("stratacache "), n/12+1)[:n]
}

func TestStoreRoundTrip(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "", discardLogger())
	ctx := context.Background()

	plain := compressiblePayload(8 * 1024)
	require.NoError(t, store.Set(ctx, "k", plain, time.Hour))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, plain, value)
}

func TestStoreCompressesPayloads(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "", discardLogger())
	ctx := context.Background()

	plain := compressiblePayload(8 * 1024)
	require.NoError(t, store.Set(ctx, "k", plain, time.Hour))

	client.mu.Lock()
	stored := client.objects["k"].body
	client.mu.Unlock()

	assert.Less(t, len(stored), len(plain))
	assert.NotEqual(t, plain, stored)
}

func TestStoreGetMissing(t *testing.T) {
	store := New(newFakeClient(), "bucket", "", discardLogger())

	_, err := store.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, cacheerr.IsNotFound(err))
}

func TestStoreKeyPrefix(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "overflow", discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("value"), time.Hour))

	client.mu.Lock()
	_, ok := client.objects["overflow/k"]
	client.mu.Unlock()
	assert.True(t, ok)

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
}

func TestStoreExpiry(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "", discardLogger())
	ctx := context.Background()

	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return t0 }

	require.NoError(t, store.Set(ctx, "k", []byte("value"), time.Hour))

	// Before expiry.
	store.now = func() time.Time { return t0.Add(30 * time.Minute) }
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	// After expiry.
	store.now = func() time.Time { return t0.Add(2 * time.Hour) }
	_, err = store.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, cacheerr.IsNotFound(err))

	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreNoTTLNeverExpires(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "", discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("value"), 0))

	store.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
}

func TestStoreDelete(t *testing.T) {
	client := newFakeClient()
	store := New(client, "bucket", "", discardLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("value"), time.Hour))

	removed, err := store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStoreConnectivityFault(t *testing.T) {
	client := newFakeClient()
	client.getErr = io.ErrUnexpectedEOF
	store := New(client, "bucket", "", discardLogger())

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, cacheerr.IsConnectivity(err))
	assert.False(t, cacheerr.IsNotFound(err))
}
