package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	// Drain the body as the real client would.
	if params.Body != nil {
		_, _ = io.Copy(io.Discard, params.Body)
	}
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestS3UploaderUpload(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "backups" &&
			aws.ToString(in.Key) == "daily/snaphot.tar.gz" &&
			aws.ToInt64(in.ContentLength) == 7 &&
			aws.ToString(in.ContentType) == "application/gzip"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	u := &S3Uploader{client: client, bucket: "backups"}
	result, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName:    "daily/snaphot.tar.gz",
		Content:       strings.NewReader("archive"),
		ContentLength: 7,
		ContentType:   "application/gzip",
	})
	require.NoError(t, err)

	assert.Equal(t, "daily/snaphot.tar.gz", result.ObjectName)
	assert.Equal(t, "s3://backups/daily/snaphot.tar.gz", result.Location)
	client.AssertExpectations(t)
}

func TestS3UploaderUnknownLength(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return in.ContentLength == nil && in.ContentType == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	u := &S3Uploader{client: client, bucket: "backups"}
	_, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName:    "snaphot.tar.gz",
		Content:       strings.NewReader("x"),
		ContentLength: -1,
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestS3UploaderFailureIsNotRetried(t *testing.T) {
	denied := errors.New("AccessDenied")
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, denied).Once()

	u := &S3Uploader{client: client, bucket: "backups"}
	_, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName: "snaphot.tar.gz",
		Content:    strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "s3://backups/snaphot.tar.gz")
	client.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestLocalUploaderUpload(t *testing.T) {
	base := filepath.Join(t.TempDir(), "bucket")
	u, err := NewLocalUploader(base)
	require.NoError(t, err)

	result, err := u.Upload(context.Background(), &UploadRequest{
		ObjectName: "daily/snaphot.tar.gz",
		Content:    strings.NewReader("first"),
	})
	require.NoError(t, err)

	dest := filepath.Join(base, "daily", "snaphot.tar.gz")
	assert.Equal(t, "file://"+filepath.ToSlash(dest), result.Location)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	// A second upload replaces the object.
	_, err = u.Upload(context.Background(), &UploadRequest{
		ObjectName: "daily/snaphot.tar.gz",
		Content:    strings.NewReader("second"),
	})
	require.NoError(t, err)
	b, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	entries, err := os.ReadDir(filepath.Join(base, "daily"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalUploaderRejectsEscape(t *testing.T) {
	u, err := NewLocalUploader(t.TempDir())
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), &UploadRequest{
		ObjectName: "../outside/snaphot.tar.gz",
		Content:    strings.NewReader("x"),
	})
	assert.ErrorContains(t, err, "escapes base directory")
}

func TestWithin(t *testing.T) {
	tests := []struct {
		base string
		path string
		want bool
	}{
		{base: "/", path: "/snaphot.tar.gz", want: true},
		{base: "/", path: "/daily/snaphot.tar.gz", want: true},
		{base: "/srv/bucket", path: "/srv/bucket/daily/snaphot.tar.gz", want: true},
		{base: "/srv/bucket", path: "/srv/bucket/..data", want: true},
		{base: "/srv/bucket", path: "/srv/bucket", want: false},
		{base: "/srv/bucket", path: "/srv/outside/snaphot.tar.gz", want: false},
		{base: "/srv/bucket", path: "/srv/bucket-other/snaphot.tar.gz", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.base+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, within(filepath.FromSlash(tt.base), filepath.FromSlash(tt.path)))
		})
	}
}

func TestLocalUploaderCancelled(t *testing.T) {
	u, err := NewLocalUploader(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = u.Upload(ctx, &UploadRequest{ObjectName: "x", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalUploaderRequiresDirectory(t *testing.T) {
	_, err := NewLocalUploader("")
	assert.Error(t, err)
}
