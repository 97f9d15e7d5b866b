package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	acls    map[string]types.ObjectCannedACL
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, acls: map[string]types.ObjectCannedACL{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	f.acls[aws.ToString(in.Key)] = in.ACL
	return &s3.PutObjectAclOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploader_UploadMakePublicDelete(t *testing.T) {
	fake := newFakeS3()
	u := &Uploader{cfg: Config{Bucket: "media", PublicBaseURL: "https://cdn.example.com/", Prefix: "/visionhub/"}, client: fake}
	ctx := context.Background()

	url, err := u.Upload(ctx, []byte("png"), "images/u1/f1.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/visionhub/images/u1/f1.png", url)
	assert.Equal(t, []byte("png"), fake.objects["visionhub/images/u1/f1.png"])
	assert.Empty(t, fake.acls)

	require.NoError(t, u.MakePublic(ctx, "images/u1/f1.png"))
	assert.Equal(t, types.ObjectCannedACLPublicRead, fake.acls["visionhub/images/u1/f1.png"])

	require.NoError(t, u.Delete(ctx, "images/u1/f1.png"))
	assert.NotContains(t, fake.objects, "visionhub/images/u1/f1.png")
}

func TestUploader_RejectsEmptyData(t *testing.T) {
	u := &Uploader{cfg: Config{Bucket: "media", PublicBaseURL: "https://cdn"}, client: newFakeS3()}
	_, err := u.Upload(context.Background(), nil, "images/u1/f1.png", "image/png")
	assert.Error(t, err)
}

func TestUploader_WrapsPutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("denied")
	u := &Uploader{cfg: Config{Bucket: "media", PublicBaseURL: "https://cdn"}, client: fake}
	_, err := u.Upload(context.Background(), []byte("x"), "videos/u1/f1.mp4", "video/mp4")
	assert.ErrorIs(t, err, fake.putErr)
}

func TestNewUploader_Validates(t *testing.T) {
	_, err := NewUploader(Config{Region: "us-east-1"})
	assert.Error(t, err)

	u, err := NewUploader(Config{Bucket: "b", Region: "us-east-1", AccessKey: "a", SecretKey: "s", PublicBaseURL: "https://cdn"})
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFor("image/png"))
	assert.Equal(t, ".jpg", ExtensionFor("IMAGE/JPEG"))
	assert.Equal(t, ".mp4", ExtensionFor("video/mp4"))
	assert.Equal(t, ".bin", ExtensionFor("text/plain"))
}
