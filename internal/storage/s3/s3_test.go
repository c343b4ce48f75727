package s3

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/file"
)

// --- Mock implementations ---

type mockClient struct {
	put     *s3.PutObjectInput
	body    string
	deleted []string
	batch   *s3.DeleteObjectsInput
	err     error
}

func (m *mockClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.put = in
	b, _ := io.ReadAll(in.Body)
	m.body = string(b)
	return &s3.PutObjectOutput{}, m.err
}

func (m *mockClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.deleted = append(m.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, m.err
}

func (m *mockClient) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.batch = in
	return &s3.DeleteObjectsOutput{Errors: []types.Error{{Key: aws.String("x"), Message: aws.String("denied")}}}, m.err
}

type mockPresigner struct {
	ttl time.Duration
}

func (m *mockPresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var o s3.PresignOptions
	for _, fn := range opts {
		fn(&o)
	}
	m.ttl = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket/" + aws.ToString(in.Key) + "?sig"}, nil
}

// --- Tests ---

func TestStore_Put(t *testing.T) {
	c := &mockClient{}
	s := NewStore(c, &mockPresigner{}, "images", time.Hour)

	err := s.Put(context.Background(), "cafes/1/productImages/a.png", file.Upload{
		Body:        strings.NewReader("png"),
		Size:        3,
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "images", aws.ToString(c.put.Bucket))
	assert.Equal(t, "cafes/1/productImages/a.png", aws.ToString(c.put.Key))
	assert.Equal(t, "image/png", aws.ToString(c.put.ContentType))
	assert.Equal(t, "png", c.body)
}

func TestStore_Put_Error(t *testing.T) {
	s := NewStore(&mockClient{err: errors.New("boom")}, &mockPresigner{}, "images", time.Hour)
	err := s.Put(context.Background(), "k", file.Upload{Body: strings.NewReader("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `put object "k"`)
}

func TestStore_PresignGet(t *testing.T) {
	p := &mockPresigner{}
	s := NewStore(&mockClient{}, p, "images", 15*time.Minute)

	url, err := s.PresignGet(context.Background(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/a.png?sig", url)
	assert.Equal(t, 15*time.Minute, p.ttl)
}

func TestStore_Delete(t *testing.T) {
	c := &mockClient{}
	s := NewStore(c, &mockPresigner{}, "images", time.Hour)

	require.NoError(t, s.Delete(context.Background(), "a.png"))
	assert.Equal(t, []string{"a.png"}, c.deleted)

	require.NoError(t, s.DeleteMany(context.Background(), nil, true))
	assert.Nil(t, c.batch)

	require.NoError(t, s.DeleteMany(context.Background(), []string{"a", "b"}, true))
	require.NotNil(t, c.batch)
	assert.Len(t, c.batch.Delete.Objects, 2)
	assert.True(t, aws.ToBool(c.batch.Delete.Quiet))
}
