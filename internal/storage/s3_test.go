package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngBytes is a minimal PNG header, enough for MIME sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

type putCall struct {
	Key         string
	ContentType string
	Body        []byte
}

type fakeS3 struct {
	calls []putCall
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(params.Body)
	f.calls = append(f.calls, putCall{
		Key:         *params.Key,
		ContentType: *params.ContentType,
		Body:        body,
	})
	return &s3.PutObjectOutput{}, nil
}

func newTestStore(client api) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  "driptyard-media",
		baseURL: "https://cdn.example.com",
	}
}

// formFiles builds real multipart file headers from name/content pairs.
func formFiles(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	return form.File["images"]
}

func TestUploadReturnsDurableURL(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	url, err := store.Upload(context.Background(), "products/1/a.png", bytes.NewReader(pngBytes), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/products/1/a.png", url)

	require.Len(t, client.calls, 1)
	assert.Equal(t, "products/1/a.png", client.calls[0].Key)
	assert.Equal(t, "image/png", client.calls[0].ContentType)
	assert.Equal(t, pngBytes, client.calls[0].Body)
}

func TestUploadImagesBatch(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	files := formFiles(t, map[string][]byte{
		"front.png": pngBytes,
		"back.png":  pngBytes,
	})

	urls, err := store.UploadImages(context.Background(), files, "products", 7)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	for _, url := range urls {
		assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/products/7/"), url)
	}
	assert.Len(t, client.calls, 2)
}

func TestUploadImagesRejectsNonImage(t *testing.T) {
	client := &fakeS3{}
	store := newTestStore(client)

	files := formFiles(t, map[string][]byte{
		"notes.txt": []byte("just some text"),
	})

	_, err := store.UploadImages(context.Background(), files, "products", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JPEG, PNG, or WebP")
	assert.Empty(t, client.calls)
}

func TestUploadImagesFailureAbortsBatch(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	store := newTestStore(client)

	files := formFiles(t, map[string][]byte{
		"front.png": pngBytes,
		"back.png":  pngBytes,
	})

	urls, err := store.UploadImages(context.Background(), files, "products", 7)
	require.Error(t, err)
	assert.Nil(t, urls, "no URLs from a partial upload")
}

func TestObjectKeyFormat(t *testing.T) {
	key := objectKey("avatars", 42, ".png")
	assert.Regexp(t, regexp.MustCompile(`^avatars/42/\d{8}_\d{6}_[0-9a-f]{8}\.png$`), key)
}
