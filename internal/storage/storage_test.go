package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpgBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 32)...)
)

func upload(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestPolicyCheck(t *testing.T) {
	p := Policy{MaxBytes: 100, Extensions: []string{".pdf", ".png"}}

	assert.NoError(t, p.Check(".pdf", 10))
	assert.NoError(t, p.Check(".PNG", 100))
	assert.ErrorIs(t, p.Check(".pdf", 0), ErrEmptyFile)
	assert.ErrorIs(t, p.Check(".pdf", 101), ErrFileTooLarge)
	assert.ErrorIs(t, p.Check(".docx", 10), ErrExtension)
	assert.ErrorIs(t, p.Check("", 10), ErrExtension)
}

func TestContentType(t *testing.T) {
	ct, err := ContentType(".pdf", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)

	ct, err = ContentType(".jpeg", jpgBytes)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	_, err = ContentType(".pdf", pngBytes)
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestUploaderStoresAndRejectsPerFile(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, Policy{MaxBytes: 1 << 10, Extensions: []string{".pdf", ".jpg", ".jpeg", ".png"}})
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return fixed }

	uploads := []Upload{
		upload("Dolil Scan.PDF", pdfBytes),
		upload("notes.txt", []byte("hello")),
		upload("empty.pdf", nil),
		upload("photo.png", pngBytes),
		upload("big.pdf", append(append([]byte{}, pdfBytes...), make([]byte, 2<<10)...)),
		upload("fake.pdf", pngBytes),
	}

	stored, rejected, err := u.Store(context.Background(), "wizard/s1/dolilAgreements", uploads)
	require.NoError(t, err)

	require.Len(t, stored, 2)
	assert.Equal(t, "Dolil Scan.PDF", stored[0].Name)
	assert.Equal(t, "application/pdf", stored[0].ContentType)
	assert.True(t, strings.HasPrefix(stored[0].ObjectKey, "wizard/s1/dolilAgreements/"+stored[0].ID+"-"))
	assert.True(t, strings.HasSuffix(stored[0].ObjectKey, "-dolil-scan.pdf"))
	assert.Equal(t, fixed, stored[0].UploadedAt)
	assert.Equal(t, "photo.png", stored[1].Name)
	assert.Equal(t, "image/png", stored[1].ContentType)

	require.Len(t, rejected, 4)
	assert.Equal(t, "notes.txt", rejected[0].Name)
	assert.Contains(t, rejected[0].Reason, "not accepted")
	assert.Equal(t, "empty.pdf", rejected[1].Name)
	assert.Equal(t, "big.pdf", rejected[2].Name)
	assert.Contains(t, rejected[2].Reason, "too large")
	assert.Equal(t, "fake.pdf", rejected[3].Name)

	assert.Equal(t, 2, store.Len())
	data, ct, ok := store.Object(stored[0].ObjectKey)
	require.True(t, ok)
	assert.Equal(t, pdfBytes, data)
	assert.Equal(t, "application/pdf", ct)
}

type failingStore struct {
	*MemoryStore
}

func (f failingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return errors.New("connection reset")
}

func TestUploaderHidesStoreErrors(t *testing.T) {
	u := NewUploader(failingStore{NewMemoryStore()}, DefaultPolicy())
	stored, rejected, err := u.Store(context.Background(), "p", []Upload{upload("a.pdf", pdfBytes)})
	require.NoError(t, err)
	assert.Empty(t, stored)
	require.Len(t, rejected, 1)
	assert.Equal(t, "upload failed", rejected[0].Reason)
}

func TestUploaderCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	u := NewUploader(store, DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := u.Store(ctx, "p", []Upload{upload("a.pdf", pdfBytes)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())
}

func TestMemoryStorePresignAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a/b.pdf", bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"))

	url, err := store.PresignedURL(ctx, "a/b.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory:///a/b.pdf?expires="))

	require.NoError(t, store.Delete(ctx, "a/b.pdf"))
	_, err = store.PresignedURL(ctx, "a/b.pdf", time.Hour)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	stamp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return stamp }
	ctx := context.Background()
	for _, key := range []string{"wizard/s2/dcr/b.pdf", "wizard/s1/dcr/a.pdf", "other/c.pdf"} {
		require.NoError(t, store.Put(ctx, key, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"))
	}

	u := NewUploader(store, DefaultPolicy())
	objects, err := u.Objects(ctx, "wizard/")
	require.NoError(t, err)
	assert.Equal(t, []ObjectInfo{
		{Key: "wizard/s1/dcr/a.pdf", LastModified: stamp},
		{Key: "wizard/s2/dcr/b.pdf", LastModified: stamp},
	}, objects)
}

func TestNewMinioStore(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "docs"})
	require.NoError(t, err)
	assert.Equal(t, "docs", s.bucket)

	_, err = NewMinioStore(MinioConfig{Endpoint: "localhost:9000/nested/path", AccessKey: "k", SecretKey: "s"})
	assert.Error(t, err)
}
