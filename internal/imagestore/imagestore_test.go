package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/profilesite/internal/models"
)

var uuidPrefix = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

func TestIsAllowed(t *testing.T) {
	testCases := []struct {
		filename string
		want     bool
	}{
		{"pic.png", true},
		{"PIC.PNG", true},
		{"photo.JpEg", true},
		{"a.b.jpg", true},
		{"anim.gif", true},
		{"doc.pdf", false},
		{"png", false},
		{"", false},
		{"pic.png.exe", false},
		{"pic.", false},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, IsAllowed(testCase.filename), testCase.filename)
	}
}

func TestSecureFilename(t *testing.T) {
	testCases := []struct {
		filename string
		want     string
	}{
		{"pic.png", "pic.png"},
		{"My cool pic.png", "My_cool_pic.png"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\pic.jpg`, "C_Users_me_pic.jpg"},
		{"фото.png", "png"},
		{"._hidden.gif", "hidden.gif"},
		{"<script>.png", "script.png"},
		{"", ""},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, SecureFilename(testCase.filename), testCase.filename)
	}
}

func TestStorageKeyIsUnique(t *testing.T) {
	first, err := storageKey("pic.png")
	require.NoError(t, err)
	second, err := storageKey("pic.png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Regexp(t, regexp.MustCompile(`^`+uuidPrefix+`-pic\.png$`), first)

	key, err := storageKey("фото.PNG")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^`+uuidPrefix+`\.png$`), key)

	_, err = storageKey("virus.exe")
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static", "uploads")
	store := NewLocal(dir)

	reference, err := store.Store(context.Background(), strings.NewReader("image bytes"), "pic.png")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^uploads/`+uuidPrefix+`-pic\.png$`), reference)

	content, err := os.ReadFile(filepath.Join(filepath.Dir(dir), filepath.FromSlash(reference)))
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(content))
}

func TestLocalStoreRejectsUnsupportedType(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocal(dir)

	_, err := store.Store(context.Background(), strings.NewReader("MZ"), "virus.exe")
	require.ErrorIs(t, err, models.ErrUnsupportedFileType)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "nothing must be written for unsupported files")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalStoreReadFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocal(dir)

	_, err := store.Store(context.Background(), failingReader{}, "pic.png")
	require.ErrorIs(t, err, models.ErrStorageFailure)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type putterMock struct {
	mock.Mock
}

func (m *putterMock) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestS3Store(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "uploads")
	client := &putterMock{}

	var uploadedKey string
	var uploadedBody []byte
	client.On(
		"PutObject",
		mock.Anything,
		mock.MatchedBy(func(input *s3.PutObjectInput) bool {
			return aws.ToString(input.Bucket) == "avatars" &&
				input.ACL == types.ObjectCannedACLPublicRead &&
				aws.ToString(input.ContentType) == "image/png"
		}),
	).Run(func(args mock.Arguments) {
		input := args.Get(1).(*s3.PutObjectInput)
		uploadedKey = aws.ToString(input.Key)
		body, err := io.ReadAll(input.Body)
		require.NoError(t, err)
		uploadedBody = body
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	store := NewS3(client, S3Options{Bucket: "avatars", Region: "eu-central-1", TempDir: tempDir})

	reference, err := store.Store(context.Background(), bytes.NewReader([]byte("png bytes")), "pic.png")
	require.NoError(t, err)
	client.AssertExpectations(t)

	assert.Regexp(t, regexp.MustCompile(`^`+uuidPrefix+`-pic\.png$`), uploadedKey)
	assert.Equal(t, "png bytes", string(uploadedBody))
	assert.Equal(t, "https://avatars.s3.eu-central-1.amazonaws.com/"+uploadedKey, reference)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the staged file must be removed after upload")
}

func TestS3StoreCustomEndpoint(t *testing.T) {
	client := &putterMock{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(&s3.PutObjectOutput{}, nil).Once()

	store := NewS3(client, S3Options{
		Bucket:   "avatars",
		Region:   "us-east-1",
		Endpoint: "http://localhost:9000/",
		TempDir:  t.TempDir(),
	})

	reference, err := store.Store(context.Background(), strings.NewReader("gif"), "anim.gif")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^http://localhost:9000/avatars/`+uuidPrefix+`-anim\.gif$`), reference)
}

func TestS3StoreUploadFailure(t *testing.T) {
	tempDir := t.TempDir()
	client := &putterMock{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()

	store := NewS3(client, S3Options{Bucket: "avatars", Region: "eu-central-1", TempDir: tempDir})

	_, err := store.Store(context.Background(), strings.NewReader("png bytes"), "pic.png")
	require.ErrorIs(t, err, models.ErrStorageFailure)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestS3StoreRejectsUnsupportedType(t *testing.T) {
	client := &putterMock{}
	store := NewS3(client, S3Options{Bucket: "avatars", Region: "eu-central-1", TempDir: t.TempDir()})

	_, err := store.Store(context.Background(), strings.NewReader("x"), "notes.txt")
	require.ErrorIs(t, err, models.ErrUnsupportedFileType)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}
