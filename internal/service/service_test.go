package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/profilesite/internal/db/memorystorage"
	"github.com/patric-chuzhbe/profilesite/internal/hasher"
	"github.com/patric-chuzhbe/profilesite/internal/imagestore"
	"github.com/patric-chuzhbe/profilesite/internal/metrics"
	"github.com/patric-chuzhbe/profilesite/internal/mockstorage"
	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
)

type imageStoreMock struct {
	mock.Mock
}

func (m *imageStoreMock) Store(ctx context.Context, file io.Reader, originalFilename string) (string, error) {
	args := m.Called(ctx, file, originalFilename)
	return args.String(0), args.Error(1)
}

func newMetrics() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry(), "test")
}

func aliceRequest() *models.SignupRequest {
	return &models.SignupRequest{
		Name:          "Alice",
		Email:         "a@x.com",
		Password:      "secret1",
		ImageFilename: "pic.png",
	}
}

func TestSignupAndSigninWithMemoryStorage(t *testing.T) {
	storage, err := memorystorage.New()
	require.NoError(t, err)
	uploads := filepath.Join(t.TempDir(), "uploads")
	theService := New(storage, imagestore.NewLocal(uploads), hasher.New(bcrypt.MinCost), newMetrics())
	ctx := context.Background()

	created, err := theService.Signup(ctx, aliceRequest(), strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "Alice", created.Name)
	assert.True(t, strings.HasPrefix(created.ImageReference, "uploads/"))
	assert.NotEqual(t, "secret1", created.PasswordHash)

	signedIn, err := theService.Signin(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.Name, signedIn.Name)
	assert.Equal(t, created.ImageReference, signedIn.ImageReference)

	_, err = theService.Signup(ctx, aliceRequest(), strings.NewReader("png"))
	require.ErrorIs(t, err, models.ErrDuplicateEmail)

	count, err := storage.GetNumberOfUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSigninErrorsAreIndistinguishable(t *testing.T) {
	storage, err := memorystorage.New()
	require.NoError(t, err)
	theService := New(storage, imagestore.NewLocal(t.TempDir()), hasher.New(bcrypt.MinCost), newMetrics())
	ctx := context.Background()

	_, err = theService.Signup(ctx, aliceRequest(), strings.NewReader("png"))
	require.NoError(t, err)

	_, unknownErr := theService.Signin(ctx, "nobody@x.com", "secret1")
	_, wrongErr := theService.Signin(ctx, "a@x.com", "wrong")

	require.ErrorIs(t, unknownErr, models.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, models.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestSignupDuplicateEmailHasNoSideEffects(t *testing.T) {
	db := &mockstorage.StorageMock{}
	images := &imageStoreMock{}
	db.On("GetUserByEmail", mock.Anything, "a@x.com", (*sql.Tx)(nil)).
		Return(&user.User{Name: "Alice", Email: "a@x.com"}, true, nil).Once()

	theService := New(db, images, hasher.New(bcrypt.MinCost), newMetrics())

	_, err := theService.Signup(context.Background(), aliceRequest(), strings.NewReader("png"))
	require.ErrorIs(t, err, models.ErrDuplicateEmail)

	db.AssertExpectations(t)
	db.AssertNotCalled(t, "BeginTransaction")
	images.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignupUnsupportedFileType(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		image    io.Reader
	}{
		{name: "disallowed extension", filename: "virus.exe", image: strings.NewReader("MZ")},
		{name: "no extension", filename: "README", image: strings.NewReader("text")},
		{name: "missing image", filename: "", image: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			db := &mockstorage.StorageMock{}
			images := &imageStoreMock{}
			db.On("GetUserByEmail", mock.Anything, "a@x.com", (*sql.Tx)(nil)).Return(nil, false, nil).Once()

			request := aliceRequest()
			request.ImageFilename = testCase.filename

			theService := New(db, images, hasher.New(bcrypt.MinCost), newMetrics())
			_, err := theService.Signup(context.Background(), request, testCase.image)
			require.ErrorIs(t, err, models.ErrUnsupportedFileType)

			db.AssertNotCalled(t, "BeginTransaction")
			db.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
			images.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSignupRollsBackOnFailures(t *testing.T) {
	storageErr := errors.New("disk full")
	insertErr := errors.New("connection lost")
	commitErr := errors.New("commit refused")

	testCases := []struct {
		name       string
		storeErr   error
		createErr  error
		commitErr  error
		wantErr    error
		wantCreate bool
		wantCommit bool
	}{
		{
			name:     "image storage failure",
			storeErr: errors.Join(models.ErrStorageFailure, storageErr),
			wantErr:  models.ErrStorageFailure,
		},
		{
			name:       "insert failure",
			createErr:  insertErr,
			wantErr:    models.ErrPersistenceFailure,
			wantCreate: true,
		},
		{
			name:       "unique constraint at insert",
			createErr:  models.ErrDuplicateEmail,
			wantErr:    models.ErrDuplicateEmail,
			wantCreate: true,
		},
		{
			name:       "commit failure",
			commitErr:  commitErr,
			wantErr:    models.ErrPersistenceFailure,
			wantCreate: true,
			wantCommit: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			db := &mockstorage.StorageMock{}
			images := &imageStoreMock{}

			db.On("GetUserByEmail", mock.Anything, "a@x.com", (*sql.Tx)(nil)).Return(nil, false, nil).Once()
			db.On("BeginTransaction").Return(nil, nil).Once()
			db.On("RollbackTransaction", (*sql.Tx)(nil)).Return(nil).Once()

			var storeReference string
			if testCase.storeErr == nil {
				storeReference = "uploads/key-pic.png"
			}
			images.On("Store", mock.Anything, mock.Anything, "pic.png").Return(storeReference, testCase.storeErr).Once()

			if testCase.wantCreate {
				db.On("CreateUser", mock.Anything, mock.MatchedBy(func(usr *user.User) bool {
					return usr.Email == "a@x.com" && usr.ImageReference == "uploads/key-pic.png"
				}), (*sql.Tx)(nil)).Return(testCase.createErr).Once()
			}
			if testCase.wantCommit {
				db.On("CommitTransaction", (*sql.Tx)(nil)).Return(testCase.commitErr).Once()
			}

			theService := New(db, images, hasher.New(bcrypt.MinCost), newMetrics())
			_, err := theService.Signup(context.Background(), aliceRequest(), strings.NewReader("png"))
			require.ErrorIs(t, err, testCase.wantErr)

			db.AssertExpectations(t)
			images.AssertExpectations(t)
			if !testCase.wantCommit {
				db.AssertNotCalled(t, "CommitTransaction", mock.Anything)
			}
		})
	}
}

func TestSignupLookupFailure(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetUserByEmail", mock.Anything, "a@x.com", (*sql.Tx)(nil)).Return(nil, false, errors.New("timeout")).Once()

	theService := New(db, &imageStoreMock{}, hasher.New(bcrypt.MinCost), newMetrics())
	_, err := theService.Signup(context.Background(), aliceRequest(), strings.NewReader("png"))
	require.ErrorIs(t, err, models.ErrPersistenceFailure)
}

func TestSigninLookupFailureIsNotInvalidCredentials(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("GetUserByEmail", mock.Anything, "a@x.com", (*sql.Tx)(nil)).Return(nil, false, errors.New("timeout")).Once()

	theService := New(db, &imageStoreMock{}, hasher.New(bcrypt.MinCost), newMetrics())
	_, err := theService.Signin(context.Background(), "a@x.com", "secret1")
	require.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}
