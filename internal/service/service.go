// Package service implements signup and signin on top of the credential
// store, the password hasher and the image store.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/profilesite/internal/imagestore"
	"github.com/patric-chuzhbe/profilesite/internal/logger"
	"github.com/patric-chuzhbe/profilesite/internal/metrics"
	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error
	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)
}

type storage interface {
	transactioner
	userKeeper
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type metricsRecorder interface {
	RecordSignup(result string)
	RecordSignin(result string)
	RecordImageUpload(result string)
}

// Service runs the account use cases.
type Service struct {
	db      storage
	images  imagestore.Store
	hasher  passwordHasher
	metrics metricsRecorder
}

func New(
	db storage,
	images imagestore.Store,
	hasher passwordHasher,
	metrics metricsRecorder,
) *Service {
	return &Service{
		db:      db,
		images:  images,
		hasher:  hasher,
		metrics: metrics,
	}
}

// Signup registers a new user and stores the profile image.
//
// It fails with models.ErrDuplicateEmail when the email is taken (either by
// the lookup or by the store's uniqueness check at insert time) and with
// models.ErrUnsupportedFileType when image is missing or not an allowed type.
// Storage and persistence failures roll the transaction back.
func (s *Service) Signup(ctx context.Context, request *models.SignupRequest, image io.Reader) (*user.User, error) {
	usr, err := s.signup(ctx, request, image)
	s.metrics.RecordSignup(signupResult(err))

	return usr, err
}

func (s *Service) signup(ctx context.Context, request *models.SignupRequest, image io.Reader) (*user.User, error) {
	_, found, err := s.db.GetUserByEmail(ctx, request.Email, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: in internal/service/service.go/Signup(): error while `s.db.GetUserByEmail()` calling: %w", models.ErrPersistenceFailure, err)
	}
	if found {
		return nil, models.ErrDuplicateEmail
	}

	if image == nil || !imagestore.IsAllowed(request.ImageFilename) {
		return nil, models.ErrUnsupportedFileType
	}

	passwordHash, err := s.hasher.Hash(request.Password)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/Signup(): error while `s.hasher.Hash()` calling: %w", err)
	}

	transaction, err := s.db.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("%w: in internal/service/service.go/Signup(): error while `s.db.BeginTransaction()` calling: %w", models.ErrPersistenceFailure, err)
	}

	imageReference, err := s.images.Store(ctx, image, request.ImageFilename)
	if err != nil {
		s.metrics.RecordImageUpload(metrics.ResultFailure)
		s.rollback(transaction)
		return nil, err
	}
	s.metrics.RecordImageUpload(metrics.ResultSuccess)

	usr := &user.User{
		Name:           request.Name,
		Email:          request.Email,
		PasswordHash:   passwordHash,
		ImageReference: imageReference,
	}

	err = s.db.CreateUser(ctx, usr, transaction)
	if err != nil {
		s.rollback(transaction)
		if errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: in internal/service/service.go/Signup(): error while `s.db.CreateUser()` calling: %w", models.ErrPersistenceFailure, err)
	}

	err = s.db.CommitTransaction(transaction)
	if err != nil {
		s.rollback(transaction)
		return nil, fmt.Errorf("%w: in internal/service/service.go/Signup(): error while `s.db.CommitTransaction()` calling: %w", models.ErrPersistenceFailure, err)
	}

	return usr, nil
}

// Signin returns the user when the password matches. Unknown emails and
// wrong passwords both yield models.ErrInvalidCredentials.
func (s *Service) Signin(ctx context.Context, email, password string) (*user.User, error) {
	usr, err := s.signin(ctx, email, password)
	switch {
	case err == nil:
		s.metrics.RecordSignin(metrics.ResultSuccess)
	case errors.Is(err, models.ErrInvalidCredentials):
		s.metrics.RecordSignin(metrics.ResultInvalid)
	default:
		s.metrics.RecordSignin(metrics.ResultFailure)
	}

	return usr, err
}

func (s *Service) signin(ctx context.Context, email, password string) (*user.User, error) {
	usr, found, err := s.db.GetUserByEmail(ctx, email, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: in internal/service/service.go/Signin(): error while `s.db.GetUserByEmail()` calling: %w", models.ErrPersistenceFailure, err)
	}
	if !found || !s.hasher.Verify(password, usr.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	return usr, nil
}

func (s *Service) rollback(transaction *sql.Tx) {
	err := s.db.RollbackTransaction(transaction)
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Log.Errorln("Error calling the `s.db.RollbackTransaction()`:", zap.Error(err))
	}
}

func signupResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, models.ErrDuplicateEmail):
		return metrics.ResultDuplicate
	case errors.Is(err, models.ErrUnsupportedFileType):
		return metrics.ResultUnsupportedFile
	default:
		return metrics.ResultFailure
	}
}
