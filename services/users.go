package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"journal-service/events"
	"journal-service/models"
	"journal-service/repository"
	"journal-service/uploads"
)

const passwordHashCost = 12

type UserService struct {
	users     repository.UserRepository
	images    uploads.Storage
	publisher events.EventPublisher
	validate  *validator.Validate
	hashCost  int
}

func NewUserService(users repository.UserRepository, images uploads.Storage, publisher events.EventPublisher) *UserService {
	return &UserService{
		users:     users,
		images:    images,
		publisher: publisher,
		validate:  validator.New(),
		hashCost:  passwordHashCost,
	}
}

// Register creates a user. profile may be nil when no image was uploaded.
// The image is stored before the user row so the row never references a
// missing file; it is removed again if the insert fails.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest, profile io.Reader) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(&req); err != nil {
		return nil, validationError(describeValidation(err))
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, persistenceError("find user", err)
	}

	profileName := ""
	if profile != nil {
		profileName, err = s.images.Save(ctx, profile)
		if errors.Is(err, uploads.ErrNotImage) || errors.Is(err, uploads.ErrTooLarge) {
			return nil, validationError(err.Error())
		}
		if err != nil {
			return nil, persistenceError("store profile image", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		s.discardImage(ctx, profileName)
		return nil, validationError("password cannot be hashed")
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Profile:  profileName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.discardImage(ctx, profileName)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, persistenceError("create user", err)
	}

	logger.Info("User registered", zap.String("user_id", user.ID))
	if err := s.publisher.PublishUserRegistered(user); err != nil {
		logger.Error("Failed to publish user registered event", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

func (s *UserService) discardImage(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.images.Remove(ctx, name); err != nil {
		logger.Error("Failed to remove orphaned profile image", zap.String("image", name), zap.Error(err))
	}
}

// Login verifies the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAuthFailure
	}
	if err != nil {
		return nil, persistenceError("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrAuthFailure
	}
	return user, nil
}

// CurrentUser returns the logged-in user's record
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceError("find user", err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the old one.
// Refusals are returned as *RejectedError.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &RejectedError{Reason: ReasonUserNotFound}
	}
	if err != nil {
		return persistenceError("find user", err)
	}

	if newPassword == "" {
		return &RejectedError{Reason: ReasonNewPasswordEmpty}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return &RejectedError{Reason: ReasonWrongOldPassword}
	}
	if newPassword == oldPassword {
		return &RejectedError{Reason: ReasonSamePassword}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return &RejectedError{Reason: err.Error()}
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &RejectedError{Reason: ReasonUserNotFound}
		}
		return persistenceError("update password", err)
	}

	logger.Info("Password changed", zap.String("user_id", userID))
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		case "email":
			msgs = append(msgs, "email is not valid")
		default:
			msgs = append(msgs, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
