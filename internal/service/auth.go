package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/repository"
)

// MinPasswordLength задаёт минимальную длину пароля.
const MinPasswordLength = 6

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Registration содержит данные регистрации по email и паролю.
type Registration struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     model.Role
	Region   model.Region
}

// Profile содержит изменяемые данные профиля.
type Profile struct {
	Name   string
	Phone  string
	Role   model.Role
	Region model.Region
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, &lifecycle.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func validateProfile(name string, region model.Region) error {
	if strings.TrimSpace(name) == "" {
		return &lifecycle.ValidationError{Field: "name", Reason: "is required"}
	}
	if !region.Complete() {
		return &lifecycle.ValidationError{Field: "region", Reason: "provinsi, kota and kecamatan are required"}
	}
	return nil
}

// Register регистрирует пользователя по email и паролю.
func (s *Service) Register(ctx context.Context, in Registration) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, &lifecycle.ValidationError{Field: "email", Reason: "is required"}
	}
	if !in.Role.Valid() {
		return nil, &lifecycle.ValidationError{Field: "role", Reason: "must be pengguna or pengelola"}
	}
	if err := validateProfile(in.Name, in.Region); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         in.Role,
		Region:       in.Region,
		CreatedAt:    s.now(),
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, repository.ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("userID", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Authenticate проверяет email и пароль пользователя.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// SignInWithGoogle выполняет вход по ID-токену Google. Аккаунт ищется по
// идентификатору Google, затем по email; если его нет, создаётся учётная запись
// без роли, которую пользователь заполняет через UpdateProfile и SetPassword.
func (s *Service) SignInWithGoogle(ctx context.Context, idToken string) (*model.User, error) {
	claims, err := s.verifier.Verify(idToken)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByGoogleSub(ctx, claims.Sub)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	u, err = s.repo.GetUserByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		if err := s.repo.LinkGoogleAccount(ctx, u.ID, claims.Sub); err != nil {
			return nil, err
		}
		u.GoogleSub = claims.Sub
		return u, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}

	u = &model.User{
		ID:        s.newID(),
		Email:     claims.Email,
		GoogleSub: claims.Sub,
		Name:      claims.Name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("federated account created", zap.String("userID", u.ID))
	return u, nil
}

// SetPassword привязывает пароль к учётной записи текущей сессии.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, userID, hash)
}

// GetAccount возвращает учётную запись пользователя.
func (s *Service) GetAccount(ctx context.Context, userID string) (*model.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// UpdateProfile обновляет профиль. Роль можно выбрать только один раз.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p Profile) (*model.User, error) {
	if err := validateProfile(p.Name, p.Region); err != nil {
		return nil, err
	}
	if p.Role != "" && !p.Role.Valid() {
		return nil, &lifecycle.ValidationError{Field: "role", Reason: "must be pengguna or pengelola"}
	}

	current, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Role == "" && p.Role == "" {
		return nil, &lifecycle.ValidationError{Field: "role", Reason: "is required"}
	}

	return s.repo.UpdateProfile(ctx, userID, repository.ProfileUpdate{
		Name:   strings.TrimSpace(p.Name),
		Phone:  strings.TrimSpace(p.Phone),
		Region: p.Region,
		Role:   p.Role,
	})
}
