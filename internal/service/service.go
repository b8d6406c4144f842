// Package service реализует бизнес-логику сервиса банка отходов.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/feed"
	"github.com/mmeshcher/banksampah-system/internal/identity"
	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/metrics"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/repository"
	"github.com/mmeshcher/banksampah-system/internal/wilayah"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleSub(ctx context.Context, sub string) (*model.User, error)
	LinkGoogleAccount(ctx context.Context, userID, sub string) error
	SetPassword(ctx context.Context, userID string, passwordHash []byte) error
	UpdateProfile(ctx context.Context, userID string, p repository.ProfileUpdate) (*model.User, error)

	CreateAffiliation(ctx context.Context, a *model.Affiliation) error
	GetAffiliation(ctx context.Context, id string) (*model.Affiliation, error)
	ListAffiliations(ctx context.Context) ([]model.Affiliation, error)
	UpdateAffiliation(ctx context.Context, id string, u repository.AffiliationUpdate) (*model.Affiliation, error)
	JoinAffiliation(ctx context.Context, id, userID string) error
	LeaveAffiliation(ctx context.Context, id, userID string) error

	CreateDeposit(ctx context.Context, d *model.Deposit) error
	GetDeposit(ctx context.Context, id string) (*model.Deposit, error)
	ListDeposits(ctx context.Context, f model.DepositFilter) ([]model.Deposit, error)
	UpdateDeposit(ctx context.Context, id string, mutate repository.DepositMutation) (*model.Deposit, error)
	FinalizeDeposit(ctx context.Context, id string, settle repository.DepositSettlement) (*model.Deposit, model.Reward, error)
}

// TokenVerifier проверяет ID-токены внешнего провайдера входа.
type TokenVerifier interface {
	Verify(idToken string) (identity.Claims, error)
}

// RegionLookup описывает справочник административных единиц.
type RegionLookup interface {
	Provinces(ctx context.Context) ([]wilayah.Region, error)
	Regencies(ctx context.Context, provinceID string) ([]wilayah.Region, error)
	Districts(ctx context.Context, regencyID string) ([]wilayah.Region, error)
}

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Broker         feed.Broker
	Verifier       TokenVerifier
	Regions        RegionLookup
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AdminSecretKey string
	Now            func() time.Time
	NewID          func() string
}

// Service содержит бизнес-логику сервиса банка отходов.
type Service struct {
	repo           Repository
	broker         feed.Broker
	verifier       TokenVerifier
	regions        RegionLookup
	metrics        *metrics.Metrics
	logger         *zap.Logger
	adminSecretKey string
	now            func() time.Time
	newID          func() string
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:           repo,
		broker:         opts.Broker,
		verifier:       opts.Verifier,
		regions:        opts.Regions,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		adminSecretKey: opts.AdminSecretKey,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if s.broker == nil {
		s.broker = feed.NewLocalBroker()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	var errs []error
	if s.broker != nil {
		errs = append(errs, s.broker.Close())
	}
	if s.repo != nil {
		errs = append(errs, s.repo.Close())
	}
	return errors.Join(errs...)
}

// Reason возвращает машинно-читаемую причину отказа для ответа клиенту и метрик.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, lifecycle.ErrValidation):
		return "validation"
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, lifecycle.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, lifecycle.ErrNotPending):
		return "not_pending"
	case errors.Is(err, lifecycle.ErrNotOnProgress):
		return "not_on_progress"
	case errors.Is(err, lifecycle.ErrNotReady):
		return "not_ready"
	case errors.Is(err, lifecycle.ErrInvalidStep):
		return "invalid_step"
	case errors.Is(err, lifecycle.ErrInvalidReward):
		return "invalid_reward"
	case errors.Is(err, repository.ErrDepositNotFound):
		return "deposit_not_found"
	case errors.Is(err, repository.ErrAffiliationNotFound):
		return "affiliation_not_found"
	case errors.Is(err, repository.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, repository.ErrUserExists):
		return "user_exists"
	case errors.Is(err, repository.ErrGoogleAccountLinked):
		return "google_account_linked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidAdminSecret):
		return "invalid_admin_secret"
	case errors.Is(err, ErrAlreadyAffiliated):
		return "already_affiliated"
	case errors.Is(err, ErrNotAffiliated):
		return "not_affiliated"
	case errors.Is(err, identity.ErrFederatedDisabled):
		return "federated_disabled"
	case errors.Is(err, identity.ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}

func (s *Service) actor(ctx context.Context, userID string) (lifecycle.Actor, *model.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return lifecycle.Actor{}, nil, lifecycle.ErrUnauthorized
		}
		return lifecycle.Actor{}, nil, err
	}
	return lifecycle.ActorFromUser(u), u, nil
}

func (s *Service) publish(ctx context.Context, d *model.Deposit) {
	for _, topic := range []string{feed.UserTopic(d.UserID), feed.AffiliationTopic(d.AffiliationID)} {
		if err := s.broker.Publish(ctx, topic); err != nil {
			s.logger.Warn("publish deposit change", zap.Error(err), zap.String("topic", topic), zap.String("depositID", d.ID))
		}
	}
}
