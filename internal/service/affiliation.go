package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/repository"
	"github.com/mmeshcher/banksampah-system/internal/validation"
)

var (
	// ErrInvalidAdminSecret возвращается при неверном ключе администратора.
	ErrInvalidAdminSecret = errors.New("invalid admin secret key")
	// ErrAlreadyAffiliated возвращается, если пользователь уже состоит в другой аффилиации.
	ErrAlreadyAffiliated = errors.New("user already belongs to an affiliation")
	// ErrNotAffiliated возвращается, если пользователь не состоит в аффилиации.
	ErrNotAffiliated = errors.New("user does not belong to the affiliation")
)

const createAffiliationAttempts = 5

// AffiliationInput содержит данные формы создания и изменения аффилиации.
type AffiliationInput struct {
	Name     string
	Region   model.Region
	Location model.Location
	AdminKey string
}

func newAffiliationID() (string, error) {
	alphabet := validation.AffiliationIDAlphabet
	size := big.NewInt(int64(len(alphabet)))

	var b strings.Builder
	b.Grow(validation.AffiliationIDLength)
	for i := 0; i < validation.AffiliationIDLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate affiliation id: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

func validateAffiliation(in AffiliationInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &lifecycle.ValidationError{Field: "name", Reason: "is required"}
	}
	if !in.Region.Complete() {
		return &lifecycle.ValidationError{Field: "region", Reason: "provinsi, kota and kecamatan are required"}
	}
	return nil
}

// CreateAffiliation создаёт банк отходов. Создатель становится его участником.
func (s *Service) CreateAffiliation(ctx context.Context, userID string, in AffiliationInput) (*model.Affiliation, error) {
	actor, _, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RolePengelola {
		return nil, lifecycle.ErrUnauthorized
	}
	if actor.AffiliationID != "" {
		return nil, ErrAlreadyAffiliated
	}
	if s.adminSecretKey == "" ||
		subtle.ConstantTimeCompare([]byte(in.AdminKey), []byte(s.adminSecretKey)) != 1 {
		return nil, ErrInvalidAdminSecret
	}
	if err := validateAffiliation(in); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < createAffiliationAttempts; attempt++ {
		id, err := newAffiliationID()
		if err != nil {
			return nil, err
		}

		a := &model.Affiliation{
			ID:        id,
			Name:      strings.TrimSpace(in.Name),
			Region:    in.Region,
			Location:  in.Location,
			CreatedBy: userID,
			CreatedAt: s.now(),
		}
		err = s.repo.CreateAffiliation(ctx, a)
		if errors.Is(err, repository.ErrAffiliationExists) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("affiliation created", zap.String("affiliationID", a.ID), zap.String("userID", userID))
		return a, nil
	}

	return nil, fmt.Errorf("create affiliation: %w", repository.ErrAffiliationExists)
}

// JoinAffiliation добавляет пользователя в аффилиацию по её идентификатору.
// Вступать могут только менеджеры. Повторное вступление в ту же аффилиацию ничего не меняет.
func (s *Service) JoinAffiliation(ctx context.Context, userID, affiliationID string) (*model.Affiliation, error) {
	id := validation.NormalizeAffiliationID(affiliationID)
	if !validation.IsValidAffiliationID(id) {
		return nil, &lifecycle.ValidationError{Field: "affiliationId", Reason: "must be 8 characters of A-Z and 0-9"}
	}

	actor, u, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RolePengelola {
		return nil, lifecycle.ErrUnauthorized
	}
	if u.AffiliationID != "" && u.AffiliationID != id {
		return nil, ErrAlreadyAffiliated
	}

	if err := s.repo.JoinAffiliation(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repo.GetAffiliation(ctx, id)
}

// LeaveAffiliation исключает пользователя из его аффилиации.
func (s *Service) LeaveAffiliation(ctx context.Context, userID string) error {
	_, u, err := s.actor(ctx, userID)
	if err != nil {
		return err
	}
	if u.AffiliationID == "" {
		return ErrNotAffiliated
	}
	return s.repo.LeaveAffiliation(ctx, u.AffiliationID, userID)
}

// UpdateAffiliation изменяет данные аффилиации. Доступно только менеджерам из её участников.
func (s *Service) UpdateAffiliation(ctx context.Context, userID, affiliationID string, in AffiliationInput) (*model.Affiliation, error) {
	if err := validateAffiliation(in); err != nil {
		return nil, err
	}

	actor, _, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RolePengelola {
		return nil, lifecycle.ErrUnauthorized
	}

	a, err := s.repo.GetAffiliation(ctx, validation.NormalizeAffiliationID(affiliationID))
	if err != nil {
		return nil, err
	}
	if !a.HasMember(userID) {
		return nil, ErrNotAffiliated
	}

	return s.repo.UpdateAffiliation(ctx, a.ID, repository.AffiliationUpdate{
		Name:     strings.TrimSpace(in.Name),
		Region:   in.Region,
		Location: in.Location,
	})
}

// ListAffiliations возвращает все банки отходов.
func (s *Service) ListAffiliations(ctx context.Context) ([]model.Affiliation, error) {
	return s.repo.ListAffiliations(ctx)
}

// GetAffiliation возвращает банк отходов по идентификатору.
func (s *Service) GetAffiliation(ctx context.Context, affiliationID string) (*model.Affiliation, error) {
	return s.repo.GetAffiliation(ctx, validation.NormalizeAffiliationID(affiliationID))
}
