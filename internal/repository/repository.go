// Package repository содержит хранилища пользователей, аффилиаций и заявок:
// PostgreSQL для работы сервиса и in-memory вариант с той же семантикой.
package repository

import (
	"errors"

	"github.com/mmeshcher/banksampah-system/internal/model"
)

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAffiliationExists возвращается при коллизии идентификатора аффилиации.
	ErrAffiliationExists = errors.New("affiliation already exists")
	// ErrAffiliationNotFound возвращается, если аффилиация не найдена.
	ErrAffiliationNotFound = errors.New("affiliation not found")
	// ErrDepositNotFound возвращается, если заявка не найдена.
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrGoogleAccountLinked возвращается, если Google-аккаунт уже привязан к другому пользователю.
	ErrGoogleAccountLinked = errors.New("google account already linked")
)

// ProfileUpdate описывает изменяемые поля профиля. Пустая роль оставляет роль без изменений.
type ProfileUpdate struct {
	Name   string
	Phone  string
	Region model.Region
	Role   model.Role
}

// AffiliationUpdate описывает изменяемые поля аффилиации.
type AffiliationUpdate struct {
	Name     string
	Region   model.Region
	Location model.Location
}

// DepositMutation изменяет заявку внутри транзакции. Ошибка отменяет запись.
type DepositMutation func(d *model.Deposit) error

// DepositSettlement завершает заявку внутри транзакции и возвращает вознаграждение к начислению.
type DepositSettlement func(d *model.Deposit) (model.Reward, error)
