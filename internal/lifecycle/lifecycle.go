// Package lifecycle описывает конечный автомат заявки на вывоз отходов:
// допустимые переходы, кто их выполняет и как определяется итоговое вознаграждение.
//
// Функции пакета чистые: они проверяют предусловия и изменяют переданную
// заявку. Атомарность обеспечивает хранилище, вызывающее их внутри транзакции
// над свежепрочитанной записью.
package lifecycle

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/waste"
)

var (
	// ErrValidation возвращается при неполной форме заявки.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized возвращается, если у участника нет нужной роли или прав на заявку.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotPending возвращается, если заявку уже приняли.
	ErrNotPending = errors.New("deposit is not pending")
	// ErrNotOnProgress возвращается, если заявка не находится в работе.
	ErrNotOnProgress = errors.New("deposit is not on progress")
	// ErrAlreadyCompleted возвращается при повторном завершении заявки.
	ErrAlreadyCompleted = errors.New("deposit already completed")
	// ErrNotReady возвращается, если заявка ещё не ожидает подтверждения пользователя.
	ErrNotReady = errors.New("deposit is not ready for confirmation")
	// ErrInvalidStep возвращается для неизвестного шага прогресса.
	ErrInvalidStep = errors.New("invalid progress step")
	// ErrInvalidReward возвращается для отрицательного или слишком большого вознаграждения.
	ErrInvalidReward = errors.New("invalid reward")
)

// ValidationError описывает незаполненное или некорректное поле формы.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap позволяет сопоставлять ошибку с ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Actor описывает участника, выполняющего переход.
type Actor struct {
	UserID        string
	Role          model.Role
	AffiliationID string
}

// ActorFromUser строит участника по учётной записи.
func ActorFromUser(u *model.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, AffiliationID: u.AffiliationID}
}

// ProgressSteps возвращает шаги прогресса в порядке отображения.
func ProgressSteps() []model.ProgressStep {
	return []model.ProgressStep{model.ProgressPersiapan, model.ProgressPenjemputan, model.ProgressKonfirmasi}
}

// ValidStep сообщает, является ли шаг известным.
func ValidStep(step model.ProgressStep) bool {
	for _, s := range ProgressSteps() {
		if s == step {
			return true
		}
	}
	return false
}

// Submission содержит данные формы новой заявки.
type Submission struct {
	UserID         string
	UserName       string
	UserEmail      string
	AffiliationID  string
	Items          []model.WasteLineItem
	PickupLocation model.Location
	PickupRegion   model.Region
}

// NewDeposit проверяет форму и создаёт заявку в состоянии pending/persiapan.
// Итоги считаются один раз и дальше не пересчитываются.
func NewDeposit(id string, sub Submission, now time.Time) (*model.Deposit, error) {
	if sub.UserID == "" {
		return nil, ErrUnauthorized
	}

	for _, it := range sub.Items {
		if it.CategoryID == "" || it.TypeID == "" {
			continue
		}
		if math.IsNaN(it.WeightKg) || it.WeightKg > waste.MaxWeightKg {
			return nil, &ValidationError{Field: "wasteItems", Reason: fmt.Sprintf("item weight must not exceed %g kg", waste.MaxWeightKg)}
		}
	}

	items := waste.Resolve(sub.Items)
	if len(items) == 0 {
		return nil, &ValidationError{Field: "wasteItems", Reason: "at least one valid waste item is required"}
	}
	if strings.TrimSpace(sub.AffiliationID) == "" {
		return nil, &ValidationError{Field: "affiliationId", Reason: "target waste bank is required"}
	}

	region := model.Region{
		Provinsi:  strings.TrimSpace(sub.PickupRegion.Provinsi),
		Kota:      strings.TrimSpace(sub.PickupRegion.Kota),
		Kecamatan: strings.TrimSpace(sub.PickupRegion.Kecamatan),
	}
	if !region.Complete() {
		return nil, &ValidationError{Field: "pickupRegion", Reason: "pickup address is incomplete"}
	}

	totals, err := waste.Aggregate(items)
	if err != nil {
		return nil, &ValidationError{Field: "wasteItems", Reason: "estimate is too large"}
	}

	return &model.Deposit{
		ID:              id,
		UserID:          sub.UserID,
		UserName:        sub.UserName,
		UserEmail:       sub.UserEmail,
		AffiliationID:   sub.AffiliationID,
		WasteItems:      items,
		TotalWeightKg:   totals.TotalWeight,
		EstimatedPoints: totals.TotalPoints,
		EstimatedMoney:  totals.TotalMoney,
		PickupLocation:  sub.PickupLocation,
		PickupAddress:   region.Address(),
		PickupRegion:    region,
		Status:          model.DepositStatusPending,
		ProgressStep:    model.ProgressPersiapan,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanManage сообщает, может ли участник управлять заявкой как менеджер её аффилиации.
func CanManage(d *model.Deposit, actor Actor) bool {
	return actor.Role == model.RolePengelola &&
		actor.AffiliationID != "" &&
		actor.AffiliationID == d.AffiliationID
}

// CanView сообщает, может ли участник видеть заявку.
func CanView(d *model.Deposit, actor Actor) bool {
	return d.UserID == actor.UserID || CanManage(d, actor)
}

// Accept переводит заявку из pending в on_progress. Шаг прогресса не меняется.
func Accept(d *model.Deposit, actor Actor, now time.Time) error {
	if !CanManage(d, actor) {
		return ErrUnauthorized
	}
	if d.Status != model.DepositStatusPending {
		return ErrNotPending
	}

	d.Status = model.DepositStatusOnProgress
	if d.ProgressStep == "" {
		d.ProgressStep = model.ProgressPersiapan
	}
	d.UpdatedAt = now
	return nil
}

// Advance устанавливает шаг прогресса. Порядок шагов не проверяется:
// менеджер может перейти к любому шагу, и konfirmasi не меняет статус.
func Advance(d *model.Deposit, actor Actor, step model.ProgressStep, now time.Time) error {
	if !CanManage(d, actor) {
		return ErrUnauthorized
	}
	if !ValidStep(step) {
		return ErrInvalidStep
	}
	if d.Status != model.DepositStatusOnProgress {
		return ErrNotOnProgress
	}

	d.ProgressStep = step
	d.UpdatedAt = now
	return nil
}

// SetReward сохраняет вознаграждение, заданное менеджером, независимо от шага прогресса.
func SetReward(d *model.Deposit, actor Actor, points, money int64, now time.Time) error {
	if !CanManage(d, actor) {
		return ErrUnauthorized
	}
	if points < 0 || money < 0 || points > waste.MaxReward || money > waste.MaxReward {
		return ErrInvalidReward
	}
	if d.Status != model.DepositStatusOnProgress {
		return ErrNotOnProgress
	}

	d.RewardPoints = &points
	d.RewardMoney = &money
	d.UpdatedAt = now
	return nil
}

// Finalize завершает заявку от имени её владельца и возвращает вознаграждение,
// которое нужно начислить. Проверки выполняются над прочитанной в транзакции записью.
func Finalize(d *model.Deposit, actingUserID string, now time.Time) (model.Reward, error) {
	if actingUserID == "" || d.UserID != actingUserID {
		return model.Reward{}, ErrUnauthorized
	}
	if d.Status == model.DepositStatusCompleted {
		return model.Reward{}, ErrAlreadyCompleted
	}
	if d.Status != model.DepositStatusOnProgress || d.ProgressStep != model.ProgressKonfirmasi {
		return model.Reward{}, ErrNotReady
	}

	reward := waste.FinalReward(d)

	completedAt := now
	d.Status = model.DepositStatusCompleted
	d.CompletedAt = &completedAt
	d.UpdatedAt = now

	return reward, nil
}
