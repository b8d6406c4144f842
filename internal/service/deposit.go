package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/feed"
	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/repository"
	"github.com/mmeshcher/banksampah-system/internal/validation"
	"github.com/mmeshcher/banksampah-system/internal/waste"
)

// Названия переходов для метрик и логов.
const (
	TransitionSubmit    = "submit"
	TransitionAccept    = "accept"
	TransitionAdvance   = "advance"
	TransitionSetReward = "set_reward"
	TransitionFinalize  = "finalize"
)

// DepositInput содержит форму новой заявки.
type DepositInput struct {
	AffiliationID  string
	Items          []model.WasteLineItem
	PickupLocation model.Location
	PickupRegion   model.Region
}

// DepositDetail дополняет заявку итоговым вознаграждением и контактом второй стороны.
type DepositDetail struct {
	Deposit      *model.Deposit
	FinalReward  model.Reward
	Affiliation  *model.Affiliation
	ContactPhone string
}

// DepositCounts хранит количество заявок по статусам.
type DepositCounts struct {
	Pending    int `json:"pending"`
	OnProgress int `json:"on_progress"`
	Completed  int `json:"completed"`
}

// DepositList содержит заявки, видимые участнику, и их количество по статусам.
type DepositList struct {
	Items  []model.Deposit
	Counts DepositCounts
}

// Estimation содержит предварительный расчёт формы заявки.
type Estimation struct {
	Items  []waste.Estimate
	Totals waste.Totals
}

// EstimateItems рассчитывает оценку для каждой позиции и итоги по учитываемым позициям.
// Позиции с весом больше waste.MaxWeightKg получают нулевую оценку и не учитываются.
func (s *Service) EstimateItems(items []model.WasteLineItem) (Estimation, error) {
	res := Estimation{Items: make([]waste.Estimate, 0, len(items))}
	for _, it := range items {
		if !waste.Countable(it) {
			res.Items = append(res.Items, waste.Estimate{})
			continue
		}
		res.Items = append(res.Items, waste.EstimateItem(it.CategoryID, it.TypeID, it.WeightKg))
	}
	totals, err := waste.Aggregate(items)
	if err != nil {
		return Estimation{}, &lifecycle.ValidationError{Field: "wasteItems", Reason: "estimate is too large"}
	}
	res.Totals = totals
	return res, nil
}

// SubmitDeposit создаёт заявку пользователя в выбранный банк отходов.
func (s *Service) SubmitDeposit(ctx context.Context, userID string, in DepositInput) (*model.Deposit, error) {
	actor, u, err := s.actor(ctx, userID)
	if err != nil {
		return nil, s.reject(TransitionSubmit, "", err)
	}
	if actor.Role != model.RolePengguna {
		return nil, s.reject(TransitionSubmit, "", lifecycle.ErrUnauthorized)
	}

	affiliationID := validation.NormalizeAffiliationID(in.AffiliationID)
	d, err := lifecycle.NewDeposit(s.newID(), lifecycle.Submission{
		UserID:         u.ID,
		UserName:       u.Name,
		UserEmail:      u.Email,
		AffiliationID:  affiliationID,
		Items:          in.Items,
		PickupLocation: in.PickupLocation,
		PickupRegion:   in.PickupRegion,
	}, s.now())
	if err != nil {
		return nil, s.reject(TransitionSubmit, "", err)
	}

	if _, err := s.repo.GetAffiliation(ctx, affiliationID); err != nil {
		return nil, s.reject(TransitionSubmit, "", err)
	}

	if err := s.repo.CreateDeposit(ctx, d); err != nil {
		return nil, s.reject(TransitionSubmit, d.ID, err)
	}

	s.accepted(ctx, TransitionSubmit, d)
	return d, nil
}

// AcceptDeposit принимает заявку в работу от имени менеджера её аффилиации.
func (s *Service) AcceptDeposit(ctx context.Context, userID, depositID string) (*model.Deposit, error) {
	return s.transition(ctx, TransitionAccept, userID, depositID, func(d *model.Deposit, actor lifecycle.Actor) error {
		return lifecycle.Accept(d, actor, s.now())
	})
}

// AdvanceProgress переводит заявку на указанный шаг прогресса.
func (s *Service) AdvanceProgress(ctx context.Context, userID, depositID string, step model.ProgressStep) (*model.Deposit, error) {
	return s.transition(ctx, TransitionAdvance, userID, depositID, func(d *model.Deposit, actor lifecycle.Actor) error {
		return lifecycle.Advance(d, actor, step, s.now())
	})
}

// SetReward сохраняет фактическое вознаграждение, заданное менеджером.
func (s *Service) SetReward(ctx context.Context, userID, depositID string, points, money int64) (*model.Deposit, error) {
	return s.transition(ctx, TransitionSetReward, userID, depositID, func(d *model.Deposit, actor lifecycle.Actor) error {
		return lifecycle.SetReward(d, actor, points, money, s.now())
	})
}

func (s *Service) transition(
	ctx context.Context,
	name, userID, depositID string,
	apply func(d *model.Deposit, actor lifecycle.Actor) error,
) (*model.Deposit, error) {
	actor, _, err := s.actor(ctx, userID)
	if err != nil {
		return nil, s.reject(name, depositID, err)
	}

	d, err := s.repo.UpdateDeposit(ctx, depositID, func(d *model.Deposit) error {
		return apply(d, actor)
	})
	if err != nil {
		return nil, s.reject(name, depositID, err)
	}

	s.accepted(ctx, name, d)
	return d, nil
}

// FinalizeDeposit подтверждает получение вознаграждения владельцем заявки.
// Завершение заявки и начисление баланса выполняются одной транзакцией,
// поэтому вознаграждение зачисляется не более одного раза.
func (s *Service) FinalizeDeposit(ctx context.Context, userID, depositID string) (*model.Deposit, model.Reward, error) {
	d, reward, err := s.repo.FinalizeDeposit(ctx, depositID, func(d *model.Deposit) (model.Reward, error) {
		return lifecycle.Finalize(d, userID, s.now())
	})
	if err != nil {
		return nil, model.Reward{}, s.reject(TransitionFinalize, depositID, err)
	}

	s.metrics.Credit(reward.Points, reward.Money)
	s.logger.Info("reward credited",
		zap.String("depositID", d.ID),
		zap.String("userID", d.UserID),
		zap.Int64("points", reward.Points),
		zap.Int64("money", reward.Money),
	)
	s.accepted(ctx, TransitionFinalize, d)
	return d, reward, nil
}

func (s *Service) reject(name, depositID string, err error) error {
	reason := Reason(err)
	s.metrics.Rejection(name, reason)
	if reason == "internal" {
		s.logger.Error("deposit transition failed", zap.String("transition", name), zap.String("depositID", depositID), zap.Error(err))
	} else {
		s.logger.Debug("deposit transition rejected", zap.String("transition", name), zap.String("depositID", depositID), zap.String("reason", reason))
	}
	return err
}

func (s *Service) accepted(ctx context.Context, name string, d *model.Deposit) {
	s.metrics.Transition(name)
	s.logger.Info("deposit transition",
		zap.String("transition", name),
		zap.String("depositID", d.ID),
		zap.String("status", string(d.Status)),
		zap.String("step", string(d.ProgressStep)),
	)
	s.publish(ctx, d)
}

// GetDepositDetail возвращает заявку владельцу или менеджеру её аффилиации.
// Менеджер видит телефон пользователя, пользователь видит телефон создателя банка отходов.
func (s *Service) GetDepositDetail(ctx context.Context, userID, depositID string) (*DepositDetail, error) {
	actor, _, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.GetDeposit(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanView(d, actor) {
		return nil, lifecycle.ErrUnauthorized
	}

	detail := &DepositDetail{Deposit: d, FinalReward: waste.FinalReward(d)}

	a, err := s.repo.GetAffiliation(ctx, d.AffiliationID)
	switch {
	case err == nil:
		detail.Affiliation = a
	case !errors.Is(err, repository.ErrAffiliationNotFound):
		return nil, err
	}

	contactID := d.UserID
	if !lifecycle.CanManage(d, actor) {
		contactID = ""
		if detail.Affiliation != nil {
			contactID = detail.Affiliation.CreatedBy
		}
	}
	if contactID != "" {
		contact, err := s.repo.GetUser(ctx, contactID)
		switch {
		case err == nil:
			detail.ContactPhone = contact.Phone
		case !errors.Is(err, repository.ErrUserNotFound):
			return nil, err
		}
	}

	return detail, nil
}

func validStatus(status model.DepositStatus) bool {
	switch status {
	case "", model.DepositStatusPending, model.DepositStatusOnProgress, model.DepositStatusCompleted:
		return true
	}
	return false
}

func (s *Service) depositScope(ctx context.Context, userID string) (model.DepositFilter, string, error) {
	actor, _, err := s.actor(ctx, userID)
	if err != nil {
		return model.DepositFilter{}, "", err
	}
	if actor.Role == model.RolePengelola {
		if actor.AffiliationID == "" {
			return model.DepositFilter{}, "", nil
		}
		return model.DepositFilter{AffiliationID: actor.AffiliationID}, feed.AffiliationTopic(actor.AffiliationID), nil
	}
	return model.DepositFilter{UserID: actor.UserID}, feed.UserTopic(actor.UserID), nil
}

// ListDeposits возвращает заявки участника: менеджеру заявки его аффилиации,
// пользователю его собственные. Счётчики считаются по всем статусам.
func (s *Service) ListDeposits(ctx context.Context, userID string, status model.DepositStatus) (*DepositList, error) {
	if !validStatus(status) {
		return nil, &lifecycle.ValidationError{Field: "status", Reason: "must be pending, on_progress or completed"}
	}

	filter, _, err := s.depositScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listDeposits(ctx, filter, status)
}

func (s *Service) listDeposits(ctx context.Context, filter model.DepositFilter, status model.DepositStatus) (*DepositList, error) {
	res := &DepositList{Items: []model.Deposit{}}
	if filter.UserID == "" && filter.AffiliationID == "" {
		return res, nil
	}

	all, err := s.repo.ListDeposits(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, d := range all {
		switch d.Status {
		case model.DepositStatusPending:
			res.Counts.Pending++
		case model.DepositStatusOnProgress:
			res.Counts.OnProgress++
		case model.DepositStatusCompleted:
			res.Counts.Completed++
		}
		if status == "" || d.Status == status {
			res.Items = append(res.Items, d)
		}
	}
	return res, nil
}

// WatchDeposits возвращает канал снимков списка заявок. Первый снимок
// отправляется сразу, следующие после каждого изменения заявок участника.
// Канал закрывается при отмене контекста.
func (s *Service) WatchDeposits(ctx context.Context, userID string, status model.DepositStatus) (<-chan DepositList, error) {
	if !validStatus(status) {
		return nil, &lifecycle.ValidationError{Field: "status", Reason: "must be pending, on_progress or completed"}
	}

	filter, topic, err := s.depositScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Подписка оформляется до первого чтения, иначе изменение между ними
	// не попадёт ни в снимок, ни в уведомления.
	var notifications <-chan struct{}
	cancel := func() {}
	if topic != "" {
		notifications, cancel, err = s.broker.Subscribe(ctx, topic)
		if err != nil {
			return nil, err
		}
	}

	initial, err := s.listDeposits(ctx, filter, status)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan DepositList, 1)
	go func() {
		defer close(out)
		defer cancel()

		snapshot := initial
		for {
			select {
			case out <- *snapshot:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-notifications:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			next, err := s.listDeposits(ctx, filter, status)
			for err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("refresh deposit snapshot", zap.String("userID", userID), zap.Error(err))
				select {
				case _, ok := <-notifications:
					if !ok {
						return
					}
				case <-ctx.Done():
					return
				}
				next, err = s.listDeposits(ctx, filter, status)
			}
			snapshot = next
		}
	}()

	return out, nil
}
