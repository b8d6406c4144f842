package waste

import (
	"errors"
	"math"

	"github.com/mmeshcher/banksampah-system/internal/model"
)

// MaxWeightKg ограничивает вес одной позиции заявки.
const MaxWeightKg = 100000.0

// MaxReward ограничивает баллы и деньги, которые менеджер может назначить за заявку.
const MaxReward int64 = 1_000_000_000_000

// ErrOverflow возвращается, если итоги по позициям не помещаются в int64.
var ErrOverflow = errors.New("estimate totals overflow")

// Estimate содержит оценочное вознаграждение за одну позицию.
type Estimate struct {
	Money  int64 `json:"money"`
	Points int64 `json:"points"`
}

// Totals содержит суммарные показатели по списку позиций.
type Totals struct {
	TotalWeight float64 `json:"totalWeight"`
	TotalMoney  int64   `json:"totalMoney"`
	TotalPoints int64   `json:"totalPoints"`
	Counted     int     `json:"counted"`
}

// EstimateItem рассчитывает вознаграждение за позицию, отбрасывая дробную часть.
// Для неизвестной категории или вида, а также для веса вне диапазона
// [-MaxWeightKg, MaxWeightKg] возвращается нулевая оценка.
func EstimateItem(categoryID, typeID string, weightKg float64) Estimate {
	t, ok := Lookup(categoryID, typeID)
	if !ok || math.IsNaN(weightKg) || math.Abs(weightKg) > MaxWeightKg {
		return Estimate{}
	}

	return Estimate{
		Money:  int64(math.Floor(float64(t.PricePerKg) * weightKg)),
		Points: int64(math.Floor(float64(t.PointsPerKg) * weightKg)),
	}
}

// ValidWeight сообщает, что вес положителен, конечен и не превышает MaxWeightKg.
func ValidWeight(weightKg float64) bool {
	return weightKg > 0 && weightKg <= MaxWeightKg
}

// Countable сообщает, учитывается ли позиция в итогах.
func Countable(item model.WasteLineItem) bool {
	if item.CategoryID == "" || item.TypeID == "" || !ValidWeight(item.WeightKg) {
		return false
	}
	_, ok := Lookup(item.CategoryID, item.TypeID)
	return ok
}

// Aggregate суммирует оценки по позициям. Неполные позиции и позиции с
// недопустимым весом в сумму не попадают.
func Aggregate(items []model.WasteLineItem) (Totals, error) {
	var (
		t  Totals
		ok bool
	)
	for _, it := range items {
		if !Countable(it) {
			continue
		}
		e := EstimateItem(it.CategoryID, it.TypeID, it.WeightKg)
		if t.TotalMoney, ok = addInt64(t.TotalMoney, e.Money); !ok {
			return Totals{}, ErrOverflow
		}
		if t.TotalPoints, ok = addInt64(t.TotalPoints, e.Points); !ok {
			return Totals{}, ErrOverflow
		}
		t.TotalWeight += it.WeightKg
		t.Counted++
	}
	return t, nil
}

func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// Resolve возвращает только учитываемые позиции с заполненными оценками.
func Resolve(items []model.WasteLineItem) []model.WasteLineItem {
	res := make([]model.WasteLineItem, 0, len(items))
	for _, it := range items {
		if !Countable(it) {
			continue
		}
		e := EstimateItem(it.CategoryID, it.TypeID, it.WeightKg)
		it.EstimatedMoney = e.Money
		it.EstimatedPoints = e.Points
		res = append(res, it)
	}
	return res
}

// ResolveReward определяет итоговое вознаграждение: значения, заданные
// менеджером, имеют приоритет над оценкой.
func ResolveReward(rewardPoints, rewardMoney *int64, estimatedPoints, estimatedMoney int64) model.Reward {
	r := model.Reward{Points: estimatedPoints, Money: estimatedMoney}
	if rewardPoints != nil {
		r.Points = *rewardPoints
	}
	if rewardMoney != nil {
		r.Money = *rewardMoney
	}
	return r
}

// FinalReward применяет ResolveReward к заявке.
func FinalReward(d *model.Deposit) model.Reward {
	return ResolveReward(d.RewardPoints, d.RewardMoney, d.EstimatedPoints, d.EstimatedMoney)
}
