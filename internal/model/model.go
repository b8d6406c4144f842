// Package model содержит доменные сущности сервиса банка отходов.
package model

import "time"

// Role описывает роль учётной записи.
type Role string

const (
	// RolePengguna обозначает обычного пользователя, сдающего отходы.
	RolePengguna Role = "pengguna"
	// RolePengelola обозначает менеджера банка отходов (аффилиации).
	RolePengelola Role = "pengelola"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RolePengguna || r == RolePengelola
}

// DepositStatus описывает грубое состояние заявки на вывоз.
type DepositStatus string

const (
	DepositStatusPending    DepositStatus = "pending"
	DepositStatusOnProgress DepositStatus = "on_progress"
	DepositStatusCompleted  DepositStatus = "completed"
)

// ProgressStep описывает подшаг заявки в состоянии on_progress.
type ProgressStep string

const (
	ProgressPersiapan   ProgressStep = "persiapan"
	ProgressPenjemputan ProgressStep = "penjemputan"
	ProgressKonfirmasi  ProgressStep = "konfirmasi"
)

// Region описывает выбранные административные единицы.
type Region struct {
	Provinsi  string `json:"provinsi"`
	Kota      string `json:"kota"`
	Kecamatan string `json:"kecamatan"`
}

// Complete сообщает, заполнены ли все три уровня.
func (r Region) Complete() bool {
	return r.Provinsi != "" && r.Kota != "" && r.Kecamatan != ""
}

// Address собирает строку адреса в формате "kecamatan, kota, provinsi".
func (r Region) Address() string {
	return r.Kecamatan + ", " + r.Kota + ", " + r.Provinsi
}

// Location хранит географические координаты.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// User представляет учётную запись пользователя или менеджера.
type User struct {
	ID            string
	Email         string
	PasswordHash  []byte
	GoogleSub     string
	Name          string
	Phone         string
	Role          Role
	Region        Region
	AffiliationID string
	TotalPoints   int64
	TotalEarnings int64
	CreatedAt     time.Time
}

// HasPassword сообщает, привязан ли к учётной записи пароль.
func (u *User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

// Affiliation описывает банк отходов.
type Affiliation struct {
	ID        string
	Name      string
	Region    Region
	Location  Location
	CreatedBy string
	Members   []string
	CreatedAt time.Time
}

// Daerah возвращает составную строку района аффилиации.
func (a *Affiliation) Daerah() string {
	return a.Region.Address()
}

// HasMember сообщает, состоит ли пользователь в аффилиации.
func (a *Affiliation) HasMember(userID string) bool {
	for _, m := range a.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// WasteLineItem описывает одну позицию заявки.
type WasteLineItem struct {
	CategoryID      string  `json:"categoryId"`
	TypeID          string  `json:"typeId"`
	WeightKg        float64 `json:"weightKg"`
	EstimatedMoney  int64   `json:"estimatedMoney"`
	EstimatedPoints int64   `json:"estimatedPoints"`
}

// Deposit описывает заявку пользователя на вывоз отходов.
type Deposit struct {
	ID              string
	UserID          string
	UserName        string
	UserEmail       string
	AffiliationID   string
	WasteItems      []WasteLineItem
	TotalWeightKg   float64
	EstimatedPoints int64
	EstimatedMoney  int64
	PickupLocation  Location
	PickupAddress   string
	PickupRegion    Region
	Status          DepositStatus
	ProgressStep    ProgressStep
	RewardPoints    *int64
	RewardMoney     *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Clone возвращает глубокую копию заявки.
func (d *Deposit) Clone() *Deposit {
	c := *d
	c.WasteItems = append([]WasteLineItem(nil), d.WasteItems...)
	if d.RewardPoints != nil {
		v := *d.RewardPoints
		c.RewardPoints = &v
	}
	if d.RewardMoney != nil {
		v := *d.RewardMoney
		c.RewardMoney = &v
	}
	if d.CompletedAt != nil {
		v := *d.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// Reward содержит итоговое вознаграждение (баллы и деньги).
type Reward struct {
	Points int64 `json:"points"`
	Money  int64 `json:"money"`
}

// DepositFilter задаёт выборку заявок.
type DepositFilter struct {
	UserID        string
	AffiliationID string
	Status        DepositStatus
}
