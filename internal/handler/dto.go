package handler

import (
	"time"

	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/service"
)

type regionRequest struct {
	Provinsi  string `json:"provinsi" validate:"required"`
	Kota      string `json:"kota" validate:"required"`
	Kecamatan string `json:"kecamatan" validate:"required"`
}

func (r regionRequest) model() model.Region {
	return model.Region{Provinsi: r.Provinsi, Kota: r.Kota, Kecamatan: r.Kecamatan}
}

type userResponse struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	Name          string       `json:"name"`
	NoTelp        string       `json:"noTelp"`
	Role          string       `json:"role"`
	Wilayah       model.Region `json:"wilayah"`
	Daerah        string       `json:"daerah,omitempty"`
	AffiliationID string       `json:"affiliationId,omitempty"`
	TotalPoints   int64        `json:"totalPoints"`
	TotalEarnings int64        `json:"totalEarnings"`
	HasPassword   bool         `json:"hasPassword"`
	NeedsProfile  bool         `json:"needsProfile"`
	CreatedAt     string       `json:"createdAt"`
}

func newUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		NoTelp:        u.Phone,
		Role:          string(u.Role),
		Wilayah:       u.Region,
		AffiliationID: u.AffiliationID,
		TotalPoints:   u.TotalPoints,
		TotalEarnings: u.TotalEarnings,
		HasPassword:   u.HasPassword(),
		NeedsProfile:  u.Role == "" || !u.Region.Complete(),
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
	}
	if u.Region.Complete() {
		resp.Daerah = u.Region.Address()
	}
	return resp
}

type affiliationResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Daerah    string         `json:"daerah"`
	Wilayah   model.Region   `json:"wilayah"`
	Location  model.Location `json:"location"`
	CreatedBy string         `json:"createdBy"`
	Members   []string       `json:"members"`
	CreatedAt string         `json:"createdAt"`
}

func newAffiliationResponse(a *model.Affiliation) affiliationResponse {
	members := a.Members
	if members == nil {
		members = []string{}
	}
	return affiliationResponse{
		ID:        a.ID,
		Name:      a.Name,
		Daerah:    a.Daerah(),
		Wilayah:   a.Region,
		Location:  a.Location,
		CreatedBy: a.CreatedBy,
		Members:   members,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

type depositResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId"`
	UserName        string                `json:"userName"`
	UserEmail       string                `json:"userEmail"`
	AffiliationID   string                `json:"affiliationId"`
	WasteItems      []model.WasteLineItem `json:"wasteItems"`
	TotalWeightKg   float64               `json:"totalWeightKg"`
	EstimatedPoints int64                 `json:"estimatedPoints"`
	EstimatedMoney  int64                 `json:"estimatedMoney"`
	PickupLocation  model.Location        `json:"pickupLocation"`
	PickupAddress   string                `json:"pickupAddress"`
	PickupRegion    model.Region          `json:"pickupRegion"`
	Status          string                `json:"status"`
	ProgressStep    string                `json:"progressStep"`
	RewardPoints    *int64                `json:"rewardPoints"`
	RewardMoney     *int64                `json:"rewardMoney"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
	CompletedAt     *string               `json:"completedAt"`
}

func newDepositResponse(d *model.Deposit) depositResponse {
	resp := depositResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		UserName:        d.UserName,
		UserEmail:       d.UserEmail,
		AffiliationID:   d.AffiliationID,
		WasteItems:      d.WasteItems,
		TotalWeightKg:   d.TotalWeightKg,
		EstimatedPoints: d.EstimatedPoints,
		EstimatedMoney:  d.EstimatedMoney,
		PickupLocation:  d.PickupLocation,
		PickupAddress:   d.PickupAddress,
		PickupRegion:    d.PickupRegion,
		Status:          string(d.Status),
		ProgressStep:    string(d.ProgressStep),
		RewardPoints:    d.RewardPoints,
		RewardMoney:     d.RewardMoney,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.Format(time.RFC3339),
	}
	if resp.WasteItems == nil {
		resp.WasteItems = []model.WasteLineItem{}
	}
	if d.CompletedAt != nil {
		s := d.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

type depositListResponse struct {
	Items  []depositResponse     `json:"items"`
	Counts service.DepositCounts `json:"counts"`
}

func newDepositListResponse(l *service.DepositList) depositListResponse {
	resp := depositListResponse{
		Items:  make([]depositResponse, 0, len(l.Items)),
		Counts: l.Counts,
	}
	for i := range l.Items {
		resp.Items = append(resp.Items, newDepositResponse(&l.Items[i]))
	}
	return resp
}

type depositDetailResponse struct {
	depositResponse
	FinalReward  model.Reward         `json:"finalReward"`
	Affiliation  *affiliationResponse `json:"affiliation,omitempty"`
	ContactPhone string               `json:"contactPhone,omitempty"`
}

func newDepositDetailResponse(d *service.DepositDetail) depositDetailResponse {
	resp := depositDetailResponse{
		depositResponse: newDepositResponse(d.Deposit),
		FinalReward:     d.FinalReward,
		ContactPhone:    d.ContactPhone,
	}
	if d.Affiliation != nil {
		a := newAffiliationResponse(d.Affiliation)
		resp.Affiliation = &a
	}
	return resp
}
