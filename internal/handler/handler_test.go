package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/metrics"
	"github.com/mmeshcher/banksampah-system/internal/middleware"
	"github.com/mmeshcher/banksampah-system/internal/model"
	"github.com/mmeshcher/banksampah-system/internal/repository"
	"github.com/mmeshcher/banksampah-system/internal/service"
	"github.com/mmeshcher/banksampah-system/internal/wilayah"
)

type stubService struct {
	registerUser *model.User
	registerErr  error
	registerIn   service.Registration

	authUser *model.User
	authErr  error

	account *model.User

	deposit    *model.Deposit
	depositErr error
	reward     model.Reward

	detail *service.DepositDetail
	list   *service.DepositList
	listBy model.DepositStatus

	snapshots chan service.DepositList

	provinces []wilayah.Region
}

func (s *stubService) Register(_ context.Context, in service.Registration) (*model.User, error) {
	s.registerIn = in
	return s.registerUser, s.registerErr
}

func (s *stubService) Authenticate(context.Context, string, string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) SignInWithGoogle(context.Context, string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) SetPassword(context.Context, string, string) error {
	return s.authErr
}

func (s *stubService) GetAccount(context.Context, string) (*model.User, error) {
	return s.account, nil
}

func (s *stubService) UpdateProfile(context.Context, string, service.Profile) (*model.User, error) {
	return s.account, nil
}

func (s *stubService) CreateAffiliation(context.Context, string, service.AffiliationInput) (*model.Affiliation, error) {
	return nil, service.ErrInvalidAdminSecret
}

func (s *stubService) JoinAffiliation(context.Context, string, string) (*model.Affiliation, error) {
	return nil, repository.ErrAffiliationNotFound
}

func (s *stubService) LeaveAffiliation(context.Context, string) error {
	return service.ErrNotAffiliated
}

func (s *stubService) UpdateAffiliation(context.Context, string, string, service.AffiliationInput) (*model.Affiliation, error) {
	return nil, service.ErrNotAffiliated
}

func (s *stubService) ListAffiliations(context.Context) ([]model.Affiliation, error) {
	return nil, nil
}

func (s *stubService) GetAffiliation(context.Context, string) (*model.Affiliation, error) {
	return nil, repository.ErrAffiliationNotFound
}

func (s *stubService) EstimateItems(items []model.WasteLineItem) (service.Estimation, error) {
	return service.Estimation{}, nil
}

func (s *stubService) SubmitDeposit(context.Context, string, service.DepositInput) (*model.Deposit, error) {
	return s.deposit, s.depositErr
}

func (s *stubService) AcceptDeposit(context.Context, string, string) (*model.Deposit, error) {
	return s.deposit, s.depositErr
}

func (s *stubService) AdvanceProgress(context.Context, string, string, model.ProgressStep) (*model.Deposit, error) {
	return s.deposit, s.depositErr
}

func (s *stubService) SetReward(context.Context, string, string, int64, int64) (*model.Deposit, error) {
	return s.deposit, s.depositErr
}

func (s *stubService) FinalizeDeposit(context.Context, string, string) (*model.Deposit, model.Reward, error) {
	return s.deposit, s.reward, s.depositErr
}

func (s *stubService) GetDepositDetail(context.Context, string, string) (*service.DepositDetail, error) {
	return s.detail, s.depositErr
}

func (s *stubService) ListDeposits(_ context.Context, _ string, status model.DepositStatus) (*service.DepositList, error) {
	s.listBy = status
	return s.list, s.depositErr
}

func (s *stubService) WatchDeposits(context.Context, string, model.DepositStatus) (<-chan service.DepositList, error) {
	if s.depositErr != nil {
		return nil, s.depositErr
	}
	return s.snapshots, nil
}

func (s *stubService) Provinces(context.Context) []wilayah.Region {
	return s.provinces
}

func (s *stubService) Regencies(context.Context, string) []wilayah.Region {
	return []wilayah.Region{}
}

func (s *stubService) Districts(context.Context, string) []wilayah.Region {
	return []wilayah.Region{}
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, metrics.New())
}

func sessionCookie(t *testing.T, h *Handler, userID string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, h.authMiddleware.SetAuthCookie(rec, userID))
	return rec.Result().Cookies()[0]
}

func do(t *testing.T, h *Handler, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func sampleDeposit() *model.Deposit {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &model.Deposit{
		ID:              "dep-1",
		UserID:          "user-1",
		AffiliationID:   "AB12CD34",
		WasteItems:      []model.WasteLineItem{{CategoryID: "anorganik", TypeID: "plastik_botol", WeightKg: 2, EstimatedMoney: 6000, EstimatedPoints: 100}},
		TotalWeightKg:   2,
		EstimatedPoints: 100,
		EstimatedMoney:  6000,
		Status:          model.DepositStatusCompleted,
		ProgressStep:    model.ProgressKonfirmasi,
		CreatedAt:       now,
		UpdatedAt:       now,
		CompletedAt:     &now,
	}
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: "user-1", Email: "warga@example.com", Role: model.RolePengguna},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:    "warga@example.com",
		Password: "rahasia1",
		Name:     "Warga",
		NoTelp:   "0811",
		Role:     "pengguna",
		Wilayah:  regionRequest{Provinsi: "Jawa Barat", Kota: "Kota Bandung", Kecamatan: "Coblong"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("session cookie was not set")
	}
	assert.Equal(t, "0811", svc.registerIn.Phone)
	assert.Equal(t, "Coblong", svc.registerIn.Region.Kecamatan)
}

func TestRegister_ValidationError(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodPost, "/api/auth/register", `{"email":"warga@example.com","password":"123","name":"W","role":"pengguna","wilayah":{"provinsi":"a","kota":"b","kecamatan":"c"}}`, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Error)
	assert.Equal(t, "password", resp.Field)
}

func TestRegister_MalformedBody(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodPost, "/api/auth/register", `{`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	h := newTestHandler(t, &stubService{registerErr: repository.ErrUserExists})

	rec := do(t, h, http.MethodPost, "/api/auth/register", `{"email":"warga@example.com","password":"rahasia1","name":"W","role":"pengguna","wilayah":{"provinsi":"a","kota":"b","kecamatan":"c"}}`, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user_exists", decodeError(t, rec).Error)
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	h := newTestHandler(t, &stubService{authErr: service.ErrInvalidCredentials})

	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"warga@example.com","password":"salah"}`, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, rec).Error)
}

func TestLogin_InternalErrorIsGeneric(t *testing.T) {
	h := newTestHandler(t, &stubService{authErr: context.DeadlineExceeded})

	rec := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"warga@example.com","password":"rahasia1"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeError(t, rec).Error)
}

func TestLogout_ClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodPost, "/api/auth/logout", "", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	for _, target := range []string{"/api/deposits", "/api/user/me", "/api/affiliations"} {
		rec := do(t, h, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want %d", target, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestMe_ReturnsAccount(t *testing.T) {
	svc := &stubService{account: &model.User{
		ID:          "user-1",
		Email:       "warga@example.com",
		Role:        model.RolePengguna,
		Region:      model.Region{Provinsi: "Jawa Barat", Kota: "Kota Bandung", Kecamatan: "Coblong"},
		TotalPoints: 106,
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/user/me", "", sessionCookie(t, h, "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Coblong, Kota Bandung, Jawa Barat", resp.Daerah)
	assert.Equal(t, int64(106), resp.TotalPoints)
	assert.False(t, resp.NeedsProfile)
}

func TestFinalize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "already completed", err: lifecycle.ErrAlreadyCompleted, status: http.StatusConflict, reason: "already_completed"},
		{name: "not ready", err: lifecycle.ErrNotReady, status: http.StatusConflict, reason: "not_ready"},
		{name: "not owner", err: lifecycle.ErrUnauthorized, status: http.StatusForbidden, reason: "unauthorized"},
		{name: "missing", err: repository.ErrDepositNotFound, status: http.StatusNotFound, reason: "deposit_not_found"},
		{name: "storage failure", err: errors.New("connection reset"), status: http.StatusInternalServerError, reason: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{depositErr: tt.err})

			rec := do(t, h, http.MethodPost, "/api/deposits/dep-1/finalize", "", sessionCookie(t, h, "user-1"))

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.reason, decodeError(t, rec).Error)
		})
	}
}

func TestFinalize_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{deposit: sampleDeposit(), reward: model.Reward{Points: 100, Money: 6000}})

	rec := do(t, h, http.MethodPost, "/api/deposits/dep-1/finalize", "", sessionCookie(t, h, "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Deposit map[string]any `json:"deposit"`
		Reward  model.Reward   `json:"reward"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.Reward{Points: 100, Money: 6000}, resp.Reward)
	assert.Equal(t, "completed", resp.Deposit["status"])
	assert.NotNil(t, resp.Deposit["completedAt"])
	assert.Nil(t, resp.Deposit["rewardPoints"])
}

func TestSubmitDeposit_ValidationFieldIsReported(t *testing.T) {
	err := &lifecycle.ValidationError{Field: "wasteItems", Reason: "at least one valid waste item is required"}
	h := newTestHandler(t, &stubService{depositErr: err})

	rec := do(t, h, http.MethodPost, "/api/deposits", `{"affiliationId":"AB12CD34","wasteItems":[]}`, sessionCookie(t, h, "user-1"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Error)
	assert.Equal(t, "wasteItems", resp.Field)
}

func TestListDeposits_PassesStatusFilter(t *testing.T) {
	svc := &stubService{list: &service.DepositList{
		Items:  []model.Deposit{*sampleDeposit()},
		Counts: service.DepositCounts{Pending: 2, Completed: 1},
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/deposits?status=completed", "", sessionCookie(t, h, "mgr-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DepositStatusCompleted, svc.listBy)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp depositListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "dep-1", resp.Items[0].ID)
	assert.Equal(t, 2, resp.Counts.Pending)
}

func TestAffiliationErrors(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	cookie := sessionCookie(t, h, "mgr-1")

	rec := do(t, h, http.MethodPost, "/api/affiliations", `{"name":"Bank","wilayah":{"provinsi":"a","kota":"b","kecamatan":"c"},"adminKey":"x"}`, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/affiliations/join", `{"affiliationId":"ZZZZZZZZ"}`, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/affiliations/leave", "", cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_affiliated", decodeError(t, rec).Error)
}

func TestPublicReferenceRoutes(t *testing.T) {
	h := newTestHandler(t, &stubService{provinces: []wilayah.Region{{ID: "32", Name: "JAWA BARAT"}}})

	rec := do(t, h, http.MethodGet, "/api/waste/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plastik_botol")

	rec = do(t, h, http.MethodGet, "/api/waste/catalog?flat=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flat []struct {
		ID            string `json:"id"`
		CategoryID    string `json:"categoryId"`
		CategoryLabel string `json:"categoryLabel"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flat))
	require.Len(t, flat, 15)
	assert.Equal(t, "anorganik", flat[0].CategoryID)
	assert.Equal(t, "plastik_botol", flat[0].ID)

	rec = do(t, h, http.MethodGet, "/api/wilayah/provinces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"32","name":"JAWA BARAT"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/wilayah/regencies/32", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "banksampah_http_requests_total")
}

func TestStreamDeposits_SendsSnapshots(t *testing.T) {
	svc := &stubService{snapshots: make(chan service.DepositList, 2)}
	h := newTestHandler(t, svc)

	srv := httptest.NewServer(h.SetupRouter())
	defer srv.Close()

	cookie := sessionCookie(t, h, "user-1")
	header := http.Header{}
	header.Add("Cookie", cookie.Name+"="+cookie.Value)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/deposits/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	svc.snapshots <- service.DepositList{Items: []model.Deposit{*sampleDeposit()}, Counts: service.DepositCounts{Completed: 1}}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp depositListResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 1, resp.Counts.Completed)

	close(svc.snapshots)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestStreamDeposits_RejectsBeforeUpgrade(t *testing.T) {
	h := newTestHandler(t, &stubService{depositErr: &lifecycle.ValidationError{Field: "status", Reason: "bad"}})

	rec := do(t, h, http.MethodGet, "/api/deposits/stream?status=archived", "", sessionCookie(t, h, "user-1"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "status", decodeError(t, rec).Field)
}
