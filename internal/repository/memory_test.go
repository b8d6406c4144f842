package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/banksampah-system/internal/lifecycle"
	"github.com/mmeshcher/banksampah-system/internal/model"
)

func seed(t *testing.T) (*MemoryRepository, *model.Deposit) {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreateUser(ctx, &model.User{ID: "user-1", Email: "user@example.com", Role: model.RolePengguna}))
	require.NoError(t, repo.CreateUser(ctx, &model.User{ID: "manager-1", Email: "manager@example.com", Role: model.RolePengelola}))
	require.NoError(t, repo.CreateAffiliation(ctx, &model.Affiliation{ID: "AB12CD34", Name: "Bank Sampah Melati", CreatedBy: "manager-1"}))

	d := &model.Deposit{
		ID:              "dep-1",
		UserID:          "user-1",
		AffiliationID:   "AB12CD34",
		EstimatedPoints: 100,
		EstimatedMoney:  5000,
		Status:          model.DepositStatusOnProgress,
		ProgressStep:    model.ProgressKonfirmasi,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repo.CreateDeposit(ctx, d))
	return repo, d
}

func TestMemoryRepository_AffiliationMembership(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	manager, err := repo.GetUser(ctx, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", manager.AffiliationID)

	require.NoError(t, repo.CreateUser(ctx, &model.User{ID: "manager-2", Email: "m2@example.com", Role: model.RolePengelola}))
	require.NoError(t, repo.JoinAffiliation(ctx, "AB12CD34", "manager-2"))
	require.NoError(t, repo.JoinAffiliation(ctx, "AB12CD34", "manager-2"))

	a, err := repo.GetAffiliation(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, []string{"manager-1", "manager-2"}, a.Members)

	require.NoError(t, repo.LeaveAffiliation(ctx, "AB12CD34", "manager-2"))
	a, err = repo.GetAffiliation(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, []string{"manager-1"}, a.Members)

	m2, err := repo.GetUser(ctx, "manager-2")
	require.NoError(t, err)
	assert.Empty(t, m2.AffiliationID)

	assert.ErrorIs(t, repo.JoinAffiliation(ctx, "NOPE0000", "manager-2"), ErrAffiliationNotFound)
}

func TestMemoryRepository_DuplicateUser(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	err := repo.CreateUser(ctx, &model.User{ID: "user-9", Email: "user@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestMemoryRepository_UpdateDepositRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	_, err := repo.UpdateDeposit(ctx, "dep-1", func(d *model.Deposit) error {
		d.ProgressStep = model.ProgressPersiapan
		return errors.New("boom")
	})
	require.Error(t, err)

	d, err := repo.GetDeposit(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, model.ProgressKonfirmasi, d.ProgressStep)

	_, err = repo.UpdateDeposit(ctx, "missing", func(d *model.Deposit) error { return nil })
	assert.ErrorIs(t, err, ErrDepositNotFound)
}

func TestMemoryRepository_ConcurrentFinalizeCreditsOnce(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		completed int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.FinalizeDeposit(ctx, "dep-1", func(d *model.Deposit) (model.Reward, error) {
				return lifecycle.Finalize(d, "user-1", time.Now())
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, lifecycle.ErrAlreadyCompleted):
				completed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, completed)

	u, err := repo.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.TotalPoints)
	assert.Equal(t, int64(5000), u.TotalEarnings)
}

func TestMemoryRepository_FinalizeUnauthorizedLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	_, _, err := repo.FinalizeDeposit(ctx, "dep-1", func(d *model.Deposit) (model.Reward, error) {
		return lifecycle.Finalize(d, "manager-1", time.Now())
	})
	require.ErrorIs(t, err, lifecycle.ErrUnauthorized)

	d, err := repo.GetDeposit(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, model.DepositStatusOnProgress, d.Status)

	u, err := repo.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, u.TotalPoints)
	assert.Zero(t, u.TotalEarnings)
}

func TestMemoryRepository_ListDepositsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := seed(t)

	older := &model.Deposit{
		ID:            "dep-0",
		UserID:        "user-1",
		AffiliationID: "AB12CD34",
		Status:        model.DepositStatusPending,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.CreateDeposit(ctx, older))

	list, err := repo.ListDeposits(ctx, model.DepositFilter{AffiliationID: "AB12CD34"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dep-1", list[0].ID)
	assert.Equal(t, "dep-0", list[1].ID)

	pending, err := repo.ListDeposits(ctx, model.DepositFilter{UserID: "user-1", Status: model.DepositStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "dep-0", pending[0].ID)
}
