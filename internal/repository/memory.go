package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/mmeshcher/banksampah-system/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Все операции выполняются
// под одной блокировкой, поэтому UpdateDeposit и FinalizeDeposit атомарны так же,
// как их варианты в PostgreSQL.
type MemoryRepository struct {
	mu           sync.Mutex
	users        map[string]*model.User
	affiliations map[string]*model.Affiliation
	deposits     map[string]*model.Deposit
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]*model.User),
		affiliations: make(map[string]*model.Affiliation),
		deposits:     make(map[string]*model.Deposit),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.PasswordHash = slices.Clone(u.PasswordHash)
	return &c
}

func cloneAffiliation(a *model.Affiliation) *model.Affiliation {
	c := *a
	c.Members = slices.Clone(a.Members)
	return &c
}

func (r *MemoryRepository) findUser(pred func(u *model.User) bool) (*model.User, error) {
	for _, u := range r.users {
		if pred(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser создаёт нового пользователя.
func (r *MemoryRepository) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.ID == u.ID || existing.Email == u.Email {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		if u.GoogleSub != "" && existing.GoogleSub == u.GoogleSub {
			return ErrGoogleAccountLinked
		}
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findUser(func(u *model.User) bool { return u.Email == email })
}

// GetUserByGoogleSub возвращает пользователя по идентификатору Google-аккаунта.
func (r *MemoryRepository) GetUserByGoogleSub(_ context.Context, sub string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub == "" {
		return nil, ErrUserNotFound
	}
	return r.findUser(func(u *model.User) bool { return u.GoogleSub == sub })
}

// LinkGoogleAccount привязывает Google-аккаунт к пользователю.
func (r *MemoryRepository) LinkGoogleAccount(_ context.Context, userID, sub string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for _, other := range r.users {
		if other.ID != userID && other.GoogleSub == sub {
			return ErrGoogleAccountLinked
		}
	}
	u.GoogleSub = sub
	return nil
}

// SetPassword устанавливает хеш пароля пользователя.
func (r *MemoryRepository) SetPassword(_ context.Context, userID string, passwordHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = slices.Clone(passwordHash)
	return nil
}

// UpdateProfile обновляет профиль пользователя. Роль задаётся только если она ещё не выбрана.
func (r *MemoryRepository) UpdateProfile(_ context.Context, userID string, p ProfileUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Name = p.Name
	u.Phone = p.Phone
	u.Region = p.Region
	if u.Role == "" && p.Role != "" {
		u.Role = p.Role
	}
	return cloneUser(u), nil
}

// CreateAffiliation создаёт аффилиацию, делает создателя её участником и привязывает его учётную запись.
func (r *MemoryRepository) CreateAffiliation(_ context.Context, a *model.Affiliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.affiliations[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAffiliationExists, a.ID)
	}
	creator, ok := r.users[a.CreatedBy]
	if !ok {
		return ErrUserNotFound
	}

	a.Members = []string{a.CreatedBy}
	r.affiliations[a.ID] = cloneAffiliation(a)
	creator.AffiliationID = a.ID
	return nil
}

// GetAffiliation возвращает аффилиацию по идентификатору.
func (r *MemoryRepository) GetAffiliation(_ context.Context, id string) (*model.Affiliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.affiliations[id]
	if !ok {
		return nil, ErrAffiliationNotFound
	}
	return cloneAffiliation(a), nil
}

// ListAffiliations возвращает все аффилиации, упорядоченные по названию.
func (r *MemoryRepository) ListAffiliations(_ context.Context) ([]model.Affiliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Affiliation, 0, len(r.affiliations))
	for _, a := range r.affiliations {
		res = append(res, *cloneAffiliation(a))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// UpdateAffiliation изменяет название, район и координаты аффилиации.
func (r *MemoryRepository) UpdateAffiliation(_ context.Context, id string, u AffiliationUpdate) (*model.Affiliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.affiliations[id]
	if !ok {
		return nil, ErrAffiliationNotFound
	}
	a.Name = u.Name
	a.Region = u.Region
	a.Location = u.Location
	return cloneAffiliation(a), nil
}

// JoinAffiliation добавляет пользователя в участники (без дубликатов) и привязывает к нему аффилиацию.
func (r *MemoryRepository) JoinAffiliation(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.affiliations[id]
	if !ok {
		return ErrAffiliationNotFound
	}
	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if !a.HasMember(userID) {
		a.Members = append(a.Members, userID)
	}
	u.AffiliationID = id
	return nil
}

// LeaveAffiliation удаляет пользователя из участников и отвязывает аффилиацию от его учётной записи.
func (r *MemoryRepository) LeaveAffiliation(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.affiliations[id]
	if !ok {
		return ErrAffiliationNotFound
	}
	a.Members = slices.DeleteFunc(a.Members, func(m string) bool { return m == userID })
	if u, ok := r.users[userID]; ok && u.AffiliationID == id {
		u.AffiliationID = ""
	}
	return nil
}

// CreateDeposit сохраняет новую заявку.
func (r *MemoryRepository) CreateDeposit(_ context.Context, d *model.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.affiliations[d.AffiliationID]; !ok {
		return ErrAffiliationNotFound
	}
	if _, ok := r.users[d.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := r.deposits[d.ID]; ok {
		return fmt.Errorf("deposit %s already exists", d.ID)
	}
	r.deposits[d.ID] = d.Clone()
	return nil
}

// GetDeposit возвращает заявку по идентификатору.
func (r *MemoryRepository) GetDeposit(_ context.Context, id string) (*model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}
	return d.Clone(), nil
}

// ListDeposits возвращает заявки пользователя или аффилиации, новые первыми.
func (r *MemoryRepository) ListDeposits(_ context.Context, f model.DepositFilter) ([]model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.UserID == "" && f.AffiliationID == "" && f.Status == "" {
		return nil, fmt.Errorf("deposit filter is empty")
	}

	var res []model.Deposit
	for _, d := range r.deposits {
		if f.UserID != "" && d.UserID != f.UserID {
			continue
		}
		if f.AffiliationID != "" && d.AffiliationID != f.AffiliationID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		res = append(res, *d.Clone())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateDeposit применяет mutate к копии заявки и сохраняет её, только если mutate не вернул ошибку.
func (r *MemoryRepository) UpdateDeposit(_ context.Context, id string, mutate DepositMutation) (*model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.deposits[id]
	if !ok {
		return nil, ErrDepositNotFound
	}

	d := current.Clone()
	if err := mutate(d); err != nil {
		return nil, err
	}
	r.deposits[id] = d
	return d.Clone(), nil
}

// FinalizeDeposit завершает заявку и увеличивает баланс её владельца как одно действие.
func (r *MemoryRepository) FinalizeDeposit(_ context.Context, id string, settle DepositSettlement) (*model.Deposit, model.Reward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.deposits[id]
	if !ok {
		return nil, model.Reward{}, ErrDepositNotFound
	}

	d := current.Clone()
	reward, err := settle(d)
	if err != nil {
		return nil, model.Reward{}, err
	}

	owner, ok := r.users[d.UserID]
	if !ok {
		return nil, model.Reward{}, ErrUserNotFound
	}

	owner.TotalPoints += reward.Points
	owner.TotalEarnings += reward.Money
	r.deposits[id] = d
	return d.Clone(), reward, nil
}
