package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/banksampah-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликте сериализации, дедлоке или обрыве соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const userColumns = `id, email, password_hash, google_sub, name, phone, role,
	provinsi, kota, kecamatan, affiliation_id, total_points, total_earnings, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u             model.User
		role          string
		googleSub     *string
		affiliationID *string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &googleSub, &u.Name, &u.Phone, &role,
		&u.Region.Provinsi, &u.Region.Kota, &u.Region.Kecamatan, &affiliationID,
		&u.TotalPoints, &u.TotalEarnings, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	if googleSub != nil {
		u.GoogleSub = *googleSub
	}
	if affiliationID != nil {
		u.AffiliationID = *affiliationID
	}
	return &u, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, google_sub, name, phone, role, provinsi, kota, kecamatan, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.PasswordHash, nullable(u.GoogleSub), u.Name, u.Phone, string(u.Role),
		u.Region.Provinsi, u.Region.Kota, u.Region.Kecamatan, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByGoogleSub возвращает пользователя по идентификатору Google-аккаунта.
func (r *PostgresRepository) GetUserByGoogleSub(ctx context.Context, sub string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1`, sub))
}

// LinkGoogleAccount привязывает Google-аккаунт к пользователю.
func (r *PostgresRepository) LinkGoogleAccount(ctx context.Context, userID, sub string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET google_sub = $2 WHERE id = $1`, userID, sub)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGoogleAccountLinked
		}
		return fmt.Errorf("link google account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPassword устанавливает хеш пароля пользователя.
func (r *PostgresRepository) SetPassword(ctx context.Context, userID string, passwordHash []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile обновляет профиль пользователя. Роль задаётся только если она ещё не выбрана.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, phone = $3, provinsi = $4, kota = $5, kecamatan = $6,
		        role = CASE WHEN role = '' AND $7 <> '' THEN $7 ELSE role END
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, p.Name, p.Phone, p.Region.Provinsi, p.Region.Kota, p.Region.Kecamatan, string(p.Role),
	))
}

const affiliationColumns = `id, name, provinsi, kota, kecamatan, lat, lng, created_by, members, created_at`

func scanAffiliation(row pgx.Row) (*model.Affiliation, error) {
	var a model.Affiliation
	err := row.Scan(&a.ID, &a.Name, &a.Region.Provinsi, &a.Region.Kota, &a.Region.Kecamatan,
		&a.Location.Lat, &a.Location.Lng, &a.CreatedBy, &a.Members, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAffiliationNotFound
		}
		return nil, fmt.Errorf("scan affiliation: %w", err)
	}
	return &a, nil
}

// CreateAffiliation создаёт аффилиацию, делает создателя её участником и привязывает его учётную запись.
func (r *PostgresRepository) CreateAffiliation(ctx context.Context, a *model.Affiliation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO affiliations (id, name, provinsi, kota, kecamatan, lat, lng, created_by, members, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ARRAY[$8::text], $9)`,
		a.ID, a.Name, a.Region.Provinsi, a.Region.Kota, a.Region.Kecamatan,
		a.Location.Lat, a.Location.Lng, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAffiliationExists, a.ID)
		}
		return fmt.Errorf("insert affiliation: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET affiliation_id = $2 WHERE id = $1`, a.CreatedBy, a.ID)
	if err != nil {
		return fmt.Errorf("attach creator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	a.Members = []string{a.CreatedBy}
	return nil
}

// GetAffiliation возвращает аффилиацию по идентификатору.
func (r *PostgresRepository) GetAffiliation(ctx context.Context, id string) (*model.Affiliation, error) {
	return scanAffiliation(r.pool.QueryRow(ctx, `SELECT `+affiliationColumns+` FROM affiliations WHERE id = $1`, id))
}

// ListAffiliations возвращает все аффилиации.
func (r *PostgresRepository) ListAffiliations(ctx context.Context) ([]model.Affiliation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+affiliationColumns+` FROM affiliations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select affiliations: %w", err)
	}
	defer rows.Close()

	var res []model.Affiliation
	for rows.Next() {
		a, err := scanAffiliation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateAffiliation изменяет название, район и координаты аффилиации.
func (r *PostgresRepository) UpdateAffiliation(ctx context.Context, id string, u AffiliationUpdate) (*model.Affiliation, error) {
	return scanAffiliation(r.pool.QueryRow(ctx,
		`UPDATE affiliations SET name = $2, provinsi = $3, kota = $4, kecamatan = $5, lat = $6, lng = $7
		 WHERE id = $1
		 RETURNING `+affiliationColumns,
		id, u.Name, u.Region.Provinsi, u.Region.Kota, u.Region.Kecamatan, u.Location.Lat, u.Location.Lng,
	))
}

// JoinAffiliation добавляет пользователя в участники (без дубликатов) и привязывает к нему аффилиацию.
func (r *PostgresRepository) JoinAffiliation(ctx context.Context, id, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE affiliations
		 SET members = CASE WHEN $2 = ANY(members) THEN members ELSE array_append(members, $2) END
		 WHERE id = $1`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAffiliationNotFound
	}

	tag, err = tx.Exec(ctx, `UPDATE users SET affiliation_id = $2 WHERE id = $1`, userID, id)
	if err != nil {
		return fmt.Errorf("attach member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LeaveAffiliation удаляет пользователя из участников и отвязывает аффилиацию от его учётной записи.
func (r *PostgresRepository) LeaveAffiliation(ctx context.Context, id, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE affiliations SET members = array_remove(members, $2) WHERE id = $1`, id, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAffiliationNotFound
	}

	_, err = tx.Exec(ctx, `UPDATE users SET affiliation_id = NULL WHERE id = $1 AND affiliation_id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("detach member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const depositColumns = `id, user_id, user_name, user_email, affiliation_id, waste_items,
	total_weight_kg, estimated_points, estimated_money, pickup_lat, pickup_lng, pickup_address,
	pickup_provinsi, pickup_kota, pickup_kecamatan, status, progress_step,
	reward_points, reward_money, created_at, updated_at, completed_at`

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var (
		d      model.Deposit
		items  []byte
		status string
		step   string
	)
	err := row.Scan(&d.ID, &d.UserID, &d.UserName, &d.UserEmail, &d.AffiliationID, &items,
		&d.TotalWeightKg, &d.EstimatedPoints, &d.EstimatedMoney,
		&d.PickupLocation.Lat, &d.PickupLocation.Lng, &d.PickupAddress,
		&d.PickupRegion.Provinsi, &d.PickupRegion.Kota, &d.PickupRegion.Kecamatan,
		&status, &step, &d.RewardPoints, &d.RewardMoney, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("scan deposit: %w", err)
	}

	if err := json.Unmarshal(items, &d.WasteItems); err != nil {
		return nil, fmt.Errorf("decode waste items: %w", err)
	}
	d.Status = model.DepositStatus(status)
	d.ProgressStep = model.ProgressStep(step)

	return &d, nil
}

// CreateDeposit сохраняет новую заявку.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, d *model.Deposit) error {
	items, err := json.Marshal(d.WasteItems)
	if err != nil {
		return fmt.Errorf("encode waste items: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO deposits (id, user_id, user_name, user_email, affiliation_id, waste_items,
		        total_weight_kg, estimated_points, estimated_money, pickup_lat, pickup_lng, pickup_address,
		        pickup_provinsi, pickup_kota, pickup_kecamatan, status, progress_step, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		d.ID, d.UserID, d.UserName, d.UserEmail, d.AffiliationID, string(items),
		d.TotalWeightKg, d.EstimatedPoints, d.EstimatedMoney,
		d.PickupLocation.Lat, d.PickupLocation.Lng, d.PickupAddress,
		d.PickupRegion.Provinsi, d.PickupRegion.Kota, d.PickupRegion.Kecamatan,
		string(d.Status), string(d.ProgressStep), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrAffiliationNotFound
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

// GetDeposit возвращает заявку по идентификатору.
func (r *PostgresRepository) GetDeposit(ctx context.Context, id string) (*model.Deposit, error) {
	return scanDeposit(r.pool.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id))
}

// ListDeposits возвращает заявки пользователя или аффилиации, новые первыми.
func (r *PostgresRepository) ListDeposits(ctx context.Context, f model.DepositFilter) ([]model.Deposit, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.AffiliationID != "" {
		args = append(args, f.AffiliationID)
		conds = append(conds, fmt.Sprintf("affiliation_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, errors.New("deposit filter is empty")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE `+strings.Join(conds, " AND ")+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	defer rows.Close()

	var res []model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func lockDeposit(ctx context.Context, tx pgx.Tx, id string) (*model.Deposit, error) {
	return scanDeposit(tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1 FOR UPDATE`, id))
}

func writeDeposit(ctx context.Context, tx pgx.Tx, d *model.Deposit) error {
	_, err := tx.Exec(ctx,
		`UPDATE deposits
		 SET status = $2, progress_step = $3, reward_points = $4, reward_money = $5,
		     updated_at = $6, completed_at = $7
		 WHERE id = $1`,
		d.ID, string(d.Status), string(d.ProgressStep), d.RewardPoints, d.RewardMoney, d.UpdatedAt, d.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	return nil
}

// UpdateDeposit блокирует строку заявки, применяет к ней mutate и сохраняет результат.
// Предусловия mutate проверяются над текущим состоянием строки, поэтому два
// параллельных перехода из одного состояния не могут оба завершиться успешно.
func (r *PostgresRepository) UpdateDeposit(ctx context.Context, id string, mutate DepositMutation) (*model.Deposit, error) {
	var updated *model.Deposit

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		d, err := lockDeposit(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := mutate(d); err != nil {
			return err
		}

		if err := writeDeposit(ctx, tx, d); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// FinalizeDeposit в одной транзакции завершает заявку и увеличивает баланс её владельца.
// Баланс меняется приращением, а не записью абсолютного значения.
func (r *PostgresRepository) FinalizeDeposit(ctx context.Context, id string, settle DepositSettlement) (*model.Deposit, model.Reward, error) {
	var (
		updated *model.Deposit
		reward  model.Reward
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		d, err := lockDeposit(ctx, tx, id)
		if err != nil {
			return err
		}

		rw, err := settle(d)
		if err != nil {
			return err
		}

		if err := writeDeposit(ctx, tx, d); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users
			 SET total_points = total_points + $2, total_earnings = total_earnings + $3
			 WHERE id = $1`,
			d.UserID, rw.Points, rw.Money,
		)
		if err != nil {
			return fmt.Errorf("credit user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated, reward = d, rw
		return nil
	})
	if err != nil {
		return nil, model.Reward{}, err
	}

	return updated, reward, nil
}
