// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrUserExists возвращается, если логин уже принадлежит другому пользователю.
	ErrUserExists = errors.New("user already exists")
	// ErrCompanyExists возвращается, если RUC уже принадлежит другой компании.
	ErrCompanyExists = errors.New("company already exists")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
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

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

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

// withRetry повторяет fn при конфликтах сериализации, взаимных блокировках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(r.delays) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delays[i]):
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
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

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) error {
	return r.withRetry(ctx, func() error {
		if _, err := r.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// SaveUser сохраняет пользователя целиком.
func (r *PostgresRepository) SaveUser(ctx context.Context, u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	err = r.exec(ctx, "save user",
		`INSERT INTO users (id, username, password_hash, role, active, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   username = EXCLUDED.username,
		   password_hash = EXCLUDED.password_hash,
		   role = EXCLUDED.role,
		   active = EXCLUDED.active,
		   data = EXCLUDED.data,
		   updated_at = EXCLUDED.updated_at`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.Active, data, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
	}
	return err
}

// SaveRegistration сохраняет заявку на регистрацию.
func (r *PostgresRepository) SaveRegistration(ctx context.Context, req *model.RegistrationRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	return r.exec(ctx, "save registration",
		`INSERT INTO registration_requests (id, status, password_hash, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   password_hash = EXCLUDED.password_hash,
		   data = EXCLUDED.data`,
		req.ID, string(req.Status), req.Applicant.PasswordHash, data, req.CreatedAt,
	)
}

// SaveCompany сохраняет внешнюю компанию.
func (r *PostgresRepository) SaveCompany(ctx context.Context, c *model.Company) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode company: %w", err)
	}

	err = r.exec(ctx, "save company",
		`INSERT INTO companies (id, ruc, data, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET ruc = EXCLUDED.ruc, data = EXCLUDED.data`,
		c.ID, c.RUC, data, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrCompanyExists, c.RUC)
	}
	return err
}

// SaveEmergency сохраняет вызов вместе с историей статусов.
func (r *PostgresRepository) SaveEmergency(ctx context.Context, e *model.Emergency) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode emergency: %w", err)
	}

	return r.exec(ctx, "save emergency",
		`INSERT INTO emergencies (id, user_id, status, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data`,
		e.ID, e.UserID, string(e.Status), data, e.CreatedAt,
	)
}

// SaveTransaction сохраняет операцию журнала доходов.
func (r *PostgresRepository) SaveTransaction(ctx context.Context, t model.Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	return r.exec(ctx, "save transaction",
		`INSERT INTO transactions (id, type, status, amount, occurred_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   type = EXCLUDED.type,
		   status = EXCLUDED.status,
		   amount = EXCLUDED.amount,
		   occurred_at = EXCLUDED.occurred_at,
		   data = EXCLUDED.data`,
		t.ID, string(t.Type), string(t.Status), t.Amount, t.Date, data,
	)
}

// DeleteTransaction удаляет операцию журнала доходов.
func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "delete transaction", `DELETE FROM transactions WHERE id = $1`, id)
}

// SaveCorrection сохраняет запись журнала корректировок.
func (r *PostgresRepository) SaveCorrection(ctx context.Context, c model.Correction) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode correction: %w", err)
	}

	return r.exec(ctx, "save correction",
		`INSERT INTO transaction_corrections (id, transaction_id, action, data, corrected_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.TransactionID, string(c.Action), data, c.At,
	)
}
