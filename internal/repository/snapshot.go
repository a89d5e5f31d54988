package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// LoadSnapshot читает всё состояние приложения. Вызывается один раз при старте.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}

	users, err := queryDocs(ctx, r, "users",
		`SELECT data, password_hash FROM users ORDER BY created_at`,
		func(u *model.User, hash []byte) { u.PasswordHash = hash })
	if err != nil {
		return nil, err
	}
	snap.Users = users

	regs, err := queryDocs(ctx, r, "registrations",
		`SELECT data, password_hash FROM registration_requests ORDER BY created_at`,
		func(req *model.RegistrationRequest, hash []byte) { req.Applicant.PasswordHash = hash })
	if err != nil {
		return nil, err
	}
	snap.Registrations = regs

	companies, err := queryDocs(ctx, r, "companies",
		`SELECT data, NULL::bytea FROM companies ORDER BY created_at`,
		func(*model.Company, []byte) {})
	if err != nil {
		return nil, err
	}
	snap.Companies = companies

	emergencies, err := queryDocs(ctx, r, "emergencies",
		`SELECT data, NULL::bytea FROM emergencies ORDER BY created_at`,
		func(*model.Emergency, []byte) {})
	if err != nil {
		return nil, err
	}
	snap.Emergencies = emergencies

	txs, err := queryDocs(ctx, r, "transactions",
		`SELECT data, NULL::bytea FROM transactions ORDER BY occurred_at`,
		func(*model.Transaction, []byte) {})
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		snap.Transactions = append(snap.Transactions, *t)
	}

	corrections, err := queryDocs(ctx, r, "corrections",
		`SELECT data, NULL::bytea FROM transaction_corrections ORDER BY corrected_at`,
		func(*model.Correction, []byte) {})
	if err != nil {
		return nil, err
	}
	for _, c := range corrections {
		snap.Corrections = append(snap.Corrections, *c)
	}

	return snap, nil
}

// queryDocs читает JSONB-документы. Второй столбец запроса передаётся в fill
// для полей, которые не сериализуются в документ.
func queryDocs[T any](ctx context.Context, r *PostgresRepository, name, query string, fill func(*T, []byte)) ([]*T, error) {
	var res []*T

	err := r.withRetry(ctx, func() error {
		res = nil

		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("select %s: %w", name, err)
		}

		res, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*T, error) {
			var (
				data []byte
				hash []byte
			)
			if err := row.Scan(&data, &hash); err != nil {
				return nil, err
			}
			return decodeDoc(data, hash, fill)
		})
		if err != nil {
			return fmt.Errorf("scan %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func decodeDoc[T any](data, extra []byte, fill func(*T, []byte)) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	fill(v, extra)
	return v, nil
}
