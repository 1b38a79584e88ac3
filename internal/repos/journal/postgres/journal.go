package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ferbarht/KipuBankV2/internal/repos/journal"
)

var _ journal.Journal = (*journalRepo)(nil)

type journalRepo struct{ db *sql.DB }

func New(db *sql.DB) *journalRepo {
	return &journalRepo{db: db}
}

func (r *journalRepo) Insert(ctx context.Context, e journal.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations (kind, owner_addr, asset, amount)
		VALUES ($1, $2, $3, $4)
	`, e.Kind, e.Owner, e.Asset, e.Amount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "22P02" { // invalid_text_representation
				return fmt.Errorf("amount %q: %w", e.Amount, journal.ErrMalformedAmount)
			}
		}

		return fmt.Errorf("insert operation: %w", err)
	}

	return nil
}

func (r *journalRepo) List(ctx context.Context, owner string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, owner_addr, asset, amount, created_at
		FROM operations
		WHERE owner_addr = $1
		ORDER BY id DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry

	for rows.Next() {
		var e journal.Entry

		err := rows.Scan(&e.ID, &e.Kind, &e.Owner, &e.Asset, &e.Amount, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}

		entries = append(entries, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	return entries, nil
}
