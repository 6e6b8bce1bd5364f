package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
)

type DreamRepo struct {
	db *sql.DB
}

func NewDreamRepository(db *sql.DB) *DreamRepo {
	return &DreamRepo{db: db}
}

/*
	-- Dreams
	CREATE TABLE dreams (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id    TEXT NOT NULL REFERENCES users(id),
		title       TEXT NOT NULL,
		narrative   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

func (r *DreamRepo) ListDreams(ctx context.Context) ([]domain.Dream, error) {
	query := `SELECT id, owner_id, title, narrative, created_at, updated_at
        FROM dreams ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dreams := []domain.Dream{}
	for rows.Next() {
		var d domain.Dream
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Narrative, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		dreams = append(dreams, d)
	}
	return dreams, rows.Err()
}

func (r *DreamRepo) GetDreamByID(ctx context.Context, id uuid.UUID) (*domain.Dream, error) {
	dream := &domain.Dream{ID: id}
	query := `SELECT owner_id, title, narrative, created_at, updated_at FROM dreams WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&dream.OwnerID, &dream.Title, &dream.Narrative, &dream.CreatedAt, &dream.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDreamNotFound
		}
		return nil, err
	}
	return dream, nil
}
