package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
)

type FragmentRepo struct {
	db *sql.DB
}

func NewFragmentRepository(db *sql.DB) *FragmentRepo {
	return &FragmentRepo{db: db}
}

/*
	-- Fragments
	CREATE TABLE fragments (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		dream_id    UUID NOT NULL REFERENCES dreams(id) ON DELETE CASCADE,
		kind        TEXT NOT NULL,
		content     TEXT NOT NULL DEFAULT '',
		position    INT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

func (r *FragmentRepo) ListFragments(ctx context.Context) ([]domain.Fragment, error) {
	query := `SELECT id, dream_id, kind, content, position, created_at
        FROM fragments ORDER BY dream_id, position`
	return r.scanFragments(r.db.QueryContext(ctx, query))
}

func (r *FragmentRepo) ListFragmentsByDream(ctx context.Context, dreamID uuid.UUID) ([]domain.Fragment, error) {
	query := `SELECT id, dream_id, kind, content, position, created_at
        FROM fragments WHERE dream_id = $1 ORDER BY position`
	return r.scanFragments(r.db.QueryContext(ctx, query, dreamID))
}

func (r *FragmentRepo) scanFragments(rows *sql.Rows, err error) ([]domain.Fragment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fragments := []domain.Fragment{}
	for rows.Next() {
		var f domain.Fragment
		if err := rows.Scan(&f.ID, &f.DreamID, &f.Kind, &f.Content, &f.Position, &f.CreatedAt); err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}
