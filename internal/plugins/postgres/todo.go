package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
)

type TodoRepo struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepo {
	return &TodoRepo{db: db}
}

/*
	-- Todos
	CREATE TABLE todos (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		dream_id    UUID NOT NULL REFERENCES dreams(id) ON DELETE CASCADE,
		label       TEXT NOT NULL,
		done        BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

func (r *TodoRepo) ListTodos(ctx context.Context) ([]domain.Todo, error) {
	query := `SELECT id, dream_id, label, done, created_at
        FROM todos ORDER BY created_at`
	return r.scanTodos(r.db.QueryContext(ctx, query))
}

func (r *TodoRepo) ListTodosByDream(ctx context.Context, dreamID uuid.UUID) ([]domain.Todo, error) {
	query := `SELECT id, dream_id, label, done, created_at
        FROM todos WHERE dream_id = $1 ORDER BY created_at`
	return r.scanTodos(r.db.QueryContext(ctx, query, dreamID))
}

func (r *TodoRepo) scanTodos(rows *sql.Rows, err error) ([]domain.Todo, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		var t domain.Todo
		if err := rows.Scan(&t.ID, &t.DreamID, &t.Label, &t.Done, &t.CreatedAt); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}
