package postgres

import (
	"context"
	"database/sql"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

/*
	-- Users
	CREATE TABLE users (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		avatar      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{ID: id}
	query := `SELECT name, avatar, created_at FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.Name, &user.Avatar, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	// Insert the profile or refresh name/avatar if the id already exists.
	// We return created_at to populate our core model.
	query :=
		`INSERT INTO users (id, name, avatar)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar = EXCLUDED.avatar
        RETURNING created_at`

	out := &domain.User{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Avatar).Scan(&out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return out, nil
}
