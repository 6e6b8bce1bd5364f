package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository handles the persistent identity behind tokens and presence.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	// EnsureUser creates or refreshes the profile row for an identity.
	EnsureUser(ctx context.Context, user *User) (*User, error)
}

// DreamRepository reads the dreams collection. Mutations are owned by the
// CRUD layer sharing the database; this service only refetches.
type DreamRepository interface {
	ListDreams(ctx context.Context) ([]Dream, error)
	GetDreamByID(ctx context.Context, id uuid.UUID) (*Dream, error)
}

// FragmentRepository reads the fragments collection.
type FragmentRepository interface {
	ListFragments(ctx context.Context) ([]Fragment, error)
	ListFragmentsByDream(ctx context.Context, dreamID uuid.UUID) ([]Fragment, error)
}

// TodoRepository reads the todos collection.
type TodoRepository interface {
	ListTodos(ctx context.Context) ([]Todo, error)
	ListTodosByDream(ctx context.Context, dreamID uuid.UUID) ([]Todo, error)
}
