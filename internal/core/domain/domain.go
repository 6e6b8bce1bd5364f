package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated identity behind a connection. Name and avatar
// travel with presence announcements so other room members can render them.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dream is the shared entity a room is scoped to. One dream = one room.
type Dream struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Narrative string    `json:"narrative"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fragment is a nested piece of a dream (a scene, an image, a note).
type Fragment struct {
	ID        uuid.UUID `json:"id"`
	DreamID   uuid.UUID `json:"dreamId"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Todo is an action item attached to a dream.
type Todo struct {
	ID        uuid.UUID `json:"id"`
	DreamID   uuid.UUID `json:"dreamId"`
	Label     string    `json:"label"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entity tables exposed through the change feed and collection endpoints.
const (
	TableDreams    = "dreams"
	TableFragments = "fragments"
	TableTodos     = "todos"
)

// KnownTable reports whether a table name is part of the synced collection.
func KnownTable(name string) bool {
	switch name {
	case TableDreams, TableFragments, TableTodos:
		return true
	}
	return false
}

// ChangeEvent is the payload Postgres triggers attach to change
// notifications. It is forwarded to clients verbatim; the table name is the
// only field this system interprets.
type ChangeEvent struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`
}
