package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/middleware"
)

// CollectionsHandler serves whole-collection reads. Clients refetch a full
// table whenever the change feed signals a mutation on it, so these endpoints
// return every row, newest first.
type CollectionsHandler struct {
	dreams    domain.DreamRepository
	fragments domain.FragmentRepository
	todos     domain.TodoRepository
}

func NewCollectionsHandler(
	dreams domain.DreamRepository,
	fragments domain.FragmentRepository,
	todos domain.TodoRepository,
) *CollectionsHandler {
	return &CollectionsHandler{dreams: dreams, fragments: fragments, todos: todos}
}

func (h *CollectionsHandler) Dreams(w http.ResponseWriter, r *http.Request) {
	rows, err := h.dreams.ListDreams(r.Context())
	h.respond(w, r, domain.TableDreams, rows, err)
}

func (h *CollectionsHandler) Fragments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.fragments.ListFragments(r.Context())
	h.respond(w, r, domain.TableFragments, rows, err)
}

func (h *CollectionsHandler) Todos(w http.ResponseWriter, r *http.Request) {
	rows, err := h.todos.ListTodos(r.Context())
	h.respond(w, r, domain.TableTodos, rows, err)
}

func (h *CollectionsHandler) respond(w http.ResponseWriter, r *http.Request, table string, rows any, err error) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if err != nil {
		log.ErrorContext(r.Context(), "collections handler - list failed", "table", table, "err", err)
		http.Error(w, "failed to load collection", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		log.ErrorContext(r.Context(), "collections handler - encode failed", "table", table, "err", err)
	}
}
