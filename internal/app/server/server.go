package server

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/registry"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/server/handlers"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/services"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/middleware"
)

type Server struct {
	mux         *http.ServeMux
	port        string
	logger      *slog.Logger
	authHandler *handlers.AuthHandler
	wsHandler   *handlers.WSHandler
	collections *handlers.CollectionsHandler
	tokenSvc    *services.TokenService
}

func NewServer(
	port string,
	logger *slog.Logger,
	userSvc *services.UserService,
	tokenSvc *services.TokenService,
	roomSvc *services.RoomService,
	hub *registry.Registry,
	dreams domain.DreamRepository,
	fragments domain.FragmentRepository,
	todos domain.TodoRepository,
) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		port:        port,
		logger:      logger,
		authHandler: handlers.NewAuthHandler(userSvc, tokenSvc),
		wsHandler:   handlers.NewWSHandler(hub, roomSvc),
		collections: handlers.NewCollectionsHandler(dreams, fragments, todos),
		tokenSvc:    tokenSvc,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	// 1. Initialize Middleware
	auth := middleware.AuthMiddleware(s.tokenSvc)
	tracing := middleware.TracerMiddleware("dreamcatcher-backend")
	chain := func(h http.Handler) http.Handler {
		return middleware.RequestLogger(s.logger)(tracing(auth(h)))
	}

	// 2. Public Routes
	s.mux.Handle("POST /auth/token", middleware.RequestLogger(s.logger)(http.HandlerFunc(s.authHandler.Token)))

	// 3. Protected Routes
	// The middleware extracts the 'sub' from the JWT and puts it in Context.
	s.mux.Handle("/ws", chain(http.HandlerFunc(s.wsHandler.Handler)))
	s.mux.Handle("GET /api/dreams", chain(http.HandlerFunc(s.collections.Dreams)))
	s.mux.Handle("GET /api/fragments", chain(http.HandlerFunc(s.collections.Fragments)))
	s.mux.Handle("GET /api/todos", chain(http.HandlerFunc(s.collections.Todos)))
}

func (s *Server) Start() error {
	server := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Printf("Server starting on port %s", s.port)
	return server.ListenAndServe()
}
