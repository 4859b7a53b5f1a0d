package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-pilot/backend/internal/handler/prompt"
	middlewarePkg "github.com/zhouzirui/z-pilot/backend/internal/middleware"
	"github.com/zhouzirui/z-pilot/backend/internal/service/pilot"
	"github.com/zhouzirui/z-pilot/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services and serves staticDir under /static.
func NewRouter(pilotSvc *pilot.Service, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	prompt.New(pilotSvc).RegisterRoutes(r)

	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
	r.Get("/static/*", fileServer.ServeHTTP)
	r.Head("/static/*", fileServer.ServeHTTP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
