package router

import (
	"database/sql"
	"net/http"
	"time"

	_ "pet-care-log/docs"
	mem "pet-care-log/internal/adapters/storage/memory"
	pg "pet-care-log/internal/adapters/storage/postgres"
	"pet-care-log/internal/domain/chat"
	"pet-care-log/internal/domain/logs"
	"pet-care-log/internal/domain/members"
	"pet-care-log/internal/domain/pets"
	"pet-care-log/internal/domain/tasks"
	"pet-care-log/internal/domain/users"
	"pet-care-log/internal/domain/visibility"
	"pet-care-log/internal/domain/weights"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/notify"
	"pet-care-log/internal/ports/auth"
	"pet-care-log/internal/ports/blob"
	es "pet-care-log/internal/ports/entitystore"
	"pet-care-log/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Store tiene prioridad sobre DB. Sin ninguno => in-memory.
	Store es.Store
	DB    *sql.DB

	// Hub compartido con el relay entre instancias; nil => hub local.
	Hub *live.Hub

	// Publisher nil => dispatcher en el mismo proceso con Pusher.
	Publisher notify.Publisher
	Pusher    notify.Pusher
	Uploader  blob.Uploader

	DefaultLocation *time.Location
	AppBaseURL      string
	Logger          *zap.Logger
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	hub := opts.Hub
	if hub == nil {
		hub = live.NewHub(log)
	}

	var base es.Store
	switch {
	case opts.Store != nil:
		base = opts.Store
	case opts.DB != nil:
		base = pg.NewStore(opts.DB)
	default:
		base = mem.NewStore()
	}
	store := live.NewPublishingStore(base, hub)

	// Services por módulo
	usersSvc := users.NewService(store, opts.Uploader, log)
	membersSvc := members.NewService(store, hub, log)
	petsSvc := pets.NewService(store, opts.Uploader, log)
	resolver := visibility.NewResolver(store, hub, log)
	tasksSvc := tasks.NewService(store, hub, log)
	logsSvc := logs.NewService(store, hub, log)
	weightsSvc := weights.NewService(store)

	publisher := opts.Publisher
	if publisher == nil {
		pusher := opts.Pusher
		if pusher == nil {
			pusher = notify.LogPusher{Log: log}
		}
		d := notify.NewDispatcher(store, usersSvc, pusher, opts.AppBaseURL, log)
		publisher = notify.NewDirect(d, log)
	}
	chatSvc := chat.NewService(store, hub, publisher, log)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLog(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthContext(opts.AuthVerifier))
		r.Use(middleware.ProfileSync(usersSvc, log))

		// Rutas por módulo
		users.RegisterRoutes(r, usersSvc)
		pets.RegisterRoutes(r, petsSvc, membersSvc)
		members.RegisterRoutes(r, membersSvc)
		visibility.RegisterRoutes(r, resolver)
		tasks.RegisterRoutes(r, tasksSvc, membersSvc)
		logs.RegisterRoutes(r, logsSvc, membersSvc, loc)
		weights.RegisterRoutes(r, weightsSvc, membersSvc)
		chat.RegisterRoutes(r, chatSvc, membersSvc)

		realtime.RegisterRoutes(r, realtime.NewStreamer(log), realtime.Deps{
			Hub:             hub,
			Authz:           membersSvc,
			VisiblePets:     resolver,
			Invitations:     membersSvc,
			Tasks:           tasksSvc,
			Logs:            logsSvc,
			Chat:            chatSvc,
			DefaultLocation: loc,
		})
	})

	return r
}
