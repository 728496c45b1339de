package api

import (
	"chat-sync/contract"
	"chat-sync/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// MaxUpload bounds a single uploaded file, in bytes.
	MaxUpload int64
}

// Services groups what the routes are served by.
type Services struct {
	Auth     services.IAuthService
	Chat     services.IChatService
	Users    services.IUserService
	Media    services.IMediaService
	Identity contract.IdentityResolver
	Sessions SessionOpener
}

// NewRouter builds the HTTP surface. Everything but registration, token
// refresh, health and metrics requires a bearer token.
func NewRouter(log *slog.Logger, svc Services, config Config) http.Handler {
	authHandler := NewAuthHandler(log, svc.Auth)
	userHandler := NewUserHandler(log, svc.Users, config.MaxUpload)
	conversationHandler := NewConversationHandler(log, svc.Chat)
	mediaHandler := NewMediaHandler(log, svc.Media, svc.Chat, config.MaxUpload)
	subscribeHandler := NewSubscribeHandler(log, svc.Users, svc.Sessions)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(config.RateLimitRequests, config.RateLimitWindow))
		r.Post("/register", authHandler.Register)
		r.Post("/token/refresh", authHandler.Refresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(Auth(svc.Identity))
		r.Use(RateLimit(config.RateLimitRequests, config.RateLimitWindow))

		r.Route("/user", func(r chi.Router) {
			r.Get("/profile", userHandler.GetProfile)
			r.Post("/profile", userHandler.UpdateProfile)
			r.Post("/profile/picture", userHandler.SetPicture)
			r.Delete("/profile/picture", userHandler.ClearPicture)
			r.Put("/options", userHandler.SetOptions)
			r.Get("/contacts", userHandler.Contacts)
			r.Put("/contacts/{phone}", userHandler.AddContact)
			r.Delete("/contacts/{phone}", userHandler.RemoveContact)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/new", conversationHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/message/new", conversationHandler.PostMessage)
				r.Get("/messages", conversationHandler.Messages)
				r.Put("/name/{name}", conversationHandler.SetName)
				r.Put("/topic/{topic}", conversationHandler.SetTopic)
				r.Put("/invite/resolve/{decision}", conversationHandler.Resolve)
				r.Put("/invite/{userId}", conversationHandler.Invite)
				r.Delete("/leave", conversationHandler.Leave)
			})
		})

		r.Post("/media/attach/{convId}/{msgId}", mediaHandler.Attach)
		r.Get("/media/{storeId}", mediaHandler.Get)
	})

	// Browsers cannot set headers on a WebSocket upgrade.
	r.With(QueryToken, Auth(svc.Identity), RateLimit(config.RateLimitRequests, config.RateLimitWindow)).
		Get("/client/subscribe", subscribeHandler.Subscribe)

	return r
}
