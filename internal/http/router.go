package http

import (
	"log/slog"
	"time"

	"userhub/internal/avatar"
	"userhub/internal/config"
	"userhub/internal/http/handlers"
	"userhub/internal/http/middlewares"
	"userhub/internal/observability"
	"userhub/internal/repo"
	"userhub/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries everything the router wires together.
type Deps struct {
	Log      *slog.Logger
	Store    repo.UserStore
	Sessions *session.Manager
	Avatars  *avatar.Manager
	Prom     *observability.Prom
	Registry *prometheus.Registry
	Ping     func() error
	Cfg      config.Config
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(otelgin.Middleware("userhub"))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(4 << 20)) // headroom over the 2 MiB avatar cap

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	cookie := middlewares.CookieSettings{
		Name:   d.Cfg.CookieName,
		Secure: d.Cfg.Env == "prod",
	}

	guard := middlewares.NewGuard(d.Sessions, d.Store, cookie)

	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// uploaded avatars are public static assets
	r.Static(avatar.PublicPrefix, d.Avatars.Dir())

	authHandler := handlers.NewAuthHandler(d.Store, d.Sessions, cookie, d.Prom)
	usersHandler := handlers.NewUsersHandler(d.Store, d.Avatars)
	avatarsHandler := handlers.NewAvatarsHandler(d.Store, d.Avatars, d.Prom)

	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	requireJSON := middlewares.RequireJSON()

	api := r.Group("/api")

	api.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), requireJSON, authHandler.Login)
	api.POST("/logout", authHandler.Logout)
	api.GET("/me", guard.RequireSession(), authHandler.Me)

	api.GET("/users", guard.RequireSession(), usersHandler.ListUsers)
	api.GET("/users/stats", usersHandler.Stats)
	api.POST("/users", requireJSON, usersHandler.CreateUser)

	api.GET("/users/:username",
		guard.RequireSession(),
		guard.LoadTargetUser(),
		usersHandler.GetUser,
	)

	api.PATCH("/users/:username",
		requireJSON,
		guard.RequireSession(),
		guard.LoadTargetUser(),
		guard.RequireSelfOrAdmin(),
		guard.AdminFieldGuard(),
		usersHandler.UpdateUser,
	)

	api.DELETE("/users/:username",
		guard.RequireSession(),
		guard.LoadTargetUser(),
		usersHandler.DeleteUser,
	)

	api.POST("/users/:username/avatar",
		guard.RequireSession(),
		guard.LoadTargetUser(),
		guard.RequireSelfOrAdmin(),
		avatarsHandler.Upload,
	)

	api.DELETE("/users/:username/avatar",
		guard.RequireSession(),
		guard.LoadTargetUser(),
		guard.RequireSelfOrAdmin(),
		avatarsHandler.Delete,
	)

	return r
}
