package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandops/platform-backend/api/controllers"
	"github.com/brandops/platform-backend/api/middleware"
	"github.com/brandops/platform-backend/internal/activitylog"
	"github.com/brandops/platform-backend/internal/automation"
	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/internal/notifications"
	"github.com/brandops/platform-backend/pkg/config"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/logger"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Bus           *eventbus.Bus
	Automations   automation.Service
	Notifications notifications.Service
	Activity      activitylog.Service
	Registry      prometheus.Gatherer
	DB            controllers.Pinger
	Redis         controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Logging(deps.Logger))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config.App.Env))
		r.Get("/ready", controllers.HealthReady(deps.Config.App.Env, deps.Logger, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Config.JWT, deps.Logger))

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", controllers.ListAutomations(deps.Automations, deps.Logger))
			r.Get("/{id}", controllers.GetAutomation(deps.Automations, deps.Logger))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(deps.Logger, string(enums.RoleAdmin), string(enums.RoleOperator)))
				r.Post("/", controllers.CreateAutomation(deps.Automations, deps.Logger))
				r.Patch("/{id}", controllers.UpdateAutomation(deps.Automations, deps.Logger))
				r.Delete("/{id}", controllers.DeleteAutomation(deps.Automations, deps.Logger))
			})
		})

		r.Post("/events", controllers.PublishEvent(deps.Bus, deps.Logger))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, deps.Logger))
			r.Post("/{id}/read", controllers.MarkNotificationRead(deps.Notifications, deps.Logger))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, deps.Logger))
		})

		r.Get("/activity", controllers.ListActivity(deps.Activity, deps.Logger))
	})

	return r
}
