package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/api/handlers"
	"github.com/Togather-Foundation/listsync/internal/api/middleware"
	"github.com/Togather-Foundation/listsync/internal/config"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
	"github.com/Togather-Foundation/listsync/internal/metrics"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   config.Config
	Logger   zerolog.Logger
	Lists    *lists.ListService
	Items    *lists.ItemService
	Activity *activity.Log
	Users    *users.Service
	Auth     middleware.ActorResolver
	Health   *handlers.HealthChecker
	Realtime http.Handler // websocket endpoint; nil leaves /ws unrouted
	Build    BuildInfo
}

func NewRouter(d Deps) http.Handler {
	env := d.Config.Environment

	listsHandler := handlers.NewListsHandler(d.Lists, env)
	itemsHandler := handlers.NewItemsHandler(d.Items, env)
	activityHandler := handlers.NewActivityHandler(d.Activity, env)
	usersHandler := handlers.NewUsersHandler(d.Users, env)

	rateLimit := middleware.RateLimit(d.Config.RateLimit)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	requireAuth := middleware.RequireAuth(d.Auth, env)

	public := func(h http.HandlerFunc) http.Handler { return rateLimit(h) }
	login := func(h http.HandlerFunc) http.Handler { return loginTier(rateLimit(h)) }
	private := func(h http.HandlerFunc) http.Handler { return rateLimit(requireAuth(h)) }

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	if d.Health != nil {
		mux.Handle("GET /readyz", d.Health.Health())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", public(VersionHandler(d.Build).ServeHTTP))
	mux.Handle("GET /api/v1/openapi.json", public(OpenAPIHandler()))
	if d.Realtime != nil {
		mux.Handle("GET /ws", d.Realtime)
	}

	mux.Handle("POST /api/v1/users/register", login(usersHandler.Register))
	mux.Handle("POST /api/v1/users/login", login(usersHandler.Login))
	mux.Handle("GET /api/v1/users", private(usersHandler.List))
	mux.Handle("DELETE /api/v1/users/{id}", private(usersHandler.Delete))

	mux.Handle("POST /api/v1/lists", private(listsHandler.Create))
	mux.Handle("GET /api/v1/lists", private(listsHandler.All))
	mux.Handle("GET /api/v1/lists/mine", private(listsHandler.Mine))
	mux.Handle("GET /api/v1/lists/{id}", private(listsHandler.Get))
	mux.Handle("PUT /api/v1/lists/{id}", private(listsHandler.Update))
	mux.Handle("DELETE /api/v1/lists/{id}", private(listsHandler.Delete))

	mux.Handle("POST /api/v1/lists/{listId}/items", private(itemsHandler.Create))
	mux.Handle("GET /api/v1/lists/{listId}/items", private(itemsHandler.ByList))
	mux.Handle("GET /api/v1/lists/{listId}/items/stats", private(itemsHandler.Stats))
	mux.Handle("GET /api/v1/items/{id}", private(itemsHandler.Get))
	mux.Handle("PUT /api/v1/items/{id}", private(itemsHandler.Update))
	mux.Handle("PATCH /api/v1/items/{id}/toggle", private(itemsHandler.Toggle))
	mux.Handle("DELETE /api/v1/items/{id}", private(itemsHandler.Delete))

	mux.Handle("GET /api/v1/activity/recent", private(activityHandler.Recent))
	mux.Handle("GET /api/v1/activity/lists/{listId}", private(activityHandler.ListHistory))
	mux.Handle("GET /api/v1/activity/user", private(activityHandler.UserHistory))
	mux.Handle("GET /api/v1/activity/stats", private(activityHandler.Stats))

	// Outermost first. Metrics wraps the mux directly so it sees the
	// matched pattern.
	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.RequestSize(d.Config.Server.MaxBodyBytes)(handler)
	handler = middleware.CORS(d.Config.CORS, d.Logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging(d.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(d.Logger)(handler)
	return handler
}
