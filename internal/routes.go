package internal

import (
	"net/http"
	"parasited/internal/controllers"
	"parasited/internal/providers"
	"parasited/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()
	limiter := providers.NewRateLimiter(conf)

	routers.Post("/message", providers.RateLimitMiddleware(limiter, http.HandlerFunc(apiController.PostMessage)))
	routers.Get("/state", http.HandlerFunc(apiController.GetState))
	routers.Get("/catalog", http.HandlerFunc(apiController.GetCatalog))
	routers.Get("/history", http.HandlerFunc(apiController.GetHistory))
	return routers
}
