package handler

import (
	"github.com/gofiber/fiber/v2"

	"docchat/internal/http/middleware"
	"docchat/internal/logger"
	"docchat/internal/service"
	"docchat/internal/storage"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// objects is only set for the in-memory storage backend, whose objects the
// API serves itself under /objects/.
func RegisterRoutes(app *fiber.App, pinger Pinger, chatSvc service.ChatService, log *logger.Logger, objects storage.Storage) {
	app.Get("/health", HealthCheck(pinger))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api", middleware.NoStore())
	api.Post("/chat", Chat(chatSvc, log))

	api.Post("/sessions", CreateSession(chatSvc, log))
	api.Get("/sessions", ListSessions(chatSvc))
	api.Get("/sessions/:id", GetSession(chatSvc, log))
	api.Post("/sessions/:id/messages", PostMessage(chatSvc, log))

	if objects != nil {
		app.Get("/objects/*", ServeObject(objects))
	}
}
