package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"libraryhub.com/internal/engine"
	"libraryhub.com/internal/infra"
)

func NewServer(eng *engine.Engine) *fiber.App {
	cfg := eng.GetConfig()

	app := fiber.New(fiber.Config{
		AppName:      cfg.Server.AppName,
		BodyLimit:    cfg.Server.BodyLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: handleError,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	limiterCfg := limiter.Config{
		Max:        cfg.RateLimit.Max,
		Expiration: cfg.RateLimit.Window,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later")
		},
	}
	// 多实例共享计数
	if rdb := eng.GetRedisClient(); rdb != nil {
		limiterCfg.Storage = infra.NewRedisStorage(rdb)
	}
	app.Use(limiter.New(limiterCfg))

	NewRouter(app, eng).RegisterRoutes()

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Route not found")
	})

	return app
}
