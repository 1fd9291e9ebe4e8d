package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pretzelai/email-use/adapter/in/http"
	"github.com/pretzelai/email-use/config"
	"github.com/pretzelai/email-use/infra/middleware"
	"github.com/pretzelai/email-use/pkg/logger"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := "info"
	if cfg.IsDevelopment() {
		logLevel = "debug"
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "email-use-api",
		Pretty:  cfg.IsDevelopment(),
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.Error("Failed to initialize dependencies: %v", err)
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(recover.New())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis)
	healthHandler.Register(app)

	// API routes (JWT protected; the Gmail OAuth callback is exempted
	// inside the middleware since Google redirects there without a token)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	http.NewRuleHandler(deps.RuleRepo, deps.DecisionStep).Register(api)
	http.NewSkipFilterHandler(deps.SkipFilterRepo).Register(api)
	http.NewSettingsHandler(deps.SettingsRepo).Register(api)
	http.NewLogHandler(deps.LogRepo, deps.DebugRepo).Register(api)
	http.NewGmailHandler(deps.OAuthService, deps.Producer).Register(api)

	return app, cleanup, nil
}
