package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axonlabs/axongate/pkg/asyncx"
	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/axonlabs/axongate/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
)

func main() {
	// .env is a development convenience; in production everything comes
	// from the real environment.
	_ = godotenv.Load()

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("🚀 Starting AxonGate API gateway...")

	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Configuration error: %v", err)
	}

	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	container.StartBackgroundServices(ctx)

	public := buildPublicApp(cfg, container)
	internal := buildInternalApp(cfg, container)

	go func() {
		logx.Infof("Internal API listening on :%s", cfg.App.InternalPort)
		if err := internal.Listen(":" + cfg.App.InternalPort); err != nil {
			logx.Fatalf("Internal listener failed: %v", err)
		}
	}()

	go func() {
		logx.Infof("Public API listening on :%s", cfg.App.Port)
		if err := public.Listen(":" + cfg.App.Port); err != nil {
			logx.Fatalf("Public listener failed: %v", err)
		}
	}()

	<-ctx.Done()
	logx.Info("🛑 Shutting down...")

	if err := public.ShutdownWithTimeout(10 * time.Second); err != nil {
		logx.Errorf("Public shutdown error: %v", err)
	}
	if err := internal.ShutdownWithTimeout(10 * time.Second); err != nil {
		logx.Errorf("Internal shutdown error: %v", err)
	}
	logx.Info("✅ Shutdown complete")
}

// buildPublicApp assembles the gateway pipeline in its required order:
// request id, CORS, security headers, identity-header stripping, rate-limit
// admission, then routes and the proxy catch-all.
func buildPublicApp(cfg *config.Config, container *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "AxonGate",
		DisableStartupMessage: true,
		ErrorHandler:          gateway.ErrorHandler,
		BodyLimit:             cfg.Gateway.BodyLimit,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	app.Use(requestid.New(requestid.Config{
		Header:     gateway.RequestIDHeader,
		ContextKey: "request_id",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-Id",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-Id",
	}))

	app.Use(gateway.SecurityHeaders())
	app.Use(gateway.StripIdentityHeaders())

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-Id}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Use(ratelimit.Middleware(container.Limiter, bearerIdentity(container)))

	app.Get("/health", healthHandler(container))

	authn := container.AuthMiddleware.Authenticate()
	container.AuthHandlers.RegisterRoutes(app, authn)
	logx.Info("✓ Auth routes registered")

	// Everything else under /api/v1 is proxied to its upstream.
	app.All("/api/v1/*", authn, container.Proxy.Handler())
	logx.Info("✓ Proxy routes registered")

	app.Use(func(c *fiber.Ctx) error {
		return gateway.ErrRouteNotFound()
	})

	return app
}

// bearerIdentity resolves the caller for rate-limit admission, which runs
// before the route-level auth middleware. An invalid or absent token admits
// as anonymous; the auth middleware rejects it after admission, so nothing
// is leaked by being lenient here.
func bearerIdentity(container *Container) ratelimit.IdentityFn {
	return func(c *fiber.Ctx) (string, string) {
		raw := gateway.BearerToken(c)
		if raw == "" {
			return "", ""
		}
		claims, err := container.TokenService.Verify(c.UserContext(), raw, token.KindAccess)
		if err != nil {
			return "", ""
		}
		return claims.UserID().String(), claims.Role
	}
}

// buildInternalApp assembles the internal listener. It shares nothing with
// the public pipeline except the error handler; responses here may carry
// decrypted secrets and must never be reachable from outside.
func buildInternalApp(cfg *config.Config, container *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "AxonGate Internal",
		DisableStartupMessage: true,
		ErrorHandler:          gateway.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     gateway.RequestIDHeader,
		ContextKey: "request_id",
	}))

	container.UserHandlers.RegisterRoutes(app)
	container.SupplierHandlers.RegisterRoutes(app)
	logx.Info("✓ Internal routes registered")

	return app
}

// healthHandler pings the stores concurrently and reports per-dependency
// status alongside the service's own.
func healthHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		dbCheck := asyncx.Run(func() (string, error) {
			return "up", container.DB.PingContext(ctx)
		})
		redisCheck := asyncx.Run(func() (string, error) {
			return "up", container.Redis.Ping(ctx).Err()
		})

		status := fiber.StatusOK
		downstream := fiber.Map{}

		if _, err := dbCheck.Await(); err != nil {
			downstream["database"] = "down"
			status = fiber.StatusServiceUnavailable
		} else {
			downstream["database"] = "up"
		}
		if _, err := redisCheck.Await(); err != nil {
			downstream["redis"] = "down"
			status = fiber.StatusServiceUnavailable
		} else {
			downstream["redis"] = "up"
		}

		overall := "healthy"
		if status != fiber.StatusOK {
			overall = "degraded"
		}

		return c.Status(status).JSON(fiber.Map{
			"status":     overall,
			"service":    "axongate",
			"version":    container.Config.App.Version,
			"downstream": downstream,
		})
	}
}
