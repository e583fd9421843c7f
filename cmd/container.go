// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, signing keys) and
// wires every module with explicit constructors. This is the only place
// that knows about ALL modules.
package main

import (
	"context"

	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/iam/auth/authinfra"
	"github.com/axonlabs/axongate/pkg/iam/auth/authsrv"
	"github.com/axonlabs/axongate/pkg/iam/policy/policyinfra"
	"github.com/axonlabs/axongate/pkg/iam/policy/policysrv"
	"github.com/axonlabs/axongate/pkg/iam/role/roleinfra"
	"github.com/axonlabs/axongate/pkg/iam/session/sessioninfra"
	"github.com/axonlabs/axongate/pkg/iam/session/sessionsrv"
	"github.com/axonlabs/axongate/pkg/iam/tenant/tenantinfra"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/token/tokeninfra"
	"github.com/axonlabs/axongate/pkg/iam/token/tokensrv"
	"github.com/axonlabs/axongate/pkg/iam/user/userinfra"
	"github.com/axonlabs/axongate/pkg/iam/user/usersrv"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/axonlabs/axongate/pkg/ratelimit"
	"github.com/axonlabs/axongate/pkg/suppliers/suppliersinfra"
	"github.com/axonlabs/axongate/pkg/suppliers/supplierssrv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the composed services.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB    *sqlx.DB
	Redis *redis.Client

	// Services
	TokenService    *tokensrv.JWTService
	SessionRegistry *sessionsrv.Registry
	PolicyEngine    *policysrv.Engine
	Limiter         *ratelimit.Limiter
	AuthService     *authsrv.Orchestrator
	Selector        *supplierssrv.Selector

	// HTTP surfaces
	AuthMiddleware   *gateway.AuthMiddleware
	Proxy            *gateway.Proxy
	AuthHandlers     *authinfra.Handlers
	UserHandlers     *userinfra.Handlers
	SupplierHandlers *suppliersinfra.Handlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	logx.Info("✅ Infrastructure initialized")
}

// ---------------------------------------------------------------------------
// Module composition: infra, then repos, services, handlers, middleware
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	// Identity repositories
	userRepo := userinfra.NewPostgresUserRepository(c.DB)
	roleRepo := roleinfra.NewPostgresRoleRepository(c.DB)
	tenantRepo := tenantinfra.NewPostgresTenantRepository(c.DB)

	hasher := usersrv.NewBcryptHasher(c.Config.Auth.BcryptCost)
	directory := usersrv.NewDirectoryService(userRepo, roleRepo, hasher)

	// Token service
	keys, err := token.NewKeys(c.Config.Auth, c.Config.App.IsProduction())
	if err != nil {
		logx.Fatalf("Failed to load signing keys: %v", err)
	}
	blacklist := tokeninfra.NewRedisBlacklist(c.Redis)
	tokenSvc := tokensrv.NewJWTService(
		keys, blacklist,
		c.Config.Auth.Issuer, c.Config.Auth.Audience,
		c.Config.Auth.AccessTokenTTL, c.Config.Auth.RefreshTokenTTL,
	)
	c.TokenService = tokenSvc
	logx.Info("  ✅ Token service ready")

	// Session registry; registry and token service reference each other
	// through narrow interfaces, wired after both exist.
	sessionStore := sessioninfra.NewRedisStore(c.Redis, c.Config.Session.HardLifetime)
	registry := sessionsrv.NewRegistry(sessionStore, c.Config.Session)
	registry.SetRevoker(tokenSvc)
	tokenSvc.SetSessionBindings(registry)
	c.SessionRegistry = registry
	logx.Info("  ✅ Session registry ready")

	// Policy engine
	policyStore := policyinfra.NewRedisPolicyStore(c.Redis)
	c.PolicyEngine = policysrv.NewEngine(policyStore, policyStore)

	// Rate limiter
	c.Limiter = ratelimit.NewLimiter(ratelimit.NewRedisStore(c.Redis), c.Config.RateLimit)

	// Auth orchestrator
	c.AuthService = authsrv.NewOrchestrator(
		directory, userRepo, tenantRepo, tokenSvc, registry, c.PolicyEngine,
		loginLimits{limiter: c.Limiter},
		c.Config.Auth.MaxLoginAttempts,
	)
	logx.Info("  ✅ Auth orchestrator ready")

	// Suppliers
	credRepo := suppliersinfra.NewPostgresCredentialRepository(c.DB, c.Config.Database.CryptoKey)
	c.Selector = supplierssrv.NewSelector(
		credRepo,
		suppliersinfra.NewRedisCursor(c.Redis),
		supplierssrv.NewSDKProber(),
	)
	logx.Info("  ✅ Credential selector ready")

	// HTTP surfaces; the middleware and proxy share one routing table so
	// per-route auth opt-outs and forwarding always agree.
	routes := gateway.TableFromConfig(c.Config.Gateway)
	c.AuthMiddleware = gateway.NewAuthMiddleware(tokenSvc, registry)
	c.AuthMiddleware.SetRoutes(routes)
	c.Proxy = gateway.NewProxy(routes)
	c.AuthHandlers = authinfra.NewHandlers(c.AuthService)
	c.UserHandlers = userinfra.NewHandlers(directory)
	c.SupplierHandlers = suppliersinfra.NewHandlers(c.Selector, credRepo)
}

// loginLimits adapts the limiter to the auth orchestrator's reset port. The
// login route is anonymous at admission time, so its endpoint window is
// keyed by IP; the composition root is the one place that knows both the
// limiter and the mounted path.
type loginLimits struct {
	limiter *ratelimit.Limiter
}

func (l loginLimits) ResetLoginWindow(ctx context.Context, ip string) error {
	return l.limiter.ResetEndpoint(ctx, ratelimit.Request{
		IP:     ip,
		Method: "POST",
		Path:   "/api/v1/auth/token",
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices launches the periodic workers bound to ctx.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")
	go c.SessionRegistry.Run(ctx)
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}
}
