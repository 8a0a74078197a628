package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ipede/authorization-server/internal/application"
	"github.com/ipede/authorization-server/internal/infrastructure/config"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"github.com/ipede/authorization-server/internal/infrastructure/gateway"
	"github.com/ipede/authorization-server/internal/infrastructure/jose"
	"github.com/ipede/authorization-server/internal/infrastructure/jwt"
	"github.com/ipede/authorization-server/internal/infrastructure/repository"
	"github.com/ipede/authorization-server/internal/interfaces/http/handlers"
	"github.com/ipede/authorization-server/internal/interfaces/http/middleware/ratelimit"
	"github.com/ipede/authorization-server/internal/interfaces/http/middleware/session"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Router struct {
	router *chi.Mux
	db     *database.Postgres
}

func NewRouter(
	ctx context.Context,
	db *database.Postgres,
	cfg *config.Config,
	logger *zap.Logger,
) (*Router, error) {
	signer, err := jwt.NewSigner(cfg.JWTKeyPath, logger)
	if err != nil {
		return nil, err
	}

	serverRepo := repository.NewServerConfigurationRepository(db, logger)
	clientRepo := repository.NewClientConfigurationRepository(db, logger)
	requestRepo := repository.NewAuthorizationRequestRepository(db, logger)
	codeRepo := repository.NewAuthorizationCodeGrantRepository(db, logger)
	grantedRepo := repository.NewAuthorizationGrantedRepository(db, logger)
	tokenRepo := repository.NewOAuthTokenRepository(db, logger)
	cibaRepo := repository.NewBackchannelTransactionRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}
	fetcher := gateway.NewRequestObjectFetcher(httpClient, cfg.RequestURIMaxBytes, logger)
	notifier := gateway.NewClientNotifier(httpClient, logger)
	decoder := jose.NewRequestObjectDecoder(ctx, logger)
	assertionVerifier := jose.NewClientAssertionVerifier(ctx, logger)
	bearerVerifier := jose.NewJwtBearerVerifier(ctx, logger)

	authenticator := application.NewClientAuthenticator(serverRepo, clientRepo, assertionVerifier, logger)
	verifier := application.NewAuthorizationVerifier(logger)
	cibaVerifier := application.NewCibaVerifier(logger)

	authorizationService := application.NewAuthorizationService(
		serverRepo, clientRepo, requestRepo, codeRepo, grantedRepo,
		fetcher, decoder, verifier, authenticator, logger)
	tokenService := application.NewTokenService(
		serverRepo, clientRepo, codeRepo, tokenRepo, grantedRepo, cibaRepo,
		userRepo, authenticator, bearerVerifier, signer, logger)
	cibaService := application.NewCibaService(
		serverRepo, clientRepo, cibaRepo, userRepo, tokenRepo,
		authenticator, decoder, cibaVerifier, notifier, signer, logger)
	introspectionService := application.NewIntrospectionService(tokenRepo, authenticator, logger)
	userinfoService := application.NewUserinfoService(tokenRepo, userRepo, logger)

	authorizationHandler := handlers.NewAuthorizationHandler(authorizationService, logger)
	tokenHandler := handlers.NewTokenHandler(tokenService, logger)
	backchannelHandler := handlers.NewBackchannelHandler(cibaService, logger)
	introspectionHandler := handlers.NewIntrospectionHandler(introspectionService, logger)
	userinfoHandler := handlers.NewUserinfoHandler(userinfoService, logger)
	discoveryHandler := handlers.NewDiscoveryHandler(serverRepo, signer, logger)

	sessionGuard := session.NewGuard([]byte(cfg.SessionSecret))

	router := createRouter()

	rateLimiter := ratelimit.NewRateLimiter(100, 200, 3*time.Minute)
	router.Use(rateLimiter.Middleware)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Ping(); err != nil {
				logger.Error("Database health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database connection failed"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
		httpSwagger.PersistAuthorization(true),
	))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	// Tenant-scoped protocol endpoints
	router.Route("/{tenant}", func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", discoveryHandler.ConfigurationHandler)
		r.Get("/.well-known/jwks.json", discoveryHandler.JWKSHandler)

		r.Route("/oauth2", func(r chi.Router) {
			// client and user-agent facing endpoints
			r.Get("/authorize", authorizationHandler.AuthorizeHandler)
			r.Post("/authorize", authorizationHandler.AuthorizeHandler)
			r.Post("/par", authorizationHandler.PushHandler)
			r.Post("/token", tokenHandler.Handle)
			r.Post("/introspect", introspectionHandler.IntrospectHandler)
			r.Post("/revoke", introspectionHandler.RevokeHandler)
			r.Get("/userinfo", userinfoHandler.Handle)
			r.Post("/bc-authorize", backchannelHandler.AuthenticateHandler)

			// decision endpoints, called by the login/consent frontend and
			// the authentication device with an end-user session
			r.Group(func(r chi.Router) {
				r.Use(sessionGuard.Middleware)
				r.Post("/authorize/{id}/approve", authorizationHandler.ApproveHandler)
				r.Post("/authorize/{id}/deny", authorizationHandler.DenyHandler)
				r.Post("/bc-authorize/{authReqID}/approve", backchannelHandler.ApproveHandler)
				r.Post("/bc-authorize/{authReqID}/deny", backchannelHandler.DenyHandler)
			})
		})
	})

	return &Router{router: router, db: db}, nil
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
