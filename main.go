package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/handlers"
	"github.com/netsight-ai/netsight-engine/pkg/llm"
	"github.com/netsight-ai/netsight-engine/pkg/logging"
	"github.com/netsight-ai/netsight-engine/pkg/mcp"
	mcpauth "github.com/netsight-ai/netsight-engine/pkg/mcp/auth"
	"github.com/netsight-ai/netsight-engine/pkg/mcp/tools"
	"github.com/netsight-ai/netsight-engine/pkg/middleware"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/services"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("warehouse_adapter", cfg.Warehouse.Adapter),
		zap.String("database", cfg.Database.Database))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Engine failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations run on a short-lived database/sql connection; the pgx
	// pool below is for request traffic only.
	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		sqlDB.Close()
		return err
	}
	sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	cache, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		logger.Info("Telemetry summary cache enabled",
			zap.String("redis_host", cfg.Redis.Host))
	}

	adapter, err := warehouse.NewFromConfig(&cfg.Warehouse, db, logger)
	if err != nil {
		return err
	}
	defer adapter.Close()

	scopes := database.NewRoleScopeProvider(db)
	auditor := audit.NewSecurityAuditor(logger)
	clock := clockwork.NewRealClock()

	// Repositories.
	networkRepo := repositories.NewNetworkRepository()
	apRepo := repositories.NewAccessPointRepository()
	telemetryRepo := repositories.NewTelemetryRepository()
	rawEventRepo := repositories.NewRawEventRepository()
	maskingRepo := repositories.NewMaskingPolicyRepository()
	semanticModelRepo := repositories.NewSemanticModelRepository()
	verifiedQueryRepo := repositories.NewVerifiedQueryRepository()
	conversationRepo := repositories.NewConversationRepository()
	validationRepo := repositories.NewValidationRepository()
	agentKeyRepo := repositories.NewAgentKeyRepository()

	// The analyst agent degrades to verified-queries-only when no LLM
	// endpoint is configured, so a missing AI section is not fatal.
	var llmClient llm.LLMClient
	var breaker *llm.CircuitBreaker
	if cfg.AI.IsAvailable() {
		llmClient, err = llm.NewFromConfig(&cfg.AI, logger)
		if err != nil {
			return err
		}
		breaker = llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
		logger.Info("Analyst LLM configured",
			zap.String("provider", cfg.AI.Provider),
			zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("No LLM configured; analyst serves verified queries only")
	}

	// Services.
	telemetryService := services.NewTelemetryService(networkRepo, apRepo, telemetryRepo, cache, logger)
	ingestService := services.NewIngestService(apRepo, telemetryRepo, rawEventRepo, logger)
	seedService := services.NewSeedService(networkRepo, apRepo, telemetryRepo, rawEventRepo, scopes, clock, cfg.Generator, logger)
	maskingService := services.NewMaskingService(maskingRepo, adapter, auditor, logger)
	semanticModelService := services.NewSemanticModelService(semanticModelRepo, verifiedQueryRepo, adapter, logger)
	verifiedQueryService := services.NewVerifiedQueryService(verifiedQueryRepo, semanticModelRepo, adapter, maskingService, auditor, logger)
	validationService := services.NewValidationService(networkRepo, apRepo, telemetryRepo, validationRepo, adapter, auditor, clock, cfg.Validation, logger)
	analystService := services.NewAnalystService(semanticModelRepo, verifiedQueryRepo, conversationRepo, verifiedQueryService, maskingService, adapter, llmClient, breaker, auditor, cfg.Warehouse.RowLimit, logger)
	agentKeyService, err := services.NewAgentKeyService(agentKeyRepo, cfg.CredentialsKey, logger)
	if err != nil {
		return err
	}

	// Publish the bundled semantic model so the analyst has one before
	// any admin uploads a revision.
	if err := bootstrapSemanticModel(ctx, scopes, semanticModelService, cfg.SemanticModelPath); err != nil {
		return err
	}

	// Authentication.
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return err
	}
	authService := auth.NewAuthService(jwksClient, cfg.Auth.EnableVerification, logger)
	authMiddleware := auth.NewMiddleware(authService, logger).
		WithScope(database.WithRoleContext(db, logger))

	// Console session continuity is optional; without a secret the analyst
	// API is stateless and clients track conversations themselves.
	if cfg.Auth.SessionSecret != "" {
		auth.InitSessionStore(cfg.Auth.SessionSecret,
			auth.DeriveCookieSettings(cfg.BaseURL, cfg.CookieDomain))
	}

	// HTTP API.
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTelemetryHandler(telemetryService, ingestService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDemoHandler(seedService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewMaskingHandler(maskingService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewSemanticModelHandler(semanticModelService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewVerifiedQueryHandler(verifiedQueryService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAnalystHandler(analystService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewValidationHandler(validationService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAgentKeyHandler(agentKeyService, logger).RegisterRoutes(mux, authMiddleware)

	// MCP server for agent access.
	auditLog := mcp.NewAuditLogger(logger)
	mcpServer := mcp.NewServer("netsight-engine", cfg.Version, logger, auditLog.Hooks())
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	toolDeps := &tools.ToolDeps{
		Scopes:        scopes,
		Analyst:       analystService,
		SemanticModel: semanticModelService,
		Queries:       verifiedQueryService,
		Validation:    validationService,
		Telemetry:     telemetryService,
		Logger:        logger,
	}
	tools.RegisterAskQuestionTool(mcpServer.MCP(), toolDeps)
	tools.RegisterSemanticModelTool(mcpServer.MCP(), toolDeps)
	tools.RegisterVerifiedQueryTools(mcpServer.MCP(), toolDeps)
	tools.RegisterDataQualityTool(mcpServer.MCP(), toolDeps)
	tools.RegisterNetworkHealthTool(mcpServer.MCP(), toolDeps)
	mcpAuthMiddleware := mcpauth.NewMiddleware(authService, agentKeyService, scopes, auditLog, logger)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, mcpAuthMiddleware)

	// ClientIP wraps outermost so the access log and the security audit
	// trail both see the parsed caller address.
	handler := middleware.ClientIP(middleware.RequestLogger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting netsight-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	logger.Info("Engine stopped")
	return nil
}

// bootstrapSemanticModel loads the bundled semantic model on an internal
// admin scope. Startup has no caller whose role could apply.
func bootstrapSemanticModel(ctx context.Context, scopes *database.RoleScopeProvider, svc services.SemanticModelService, path string) error {
	scopedCtx, cleanup, err := scopes.WithRoleScope(ctx, auth.RoleAdmin)
	if err != nil {
		return err
	}
	defer cleanup()
	return svc.Bootstrap(scopedCtx, path)
}
