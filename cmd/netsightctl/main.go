// netsightctl is the operator CLI for netsight-engine. It talks to the
// engine database directly with the same configuration the server reads,
// so it must run where config.yaml and the engine secrets are available.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/llm"
	"github.com/netsight-ai/netsight-engine/pkg/logging"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/services"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "netsightctl",
		Short:         "Operator CLI for netsight-engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newValidateCmd(),
		newAskCmd(),
		newMaskingCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// engine bundles the wiring every data command needs. Commands run on an
// admin scope: the CLI is an operator tool, not a governed caller.
type engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *database.DB
	adapter    warehouse.Adapter
	scopes     *database.RoleScopeProvider
	seed       services.SeedService
	masking    services.MaskingService
	validation services.ValidationService
	analyst    services.AnalystService
}

func newEngine(ctx context.Context) (*engine, func(), error) {
	cfg, err := config.Load(Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, nil, err
	}

	adapter, err := warehouse.NewFromConfig(&cfg.Warehouse, db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	scopes := database.NewRoleScopeProvider(db)
	auditor := audit.NewSecurityAuditor(logger)
	clock := clockwork.NewRealClock()

	networkRepo := repositories.NewNetworkRepository()
	apRepo := repositories.NewAccessPointRepository()
	telemetryRepo := repositories.NewTelemetryRepository()
	rawEventRepo := repositories.NewRawEventRepository()
	maskingRepo := repositories.NewMaskingPolicyRepository()
	semanticModelRepo := repositories.NewSemanticModelRepository()
	verifiedQueryRepo := repositories.NewVerifiedQueryRepository()
	conversationRepo := repositories.NewConversationRepository()
	validationRepo := repositories.NewValidationRepository()

	var llmClient llm.LLMClient
	var breaker *llm.CircuitBreaker
	if cfg.AI.IsAvailable() {
		llmClient, err = llm.NewFromConfig(&cfg.AI, logger)
		if err != nil {
			adapter.Close()
			db.Close()
			return nil, nil, err
		}
		breaker = llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	}

	maskingService := services.NewMaskingService(maskingRepo, adapter, auditor, logger)
	verifiedQueryService := services.NewVerifiedQueryService(verifiedQueryRepo, semanticModelRepo, adapter, maskingService, auditor, logger)

	e := &engine{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		adapter: adapter,
		scopes:  scopes,
		seed: services.NewSeedService(networkRepo, apRepo, telemetryRepo, rawEventRepo,
			scopes, clock, cfg.Generator, logger),
		masking: maskingService,
		validation: services.NewValidationService(networkRepo, apRepo, telemetryRepo, validationRepo,
			adapter, auditor, clock, cfg.Validation, logger),
		analyst: services.NewAnalystService(semanticModelRepo, verifiedQueryRepo, conversationRepo,
			verifiedQueryService, maskingService, adapter, llmClient, breaker, auditor,
			cfg.Warehouse.RowLimit, logger),
	}

	cleanup := func() {
		adapter.Close()
		db.Close()
		_ = logger.Sync()
	}
	return e, cleanup, nil
}

// adminScope opens a role-scoped context acting as admin.
func (e *engine) adminScope(ctx context.Context) (context.Context, func(), error) {
	return e.scopes.WithRoleScope(ctx, auth.RoleAdmin)
}
