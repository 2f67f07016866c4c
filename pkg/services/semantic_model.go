package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// SemanticModelService manages the versioned semantic model the analyst
// agent consumes. Exactly one version is active at a time; activating a
// version also syncs its verified queries into the query store.
type SemanticModelService interface {
	// GetActive returns the active stored version with its document.
	GetActive(ctx context.Context) (*models.SemanticModelVersion, error)

	// GetActiveModel parses the active document and returns it with its
	// version number.
	GetActiveModel(ctx context.Context) (*models.SemanticModel, int, error)

	// List returns all stored versions, newest first.
	List(ctx context.Context) ([]*models.SemanticModelVersion, error)

	// Put validates and stores a document as a new version, activating it
	// when activate is set. Returns the stored version plus validation
	// issues (warnings survive a successful Put; errors abort it).
	Put(ctx context.Context, document []byte, activate bool) (*models.SemanticModelVersion, []semantic.Issue, error)

	// Validate runs structural validation plus a live check against the
	// warehouse schema, without storing anything.
	Validate(ctx context.Context, document []byte) ([]semantic.Issue, error)

	// Render renders the active model at the given detail tier.
	Render(ctx context.Context, tier string, tables []string) (string, error)

	// Bootstrap ensures the semantic model file at path is stored and
	// active. Called at engine startup; a no-op when the file already is
	// the active version.
	Bootstrap(ctx context.Context, path string) error
}

type semanticModelService struct {
	repo    repositories.SemanticModelRepository
	queries repositories.VerifiedQueryRepository
	adapter warehouse.Adapter
	logger  *zap.Logger
}

// NewSemanticModelService creates a semantic model service.
func NewSemanticModelService(
	repo repositories.SemanticModelRepository,
	queries repositories.VerifiedQueryRepository,
	adapter warehouse.Adapter,
	logger *zap.Logger,
) SemanticModelService {
	return &semanticModelService{
		repo:    repo,
		queries: queries,
		adapter: adapter,
		logger:  logger,
	}
}

// GetActive returns the active stored version.
func (s *semanticModelService) GetActive(ctx context.Context) (*models.SemanticModelVersion, error) {
	return s.repo.GetActive(ctx)
}

// GetActiveModel parses the active document.
func (s *semanticModelService) GetActiveModel(ctx context.Context) (*models.SemanticModel, int, error) {
	version, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, 0, err
	}
	model, err := semantic.Parse([]byte(version.Document))
	if err != nil {
		// Stored documents were validated on the way in; a parse failure
		// here means the store was tampered with.
		return nil, 0, fmt.Errorf("stored semantic model v%d does not parse: %w", version.Version, err)
	}
	return model, version.Version, nil
}

// List returns all stored versions, newest first.
func (s *semanticModelService) List(ctx context.Context) ([]*models.SemanticModelVersion, error) {
	return s.repo.List(ctx)
}

// Put validates and stores a document as a new version.
func (s *semanticModelService) Put(ctx context.Context, document []byte, activate bool) (*models.SemanticModelVersion, []semantic.Issue, error) {
	model, err := semantic.Parse(document)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic model does not parse: %w", err)
	}

	issues := semantic.Validate(model)
	if semantic.HasErrors(issues) {
		return nil, issues, fmt.Errorf("semantic model failed validation")
	}

	checksum := semantic.Checksum(document)
	version, err := s.repo.GetByChecksum(ctx, checksum)
	switch {
	case err == nil:
		// Identical document already stored; reuse that version.
	case errors.Is(err, apperrors.ErrNotFound):
		version, err = s.repo.Create(ctx, string(document), checksum, auth.GetSubjectFromContext(ctx))
		if err != nil {
			return nil, issues, fmt.Errorf("failed to store semantic model: %w", err)
		}
		s.logger.Info("Stored semantic model version",
			zap.Int("version", version.Version),
			zap.String("checksum", checksum),
		)
	default:
		return nil, issues, fmt.Errorf("failed to check existing versions: %w", err)
	}

	if activate && !version.IsActive {
		version, err = s.activate(ctx, version.Version, model)
		if err != nil {
			return nil, issues, err
		}
	}

	return version, issues, nil
}

// Validate runs structural plus live-schema validation.
func (s *semanticModelService) Validate(ctx context.Context, document []byte) ([]semantic.Issue, error) {
	model, err := semantic.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("semantic model does not parse: %w", err)
	}

	issues := semantic.Validate(model)

	physical, err := s.adapter.Schema(ctx)
	if err != nil {
		return issues, fmt.Errorf("failed to read warehouse schema: %w", err)
	}
	issues = append(issues, semantic.ValidateAgainstSchema(model, physical)...)

	return issues, nil
}

// Render renders the active model at the given tier.
func (s *semanticModelService) Render(ctx context.Context, tier string, tables []string) (string, error) {
	model, _, err := s.GetActiveModel(ctx)
	if err != nil {
		return "", err
	}
	return semantic.Render(model, tier, tables)
}

// Bootstrap ensures the model file at path is stored and active.
func (s *semanticModelService) Bootstrap(ctx context.Context, path string) error {
	document, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read semantic model file: %w", err)
	}

	// Skip the write path entirely when the file already is the active
	// version, so restarts leave the store untouched.
	if active, err := s.repo.GetActive(ctx); err == nil {
		if active.Checksum == semantic.Checksum(document) {
			return nil
		}
	}

	version, _, err := s.Put(ctx, document, true)
	if err != nil {
		return fmt.Errorf("failed to bootstrap semantic model from %s: %w", path, err)
	}

	s.logger.Info("Bootstrapped semantic model",
		zap.String("path", path),
		zap.Int("version", version.Version),
	)
	return nil
}

// activate flips the active version and syncs its verified queries.
func (s *semanticModelService) activate(ctx context.Context, versionNumber int, model *models.SemanticModel) (*models.SemanticModelVersion, error) {
	version, err := s.repo.Activate(ctx, versionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to activate version %d: %w", versionNumber, err)
	}

	for _, def := range model.VerifiedQueries {
		query := &models.VerifiedQuery{
			Name:          def.Name,
			Question:      def.Question,
			SQL:           def.SQL,
			Parameters:    def.Parameters,
			OutputColumns: def.OutputColumns,
			ModelVersion:  versionNumber,
			IsEnabled:     true,
		}
		if err := s.queries.Upsert(ctx, query); err != nil {
			return nil, fmt.Errorf("failed to sync verified query %q: %w", def.Name, err)
		}
	}

	disabled, err := s.queries.DisableOtherVersions(ctx, versionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to retire stale verified queries: %w", err)
	}

	s.logger.Info("Activated semantic model version",
		zap.Int("version", versionNumber),
		zap.Int("verified_queries", len(model.VerifiedQueries)),
		zap.Int64("retired_queries", disabled),
	)

	return version, nil
}

// Ensure semanticModelService implements SemanticModelService at compile time.
var _ SemanticModelService = (*semanticModelService)(nil)
