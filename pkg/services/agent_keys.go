package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/crypto"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
)

// agentKeyPrefix marks netsight agent keys so leaked secrets are
// attributable in scanner output.
const agentKeyPrefix = "nsk_"

// agentKeyDisplayLen is how many leading characters of a key are stored in
// plaintext for display and lookup.
const agentKeyDisplayLen = 8

// AgentKeyService manages agent API keys for MCP authentication.
type AgentKeyService interface {
	// Create generates a key acting as the given engine role. The plaintext
	// key is returned exactly once; only its encrypted form is stored.
	Create(ctx context.Context, name string, role string) (*models.AgentAPIKey, string, error)

	// List returns all keys, newest first, without key material.
	List(ctx context.Context) ([]*models.AgentAPIKey, error)

	// Validate resolves a presented key to its stored record using
	// constant-time comparison. Returns apperrors.ErrNotFound when no
	// enabled key matches.
	Validate(ctx context.Context, presentedKey string) (*models.AgentAPIKey, error)

	// SetEnabled enables or disables a key without deleting it.
	SetEnabled(ctx context.Context, keyID uuid.UUID, isEnabled bool) error

	// Delete removes a key permanently.
	Delete(ctx context.Context, keyID uuid.UUID) error
}

type agentKeyService struct {
	repo      repositories.AgentKeyRepository
	encryptor *crypto.CredentialEncryptor
	logger    *zap.Logger
}

// NewAgentKeyService creates an agent key service. credentialsKey is the
// base64 ENGINE_CREDENTIALS_KEY; construction fails when it is absent so a
// misconfigured engine cannot mint keys it will never validate.
func NewAgentKeyService(
	repo repositories.AgentKeyRepository,
	credentialsKey string,
	logger *zap.Logger,
) (AgentKeyService, error) {
	if credentialsKey == "" {
		return nil, fmt.Errorf("ENGINE_CREDENTIALS_KEY not set")
	}

	encryptor, err := crypto.NewCredentialEncryptor(credentialsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &agentKeyService{
		repo:      repo,
		encryptor: encryptor,
		logger:    logger,
	}, nil
}

// Create generates a new random key: "nsk_" followed by 64 hex characters.
func (s *agentKeyService) Create(ctx context.Context, name string, role string) (*models.AgentAPIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", fmt.Errorf("key name is required")
	}
	if !auth.Role(role).Valid() {
		return nil, "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, role)
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate random key: %w", err)
	}
	plainKey := agentKeyPrefix + hex.EncodeToString(keyBytes)

	encrypted, err := s.encryptor.Encrypt(plainKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt key: %w", err)
	}

	key := &models.AgentAPIKey{
		Name:         strings.TrimSpace(name),
		KeyPrefix:    plainKey[:agentKeyDisplayLen],
		KeyEncrypted: encrypted,
		Role:         role,
		IsEnabled:    true,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store key: %w", err)
	}

	s.logger.Info("Created agent API key",
		zap.String("key_id", key.ID.String()),
		zap.String("name", key.Name),
		zap.String("role", key.Role),
	)

	return key, plainKey, nil
}

// List returns all keys, newest first.
func (s *agentKeyService) List(ctx context.Context) ([]*models.AgentAPIKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Validate resolves a presented key using constant-time comparison.
// Candidates are narrowed by display prefix first; prefixes are not unique,
// so every candidate is checked.
func (s *agentKeyService) Validate(ctx context.Context, presentedKey string) (*models.AgentAPIKey, error) {
	if len(presentedKey) < agentKeyDisplayLen || !strings.HasPrefix(presentedKey, agentKeyPrefix) {
		return nil, apperrors.ErrNotFound
	}

	candidates, err := s.repo.GetByPrefix(ctx, presentedKey[:agentKeyDisplayLen])
	if err != nil {
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}

	for _, candidate := range candidates {
		if !candidate.IsEnabled {
			continue
		}
		storedKey, err := s.encryptor.Decrypt(candidate.KeyEncrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored key %s: %w", candidate.ID, err)
		}
		if subtle.ConstantTimeCompare([]byte(storedKey), []byte(presentedKey)) == 1 {
			if err := s.repo.TouchLastUsed(ctx, candidate.ID); err != nil {
				s.logger.Warn("Failed to update key last_used_at",
					zap.String("key_id", candidate.ID.String()),
					zap.Error(err),
				)
			}
			return candidate, nil
		}
	}

	return nil, apperrors.ErrNotFound
}

// SetEnabled enables or disables a key.
func (s *agentKeyService) SetEnabled(ctx context.Context, keyID uuid.UUID, isEnabled bool) error {
	if err := s.repo.SetEnabled(ctx, keyID, isEnabled); err != nil {
		return err
	}
	s.logger.Info("Updated agent API key enabled status",
		zap.String("key_id", keyID.String()),
		zap.Bool("is_enabled", isEnabled),
	)
	return nil
}

// Delete removes a key permanently.
func (s *agentKeyService) Delete(ctx context.Context, keyID uuid.UUID) error {
	if err := s.repo.Delete(ctx, keyID); err != nil {
		return err
	}
	s.logger.Info("Deleted agent API key", zap.String("key_id", keyID.String()))
	return nil
}

// Ensure agentKeyService implements AgentKeyService at compile time.
var _ AgentKeyService = (*agentKeyService)(nil)
