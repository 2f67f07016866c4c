package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
)

// fleetSummaryTTL bounds how stale a cached fleet summary may be.
const fleetSummaryTTL = 30 * time.Second

// TelemetryService serves fleet state: dimensions, latest per-AP telemetry,
// and per-network health rollups.
type TelemetryService interface {
	ListNetworks(ctx context.Context) ([]*models.Network, error)
	GetNetwork(ctx context.Context, networkID uuid.UUID) (*models.Network, error)
	ListAccessPoints(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error)

	// FleetSummary returns the latest observed state per access point,
	// optionally filtered to one network. Summaries are cached briefly per
	// caller role; row-level security means different roles see different
	// fleets.
	FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error)

	NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error)
	NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error)
}

type telemetryService struct {
	networks  repositories.NetworkRepository
	aps       repositories.AccessPointRepository
	telemetry repositories.TelemetryRepository
	cache     *redis.Client // nil disables caching
	logger    *zap.Logger
}

// NewTelemetryService creates a telemetry service. cache may be nil.
func NewTelemetryService(
	networks repositories.NetworkRepository,
	aps repositories.AccessPointRepository,
	telemetry repositories.TelemetryRepository,
	cache *redis.Client,
	logger *zap.Logger,
) TelemetryService {
	return &telemetryService{
		networks:  networks,
		aps:       aps,
		telemetry: telemetry,
		cache:     cache,
		logger:    logger,
	}
}

// ListNetworks returns all networks.
func (s *telemetryService) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	return s.networks.List(ctx)
}

// GetNetwork returns one network.
func (s *telemetryService) GetNetwork(ctx context.Context, networkID uuid.UUID) (*models.Network, error) {
	return s.networks.GetByID(ctx, networkID)
}

// ListAccessPoints returns a network's access points. The network must exist.
func (s *telemetryService) ListAccessPoints(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error) {
	if _, err := s.networks.GetByID(ctx, networkID); err != nil {
		return nil, err
	}
	return s.aps.ListByNetwork(ctx, networkID)
}

// FleetSummary returns the latest observed state per access point.
func (s *telemetryService) FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error) {
	key := s.summaryCacheKey(ctx, networkID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			var summaries []*models.APTelemetrySummary
			if err := json.Unmarshal([]byte(cached), &summaries); err == nil {
				return summaries, nil
			}
			// Unreadable cache entry; fall through to the database.
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("Fleet summary cache read failed", zap.Error(err))
		}
	}

	summaries, err := s.telemetry.FleetSummary(ctx, networkID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summaries); err == nil {
			if err := s.cache.Set(ctx, key, payload, fleetSummaryTTL).Err(); err != nil {
				s.logger.Warn("Fleet summary cache write failed", zap.Error(err))
			}
		}
	}

	return summaries, nil
}

// NetworkHealth returns per-network rollups over the trailing day.
func (s *telemetryService) NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error) {
	return s.telemetry.NetworkHealth(ctx)
}

// NetworkHealthByID returns one network's rollup.
func (s *telemetryService) NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error) {
	return s.telemetry.NetworkHealthByID(ctx, networkID)
}

// summaryCacheKey scopes cache entries by caller role and network filter.
// Row-level security filters what each role sees, so entries are never
// shared across roles.
func (s *telemetryService) summaryCacheKey(ctx context.Context, networkID *uuid.UUID) string {
	scope := "all"
	if networkID != nil {
		scope = networkID.String()
	}
	return fmt.Sprintf("netsight:fleet_summary:%s:%s", auth.GetRoleFromContext(ctx), scope)
}

// Ensure telemetryService implements TelemetryService at compile time.
var _ TelemetryService = (*telemetryService)(nil)
