package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const routingMetricsCacheKey = "triage:metrics:routing"

// AnalyticsService serves routing metrics, cached briefly in Redis.
type AnalyticsService struct {
	tickets repository.TicketRepository
	cache   redis.UniversalClient
	ttl     time.Duration
	logger  *zap.Logger
}

// AnalyticsDependencies bundles collaborators for the analytics service.
type AnalyticsDependencies struct {
	TicketRepo repository.TicketRepository
	// Cache may be nil; metrics are then computed on every call.
	Cache    redis.UniversalClient
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{tickets: deps.TicketRepo, cache: deps.Cache, ttl: deps.CacheTTL, logger: logger}
}

// RoutingMetrics aggregates assigned tickets. Cache failures fall through
// to a fresh computation.
func (s *AnalyticsService) RoutingMetrics(ctx context.Context) (triage.RoutingMetrics, error) {
	if cached, ok := s.cached(ctx); ok {
		return cached, nil
	}

	tickets, err := s.tickets.ListAssigned(ctx)
	if err != nil {
		return triage.RoutingMetrics{}, apperrors.MapError(err)
	}
	metrics := triage.ComputeRoutingMetrics(tickets)
	s.store(ctx, metrics)
	return metrics, nil
}

func (s *AnalyticsService) cached(ctx context.Context) (triage.RoutingMetrics, bool) {
	var metrics triage.RoutingMetrics
	if s.cache == nil || s.ttl <= 0 {
		return metrics, false
	}
	raw, err := s.cache.Get(ctx, routingMetricsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("routing metrics cache read failed", zap.Error(err))
		}
		return metrics, false
	}
	if err := json.Unmarshal(raw, &metrics); err != nil {
		s.logger.Warn("routing metrics cache entry unreadable", zap.Error(err))
		return metrics, false
	}
	return metrics, true
}

func (s *AnalyticsService) store(ctx context.Context, metrics triage.RoutingMetrics) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, routingMetricsCacheKey, raw, s.ttl).Err(); err != nil {
		s.logger.Debug("routing metrics cache write failed", zap.Error(err))
	}
}
