package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

var tracer = otel.Tracer("leadcrm.internal.availability")

// DefaultResource is the calendar used when a workspace books a single resource.
const DefaultResource = "default"

// ConfigSource loads a workspace's scheduling config.
type ConfigSource interface {
	Get(ctx context.Context, workspaceID string) (*scheduling.Config, error)
}

// BusySource lists scheduled appointment intervals that intersect [from, to).
type BusySource interface {
	ListBusy(ctx context.Context, workspaceID, resource string, from, to time.Time) ([]Busy, error)
}

// Service combines config, existing appointments and the engine.
type Service struct {
	configs  ConfigSource
	busy     BusySource
	cache    Cache
	cacheTTL time.Duration
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithCache lets Slots serve from cache for ttl. FreshSlots and Check never do.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(configs ConfigSource, busy BusySource, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{configs: configs, busy: busy, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the clock every availability decision uses.
func (s *Service) Now() time.Time {
	return s.now()
}

// Config returns the workspace's scheduling config.
func (s *Service) Config(ctx context.Context, workspaceID string) (*scheduling.Config, error) {
	cfg, err := s.configs.Get(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("availability: load config: %w", err)
	}
	return cfg, nil
}

// DefaultWindow covers the next seven days starting at the current instant.
func (s *Service) DefaultWindow() Window {
	now := s.now()
	return Window{From: now, To: now.Add(7 * 24 * time.Hour)}
}

// BookingWindow spans every instant cfg allows a booking in, so slots past
// a long minimum notice are still found.
func (s *Service) BookingWindow(cfg *scheduling.Config) Window {
	if cfg == nil || cfg.MaxDaysAhead < 1 {
		return s.DefaultWindow()
	}
	now := s.now()
	return Window{From: now, To: now.Add(cfg.Horizon())}
}

// Slots returns bookable slots, possibly from cache. Use it for display only.
func (s *Service) Slots(ctx context.Context, workspaceID string, window Window) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "availability.slots")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.workspace_id", workspaceID))

	started := time.Now()
	cfg, err := s.Config(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	now := s.now()
	if s.cache == nil {
		return s.compute(ctx, cfg, workspaceID, window, now, started)
	}

	key := cacheKey(cfg, window, now)
	cached, ok, err := s.cache.Get(ctx, workspaceID, key)
	if err != nil {
		s.logger.Warn("slot cache read failed", "workspace_id", workspaceID, "error", err)
	}
	s.metrics.ObserveSlotCache(ok)
	if ok {
		s.metrics.ObserveSlotComputation("cache", time.Since(started).Seconds())
		return cached, nil
	}

	slots, err := s.compute(ctx, cfg, workspaceID, window, now, started)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.cache.Set(ctx, workspaceID, key, slots, s.cacheTTL); err != nil {
		s.logger.Warn("slot cache write failed", "workspace_id", workspaceID, "error", err)
	}
	return slots, nil
}

// FreshSlots always recomputes from current appointments.
func (s *Service) FreshSlots(ctx context.Context, workspaceID string, window Window) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "availability.fresh_slots")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.workspace_id", workspaceID))

	started := time.Now()
	cfg, err := s.Config(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	slots, err := s.compute(ctx, cfg, workspaceID, window, s.now(), started)
	if err != nil {
		span.RecordError(err)
	}
	return slots, err
}

// Check validates one proposed slot against fresh data.
func (s *Service) Check(ctx context.Context, workspaceID string, slot Slot) (Rejection, error) {
	ctx, span := tracer.Start(ctx, "availability.check")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.workspace_id", workspaceID))

	cfg, err := s.Config(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return RejectionNone, err
	}
	busy, err := s.loadBusy(ctx, cfg, workspaceID, Window{From: slot.Start, To: slot.End})
	if err != nil {
		span.RecordError(err)
		return RejectionNone, err
	}
	return CheckSlot(cfg, slot, busy, s.now()), nil
}

// Invalidate drops cached slot lists for a workspace.
func (s *Service) Invalidate(ctx context.Context, workspaceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workspaceID); err != nil {
		s.logger.Warn("slot cache invalidation failed", "workspace_id", workspaceID, "error", err)
	}
}

func (s *Service) compute(ctx context.Context, cfg *scheduling.Config, workspaceID string, window Window, now, started time.Time) ([]Slot, error) {
	busy, err := s.loadBusy(ctx, cfg, workspaceID, window)
	if err != nil {
		return nil, err
	}
	slots := ComputeAvailableSlots(cfg, window, busy, now)
	s.metrics.ObserveSlotComputation("fresh", time.Since(started).Seconds())
	s.logger.Debug("computed slots", "workspace_id", workspaceID, "count", len(slots))
	return slots, nil
}

// loadBusy widens the query by the buffers so neighbours that reach into
// the window through their padding are seen.
func (s *Service) loadBusy(ctx context.Context, cfg *scheduling.Config, workspaceID string, window Window) ([]Busy, error) {
	if s.busy == nil {
		return nil, nil
	}
	from := window.From.Add(-cfg.BufferAfter())
	to := window.To.Add(cfg.BufferBefore())
	busy, err := s.busy.ListBusy(ctx, workspaceID, DefaultResource, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: load busy intervals: %w", err)
	}
	return busy, nil
}

func cacheKey(cfg *scheduling.Config, window Window, now time.Time) string {
	return fmt.Sprintf("%d:%d:%d:%d",
		cfg.UpdatedAt.UnixNano(), window.From.Unix(), window.To.Unix(), now.Truncate(time.Minute).Unix())
}
