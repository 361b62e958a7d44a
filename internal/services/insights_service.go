package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"spendwise/internal/analytics"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"golang.org/x/sync/singleflight"
)

var ErrUnknownProfile = errors.New("unknown insights profile")

// LatestInsights is a stored insights report with its provenance.
type LatestInsights struct {
	Profile     string          `json:"profile"`
	GeneratedAt time.Time       `json:"generated_at"`
	Report      json.RawMessage `json:"report"`
}

// InsightsService fronts the analytics pipeline with a per-user cache,
// request coalescing and the snapshot table.
type InsightsService struct {
	pipeline  *analytics.Pipeline
	snapshots storage.SnapshotStore
	cache     cache.Cache[analytics.Report]
	group     singleflight.Group
	profile   analytics.Profile
	logger    *log.Logger
	now       func() time.Time

	// generations counts invalidations per user; a run only caches its
	// report if no invalidation happened since it started.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewInsightsService wires the service. A nil cache disables caching.
func NewInsightsService(pipeline *analytics.Pipeline, snapshots storage.SnapshotStore, c cache.Cache[analytics.Report], profile analytics.Profile, logger *log.Logger) *InsightsService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InsightsService{
		pipeline:  pipeline,
		snapshots: snapshots,
		cache:     c,
		profile:   profile,
		logger:    logger.WithComponent(log.ComponentInsights),
		now:       time.Now,

		generations: make(map[string]uint64),
	}
}

func (s *InsightsService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

func cacheKey(userID, profile string) string {
	return "insights:" + userID + ":" + profile
}

func (s *InsightsService) Summary(ctx context.Context, userID string) (analytics.Summary, error) {
	return s.pipeline.Summary(ctx, userID)
}

// Profile resolves name to a built-in profile; empty means the default.
func (s *InsightsService) Profile(name string) (analytics.Profile, error) {
	if name == "" {
		return s.profile, nil
	}
	p, ok := analytics.ProfileByName(name)
	if !ok {
		return analytics.Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Insights returns the report for the user. Concurrent calls for the same
// user and profile share one pipeline run.
func (s *InsightsService) Insights(ctx context.Context, userID, profileName string) (analytics.Report, error) {
	profile, err := s.Profile(profileName)
	if err != nil {
		return analytics.Report{}, err
	}

	key := cacheKey(userID, profile.Name)
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			return r, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		gen := s.generation(userID)
		// One caller going away must not fail the others.
		r, err := s.pipeline.Insights(context.WithoutCancel(ctx), userID, profile)
		if err != nil {
			return analytics.Report{}, err
		}
		if s.cache != nil {
			s.genMu.Lock()
			if s.generations[userID] == gen {
				s.cache.Set(key, r)
			}
			s.genMu.Unlock()
		}
		return r, nil
	})
	if err != nil {
		return analytics.Report{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Insights request coalesced", log.FieldUserID, userID, log.FieldProfile, profile.Name)
	}
	return v.(analytics.Report), nil
}

// Invalidate drops every cached report of the user. Runs already in flight
// still answer their callers but no longer populate the cache, and later
// requests start a fresh run.
func (s *InsightsService) Invalidate(userID string) {
	s.genMu.Lock()
	s.generations[userID]++
	s.genMu.Unlock()

	for _, p := range []analytics.Profile{analytics.FullProfile, analytics.BriefProfile} {
		s.group.Forget(cacheKey(userID, p.Name))
	}
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(cacheKey(userID, "")); n > 0 {
		s.logger.Debug("Insights cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

// Refresh recomputes and stores the default-profile snapshot for the user,
// then clears the stale marks that existed before the run started.
func (s *InsightsService) Refresh(ctx context.Context, userID string) error {
	started := s.now()

	report, err := s.pipeline.Insights(ctx, userID, s.profile)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.snapshots.SaveSnapshot(ctx, core.InsightSnapshot{
		UserID:      userID,
		Profile:     s.profile.Name,
		Payload:     payload,
		GeneratedAt: s.now(),
	}); err != nil {
		return err
	}
	if err := s.snapshots.ClearStale(ctx, userID, started); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Insights snapshot refreshed",
		log.FieldUserID, userID,
		log.FieldProfile, s.profile.Name,
		"insights", len(report.Insights))
	return nil
}

// Latest returns the most recent stored snapshot of any profile.
func (s *InsightsService) Latest(ctx context.Context, userID string) (LatestInsights, error) {
	snap, err := s.snapshots.LatestSnapshot(ctx, userID, "")
	if err != nil {
		return LatestInsights{}, err
	}
	return LatestInsights{
		Profile:     snap.Profile,
		GeneratedAt: snap.GeneratedAt,
		Report:      json.RawMessage(snap.Payload),
	}, nil
}
