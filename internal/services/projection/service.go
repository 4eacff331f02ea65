// Package projection estimates when the token limit will be exhausted from
// the samples recorded inside the current window.
package projection

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

const (
	lookback         = time.Hour
	lowConfThreshold = 6
	medConfThreshold = 24
	criticalHorizon  = time.Hour
)

// SampleStore is the subset of the database the service reads.
type SampleStore interface {
	SamplesSince(ctx context.Context, since time.Time) ([]models.UsageSample, error)
}

// Service computes burn-rate projections and caches the latest one.
type Service struct {
	mu    sync.RWMutex
	store SampleStore
	last  *models.Projection
}

// New creates a projection service reading from store.
func New(store SampleStore) *Service {
	return &Service{store: store}
}

// Calculate projects exhaustion for snap using the samples of the last hour.
func (s *Service) Calculate(ctx context.Context, snap models.UsageSnapshot, now time.Time) (*models.Projection, error) {
	since := now.Add(-lookback)
	if snap.WindowHours > 0 && !snap.WindowStart.IsZero() && snap.WindowStart.After(since) {
		since = snap.WindowStart
	}

	samples, err := s.store.SamplesSince(ctx, since)
	if err != nil {
		logger.Error("failed to load usage samples", "error", err)
		samples = nil
	}

	proj := Project(snap, samples, now)

	s.mu.Lock()
	s.last = proj
	s.mu.Unlock()

	return proj, err
}

// Last returns the most recent projection, or nil.
func (s *Service) Last() *models.Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Project derives a projection from samples ordered oldest first.
func Project(snap models.UsageSnapshot, samples []models.UsageSample, now time.Time) *models.Projection {
	proj := &models.Projection{
		ResetAt:    snap.ResetAt,
		DataPoints: len(samples),
		Status:     models.ProjectionUnknown,
		Confidence: confidence(len(samples)),
	}

	proj.TokensPerMinute = BurnRate(samples)

	if snap.TokenLimit > 0 && snap.RemainingTokens == 0 {
		proj.ExhaustsAt = now
		proj.BeforeReset = true
		proj.Status = models.ProjectionCritical
		return proj
	}
	if !proj.KnownRate() {
		return proj
	}

	minutes := float64(snap.RemainingTokens) / proj.TokensPerMinute
	if math.IsInf(minutes, 0) || minutes > float64(math.MaxInt64/int64(time.Minute)) {
		return proj
	}
	proj.TimeToExhaust = time.Duration(minutes * float64(time.Minute))
	proj.ExhaustsAt = now.Add(proj.TimeToExhaust)

	if !snap.HasReset() {
		return proj
	}
	proj.BeforeReset = proj.ExhaustsAt.Before(snap.ResetAt)

	switch {
	case !proj.BeforeReset:
		proj.Status = models.ProjectionSafe
	case proj.TimeToExhaust < criticalHorizon:
		proj.Status = models.ProjectionCritical
	default:
		proj.Status = models.ProjectionWarning
	}
	return proj
}

// BurnRate returns tokens per minute over the span of samples. Decreases
// between samples (records ageing out or a plan switch) are ignored, so
// only growth counts as consumption.
func BurnRate(samples []models.UsageSample) float64 {
	if len(samples) < 2 {
		return 0
	}

	var consumed uint64
	for i := 1; i < len(samples); i++ {
		if samples[i].TotalTokens > samples[i-1].TotalTokens {
			consumed += samples[i].TotalTokens - samples[i-1].TotalTokens
		}
	}

	span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	if span <= 0 {
		return 0
	}
	return float64(consumed) / span.Minutes()
}

func confidence(dataPoints int) string {
	switch {
	case dataPoints < lowConfThreshold:
		return "low"
	case dataPoints < medConfThreshold:
		return "medium"
	default:
		return "high"
	}
}
