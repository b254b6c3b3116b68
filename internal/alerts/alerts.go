// Package alerts evaluates user-configured thresholds against the latest
// stored prices and hype scores. Firing is recorded and logged; delivering
// notifications is the job of an external collaborator.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/profiteer/profiteer/internal/domain"
)

// Service checks active alerts against current data.
type Service struct {
	alerts    domain.AlertStore
	history   domain.ObservationStore
	snapshots domain.SnapshotStore
	log       zerolog.Logger
}

// New creates the alert evaluation service.
func New(alerts domain.AlertStore, history domain.ObservationStore, snapshots domain.SnapshotStore, log zerolog.Logger) *Service {
	return &Service{
		alerts:    alerts,
		history:   history,
		snapshots: snapshots,
		log:       log.With().Str("component", "alerts").Logger(),
	}
}

// Evaluate checks every active alert and marks the ones whose threshold is
// met. It returns the alerts that fired. A failure on one alert is logged
// and does not stop the sweep.
func (s *Service) Evaluate(ctx context.Context) ([]domain.Alert, error) {
	active, err := s.alerts.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}

	var fired []domain.Alert
	for _, alert := range active {
		hit, err := s.check(ctx, alert)
		if err != nil {
			s.log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("Alert check failed")
			continue
		}
		if !hit {
			continue
		}

		now := time.Now().UTC()
		if err := s.alerts.MarkTriggered(ctx, alert.ID, now); err != nil {
			s.log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("Failed to mark alert triggered")
			continue
		}
		alert.LastTriggered = &now
		fired = append(fired, alert)

		s.log.Info().
			Int64("alert_id", alert.ID).
			Int64("item_id", alert.ItemID).
			Str("type", alert.Type).
			Float64("threshold", alert.Threshold).
			Msg("Alert fired")
	}
	return fired, nil
}

func (s *Service) check(ctx context.Context, alert domain.Alert) (bool, error) {
	switch alert.Type {
	case domain.AlertPriceDrop, domain.AlertPriceRise:
		latest, err := s.history.LatestPrice(ctx, alert.ItemID)
		if err != nil {
			return false, err
		}
		if latest == nil {
			return false, nil
		}
		if alert.Type == domain.AlertPriceDrop {
			return latest.Price <= alert.Threshold, nil
		}
		return latest.Price >= alert.Threshold, nil

	case domain.AlertHypeThreshold:
		snap, err := s.snapshots.LatestForItem(ctx, alert.ItemID)
		if err != nil {
			return false, err
		}
		if snap == nil {
			return false, nil
		}
		return float64(snap.Score) >= alert.Threshold, nil

	default:
		return false, fmt.Errorf("unknown alert type %q", alert.Type)
	}
}
