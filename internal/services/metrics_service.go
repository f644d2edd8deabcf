package services

import (
	"context"
	"fmt"
	"math/big"

	"griefing/internal/metrics"
	"griefing/internal/models"
	"griefing/internal/token"
)

// MetricsService feeds the prometheus collectors from the event stream
type MetricsService struct{}

// NewMetricsService creates a new MetricsService instance
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Process records the event's counters
func (s *MetricsService) Process(ctx context.Context, ev *models.Event) error {
	metrics.EventsProcessed.WithLabelValues(string(ev.EventType)).Inc()

	switch ev.EventType {
	case models.EventStakeAdded:
		return addTokens(metrics.StakeAdded.Add, ev, "amount")
	case models.EventStakeTaken:
		return addTokens(metrics.StakeRetrieved.Add, ev, "amount")
	case models.EventGriefed:
		if err := addTokens(metrics.PunishmentBurned.Add, ev, "punishment"); err != nil {
			return err
		}
		return addTokens(metrics.GriefCostBurned.Add, ev, "cost")
	case models.EventDeadlineSet:
		metrics.CountdownsStarted.Inc()
	case models.EventFactoryAuthorized:
		metrics.AuthorizedFactories.Inc()
	case models.EventFactoryRetired:
		metrics.AuthorizedFactories.Dec()
	case models.EventInstanceCreated:
		factory, _ := ev.Data["factory"].(string)
		metrics.InstancesCreated.WithLabelValues(factory).Inc()
	}
	return nil
}

// Name returns the service name
func (s *MetricsService) Name() string {
	return "MetricsService"
}

// addTokens adds the base-unit amount under key, converted to whole tokens
func addTokens(add func(float64), ev *models.Event, key string) error {
	raw, _ := ev.Data[key].(string)
	units, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("%s event %s: bad %s %q", ev.EventType, ev.EventID, key, raw)
	}
	add(tokens(units))
	return nil
}

func tokens(units *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(units), new(big.Float).SetInt(token.Units(1))).Float64()
	return f
}
