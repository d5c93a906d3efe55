package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydrowatch/hydrowatch-backend/internal/alerting"
	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/metrics"
	"github.com/hydrowatch/hydrowatch-backend/internal/repository"
)

// Notifier receives alert decisions and resolution notices for channel
// fan-out. The WebSocket hub implements it; tests substitute a recorder.
type Notifier interface {
	NotifyAlert(decision *models.AlertDecision)
	NotifyResolution(rec *models.ResolutionRecord)
}

// RuleService evaluates threshold rules against each incoming reading and
// drives the escalation manager. Rules are global; escalation state is
// scoped per device by composing the rule key as "<rule id>:<device id>".
type RuleService struct {
	rules    []models.AlertRule
	manager  *alerting.Manager
	notifier Notifier
	history  repository.AlertHistoryRepository // optional; nil disables persistence
	logger   *slog.Logger
}

// NewRuleService wires the rule evaluator.
func NewRuleService(
	rules []models.AlertRule,
	manager *alerting.Manager,
	notifier Notifier,
	history repository.AlertHistoryRepository,
	logger *slog.Logger,
) *RuleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleService{
		rules:    rules,
		manager:  manager,
		notifier: notifier,
		history:  history,
		logger:   logger,
	}
}

// DefaultRules is the baseline greenhouse rule set used when the config file
// carries none.
func DefaultRules() []models.AlertRule {
	return []models.AlertRule{
		{ID: "temp-low", Sensor: models.FieldTemperature, Condition: models.ConditionBelow, Threshold: 15.0, Message: "air temperature below safe minimum"},
		{ID: "temp-high", Sensor: models.FieldTemperature, Condition: models.ConditionAbove, Threshold: 32.0, Message: "air temperature above safe maximum"},
		{ID: "humidity-low", Sensor: models.FieldHumidity, Condition: models.ConditionBelow, Threshold: 35.0, Message: "relative humidity below safe minimum"},
		{ID: "humidity-high", Sensor: models.FieldHumidity, Condition: models.ConditionAbove, Threshold: 85.0, Message: "relative humidity above safe maximum"},
		{ID: "water-low", Sensor: models.FieldWaterLevel, Condition: models.ConditionBelow, Threshold: 20.0, Message: "reservoir water level low"},
	}
}

// Evaluate runs one reading through resolution checks and the rule set.
// Resolution notices are forwarded before new breaches so a sensor swinging
// back into range announces recovery first.
func (s *RuleService) Evaluate(ctx context.Context, deviceID string, fields map[string]float64) []*models.AlertDecision {
	for _, rec := range s.manager.CheckResolved(deviceID, fields) {
		s.handleResolution(ctx, rec)
	}

	var decisions []*models.AlertDecision
	for _, rule := range s.rules {
		value, ok := fields[rule.Sensor]
		if !ok {
			continue
		}
		breached := (rule.Condition == models.ConditionAbove && value > rule.Threshold) ||
			(rule.Condition == models.ConditionBelow && value < rule.Threshold)
		if !breached {
			continue
		}

		decision := s.manager.ShouldSend(alerting.Request{
			RuleID:    ruleKey(rule.ID, deviceID),
			DeviceID:  deviceID,
			Sensor:    rule.Sensor,
			Value:     value,
			Threshold: rule.Threshold,
			Condition: rule.Condition,
			Message:   fmt.Sprintf("%s: %s (%.2f, threshold %.2f)", deviceID, rule.Message, value, rule.Threshold),
		})
		if decision == nil {
			continue
		}

		metrics.AlertsSentTotal.WithLabelValues(decision.Severity).Inc()
		if s.notifier != nil {
			s.notifier.NotifyAlert(decision)
		}
		decisions = append(decisions, decision)
	}

	metrics.AlertsActive.Set(float64(s.manager.ActiveCount()))
	return decisions
}

// ClearAlert clears one alert by rule id and device, e.g. from a manual
// dashboard acknowledgement. No-op returning nil when no such alert exists.
func (s *RuleService) ClearAlert(ctx context.Context, ruleID, deviceID string, finalValue float64) *models.ResolutionRecord {
	rec := s.manager.Clear(ruleKey(ruleID, deviceID), finalValue, models.ReasonManualClear)
	if rec != nil {
		s.handleResolution(ctx, *rec)
		metrics.AlertsActive.Set(float64(s.manager.ActiveCount()))
	}
	return rec
}

// ActiveAlerts returns the current unresolved alerts.
func (s *RuleService) ActiveAlerts() []models.ActiveAlert {
	return s.manager.Active()
}

// ResolutionHistory returns the in-memory bounded resolution history.
func (s *RuleService) ResolutionHistory() []models.ResolutionRecord {
	return s.manager.History()
}

func (s *RuleService) handleResolution(ctx context.Context, rec models.ResolutionRecord) {
	metrics.AlertsResolvedTotal.WithLabelValues(rec.Reason).Inc()

	if s.history != nil {
		if err := s.history.SaveResolution(ctx, &rec); err != nil {
			s.logger.Warn("failed to persist resolution record", "rule_id", rec.RuleID, "err", err)
		}
	}
	// Resolution notices always go out immediately; they are not subject to
	// the escalation cooldown.
	if s.notifier != nil {
		s.notifier.NotifyResolution(&rec)
	}
}

func ruleKey(ruleID, deviceID string) string {
	return ruleID + ":" + deviceID
}
