// Package alerting implements the alert escalation state machine: per-rule
// active alerts that progress preventive → warning → critical → urgent while
// a breach persists, with cooldown suppression, improvement detection, and
// automatic resolution when readings return to the safe zone.
package alerting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// DefaultHistoryMax caps the resolved-alert history (FIFO eviction).
const DefaultHistoryMax = 100

// Policy is the tunable escalation configuration: one entry per level, in
// order, plus the resolution history cap.
type Policy struct {
	Levels     []models.LevelPolicy
	HistoryMax int
}

// DefaultPolicy returns the reference escalation table: four levels, five
// minutes between escalations, priorities 3–5.
func DefaultPolicy() Policy {
	return Policy{
		Levels: []models.LevelPolicy{
			{Name: "PREVENTIVE", WaitMinutes: 5, Priority: 3, Severity: "preventive", Channels: []string{"dashboard"}},
			{Name: "WARNING", WaitMinutes: 5, Priority: 4, Severity: "warning", Channels: []string{"dashboard", "push"}},
			{Name: "CRITICAL", WaitMinutes: 5, Priority: 5, Severity: "critical", Channels: []string{"dashboard", "push", "sms"}},
			{Name: "URGENT", WaitMinutes: 5, Priority: 5, Severity: "urgent", Channels: []string{"dashboard", "push", "sms", "call"}},
		},
		HistoryMax: DefaultHistoryMax,
	}
}

// Request is one evaluation of a currently-breached rule.
type Request struct {
	RuleID    string
	DeviceID  string
	Sensor    string
	Value     float64
	Threshold float64
	Condition models.AlertCondition
	Message   string
	// BypassCooldown forces a send regardless of the anti-spam window. The
	// rule evaluator sets it for resolved-state transition notices.
	BypassCooldown bool
}

// Manager tracks active alerts keyed by rule id — at most one per rule id,
// which makes the rule id the alerting system's de-duplication key. All
// state lives in memory for the process lifetime; build one Manager at the
// composition root and inject it.
type Manager struct {
	mu      sync.Mutex
	active  map[string]*models.ActiveAlert
	history []models.ResolutionRecord
	policy  Policy
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a manager with the given policy. A zero-level policy
// falls back to the default table.
func NewManager(policy Policy, logger *slog.Logger) *Manager {
	if len(policy.Levels) == 0 {
		policy = DefaultPolicy()
	}
	if policy.HistoryMax <= 0 {
		policy.HistoryMax = DefaultHistoryMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		active: make(map[string]*models.ActiveAlert),
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// ShouldSend decides whether a breached rule warrants a notification right
// now, and at what severity. Returns nil when the evaluation is suppressed
// (cooldown still running, or the value is improving). The decision logic:
//
//  1. No active alert for the rule id: create one at level 0 and send —
//     the first alert is never suppressed.
//  2. Cooldown: inside the current level's wait window since the last send,
//     suppress (unless the request bypasses the cooldown).
//  3. Improving value: suppress without clearing — the grower gets credit
//     for progress without another alarm.
//  4. Otherwise escalate one level (URGENT repeats instead) and send.
func (m *Manager) ShouldSend(req Request) *models.AlertDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	alert, ok := m.active[req.RuleID]
	if !ok {
		alert = &models.ActiveAlert{
			RuleID:     req.RuleID,
			DeviceID:   req.DeviceID,
			Sensor:     req.Sensor,
			FirstValue: req.Value,
			LastValue:  req.Value,
			Threshold:  req.Threshold,
			Condition:  req.Condition,
			Level:      models.LevelPreventive,
			FirstSeen:  now,
			LastSent:   now,
		}
		m.active[req.RuleID] = alert
		m.logger.Info("alert opened",
			"rule_id", req.RuleID, "sensor", req.Sensor, "value", req.Value, "threshold", req.Threshold)
		return m.decisionLocked(alert, req, now, false)
	}

	sinceLastSent := now.Sub(alert.LastSent).Minutes()
	currentWait := m.policy.Levels[alert.Level].WaitMinutes

	if sinceLastSent < currentWait && !req.BypassCooldown {
		alert.LastValue = req.Value
		return nil
	}

	if isImproving(req.Value, alert.LastValue, alert.Condition) && !req.BypassCooldown {
		alert.LastValue = req.Value
		return nil
	}

	sinceFirst := now.Sub(alert.FirstSeen).Minutes()
	repeat := false
	if alert.Level < m.lastLevelLocked() && sinceFirst > m.cumulativeWaitLocked(alert.Level) {
		alert.Level++
	} else if alert.Level == m.lastLevelLocked() {
		repeat = true
	} else if !req.BypassCooldown {
		// Cooldown expired but the cumulative schedule has not been crossed
		// yet; hold the level and stay quiet.
		alert.LastValue = req.Value
		return nil
	}

	alert.LastValue = req.Value
	alert.LastSent = now
	return m.decisionLocked(alert, req, now, repeat)
}

// Clear removes the active alert for ruleID, appends a resolution record,
// and returns it. Unknown rule ids are an idempotent no-op returning nil.
func (m *Manager) Clear(ruleID string, finalValue float64, reason string) *models.ResolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ruleID, finalValue, reason)
}

// CheckResolved inspects the reporting device's active alerts against the
// supplied readings and auto-clears the ones whose sensor value has returned
// to the safe side of its threshold, returning the resolution records. This
// is what lets the system announce "problem resolved" without a human action.
// Alerts belonging to other devices are never touched — a healthy reading
// from one grow unit says nothing about its neighbors.
func (m *Manager) CheckResolved(deviceID string, readings map[string]float64) []models.ResolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resolved []models.ResolutionRecord
	for ruleID, alert := range m.active {
		if alert.DeviceID != deviceID {
			continue
		}
		value, ok := readings[alert.Sensor]
		if !ok {
			continue
		}
		safe := (alert.Condition == models.ConditionBelow && value >= alert.Threshold) ||
			(alert.Condition == models.ConditionAbove && value <= alert.Threshold)
		if !safe {
			continue
		}
		if rec := m.clearLocked(ruleID, value, models.ReasonBackToSafeZone); rec != nil {
			resolved = append(resolved, *rec)
		}
	}
	return resolved
}

// Active returns a copy of the active alerts.
func (m *Manager) Active() []models.ActiveAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ActiveAlert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, *a)
	}
	return out
}

// Lookup returns a copy of the active alert for ruleID, if any.
func (m *Manager) Lookup(ruleID string) (models.ActiveAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.active[ruleID]
	if !ok {
		return models.ActiveAlert{}, false
	}
	return *a, true
}

// ActiveCount returns the number of unresolved alerts.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// History returns a copy of the bounded resolution history, oldest first.
func (m *Manager) History() []models.ResolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ResolutionRecord, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) clearLocked(ruleID string, finalValue float64, reason string) *models.ResolutionRecord {
	alert, ok := m.active[ruleID]
	if !ok {
		return nil
	}
	delete(m.active, ruleID)

	now := m.now()
	rec := models.ResolutionRecord{
		ID:            uuid.New().String(),
		RuleID:        ruleID,
		Sensor:        alert.Sensor,
		OriginalValue: alert.FirstValue,
		FinalValue:    finalValue,
		FirstSeen:     alert.FirstSeen,
		ResolvedAt:    now,
		Duration:      now.Sub(alert.FirstSeen),
		Reason:        reason,
	}

	m.history = append(m.history, rec)
	if len(m.history) > m.policy.HistoryMax {
		m.history = m.history[len(m.history)-m.policy.HistoryMax:]
	}

	m.logger.Info("alert resolved",
		"rule_id", ruleID, "sensor", alert.Sensor, "reason", reason,
		"duration_min", rec.Duration.Minutes())
	return &rec
}

func (m *Manager) decisionLocked(alert *models.ActiveAlert, req Request, now time.Time, repeat bool) *models.AlertDecision {
	level := m.policy.Levels[alert.Level]
	sentCount := alert.SentCount
	alert.SentCount++

	worsening := isWorsening(req.Value, alert.FirstValue, alert.Condition)

	return &models.AlertDecision{
		RuleID:      req.RuleID,
		Sensor:      req.Sensor,
		Value:       req.Value,
		Threshold:   req.Threshold,
		Condition:   req.Condition,
		Level:       alert.Level,
		LevelName:   level.Name,
		Priority:    level.Priority,
		Severity:    level.Severity,
		Channels:    level.Channels,
		Message:     req.Message,
		SentCount:   sentCount,
		IsWorsening: worsening,
		Escalation: &models.EscalationInfo{
			Level:             int(alert.Level),
			LevelName:         level.Name,
			MinutesSinceFirst: now.Sub(alert.FirstSeen).Minutes(),
			Repeat:            repeat,
			BypassCooldown:    req.BypassCooldown,
		},
	}
}

// cumulativeWaitLocked is the total minutes since creation that must elapse
// before the given level may escalate to the next one: the sum of wait
// times for all levels up to and including it.
func (m *Manager) cumulativeWaitLocked(level models.EscalationLevel) float64 {
	var total float64
	for i := models.EscalationLevel(0); i <= level && int(i) < len(m.policy.Levels); i++ {
		total += m.policy.Levels[i].WaitMinutes
	}
	return total
}

func (m *Manager) lastLevelLocked() models.EscalationLevel {
	return models.EscalationLevel(len(m.policy.Levels) - 1)
}

// isImproving: the value is moving away from the danger zone relative to the
// last recorded value — increasing for a below-threshold breach, decreasing
// for an above-threshold breach.
func isImproving(current, last float64, cond models.AlertCondition) bool {
	if cond == models.ConditionBelow {
		return current > last
	}
	return current < last
}

// isWorsening: the value is further past the threshold than when the alert
// first opened.
func isWorsening(current, first float64, cond models.AlertCondition) bool {
	if cond == models.ConditionBelow {
		return current < first
	}
	return current > first
}
