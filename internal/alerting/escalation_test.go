package alerting

import (
	"fmt"
	"testing"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(policy Policy) (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	m := NewManager(policy, nil)
	m.now = clock.Now
	return m, clock
}

func breachBelow(value float64) Request {
	return Request{
		RuleID:    "temp-low:grow-1",
		DeviceID:  "grow-1",
		Sensor:    models.FieldTemperature,
		Value:     value,
		Threshold: 15.0,
		Condition: models.ConditionBelow,
		Message:   "air temperature below safe minimum",
	}
}

func TestShouldSend_FirstAlertAlwaysSends(t *testing.T) {
	m, _ := newTestManager(Policy{})

	decision := m.ShouldSend(breachBelow(14.9)) // barely breached
	require.NotNil(t, decision)
	assert.Equal(t, models.LevelPreventive, decision.Level)
	assert.Equal(t, "PREVENTIVE", decision.LevelName)
	assert.Equal(t, 3, decision.Priority)
	assert.Equal(t, 0, decision.SentCount)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestShouldSend_CooldownSuppression(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))
	assert.Nil(t, m.ShouldSend(breachBelow(13)))
	assert.Equal(t, 1, m.ActiveCount())
}

func TestShouldSend_EscalationSequence(t *testing.T) {
	m, clock := newTestManager(Policy{})
	start := clock.t

	require.NotNil(t, m.ShouldSend(breachBelow(14)))

	steps := []struct {
		elapsed time.Duration
		value   float64
		level   models.EscalationLevel
		name    string
	}{
		{6 * time.Minute, 13.5, models.LevelWarning, "WARNING"},
		{11 * time.Minute, 13.0, models.LevelCritical, "CRITICAL"},
		{16 * time.Minute, 12.5, models.LevelUrgent, "URGENT"},
		{32 * time.Minute, 12.0, models.LevelUrgent, "URGENT"}, // terminal: repeats
	}

	for i, step := range steps {
		clock.t = start.Add(step.elapsed)
		decision := m.ShouldSend(breachBelow(step.value))
		require.NotNil(t, decision, "step %d", i)
		assert.Equal(t, step.level, decision.Level, "step %d", i)
		assert.Equal(t, step.name, decision.LevelName, "step %d", i)
		assert.True(t, decision.IsWorsening, "step %d", i)
	}

	// The last URGENT send is a repeat, not a further escalation.
	final, ok := m.Lookup("temp-low:grow-1")
	require.True(t, ok)
	assert.Equal(t, models.LevelUrgent, final.Level)
	assert.Equal(t, 5, final.SentCount)
}

func TestShouldSend_ImprovementSuppressesWithoutClearing(t *testing.T) {
	m, clock := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))
	clock.Advance(6 * time.Minute)

	// Temperature rising toward the threshold: still breached, but improving.
	assert.Nil(t, m.ShouldSend(breachBelow(14.5)))

	alert, ok := m.Lookup("temp-low:grow-1")
	require.True(t, ok, "improving alert must stay active")
	assert.Equal(t, models.LevelPreventive, alert.Level)
	assert.Equal(t, 14.5, alert.LastValue)
}

func TestShouldSend_BypassCooldown(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))

	req := breachBelow(13)
	req.BypassCooldown = true
	decision := m.ShouldSend(req)
	require.NotNil(t, decision)
	assert.True(t, decision.Escalation.BypassCooldown)
}

func TestCheckResolved_BackToSafeZone(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(16.5)))

	resolved := m.CheckResolved("grow-1", map[string]float64{models.FieldTemperature: 18.0})
	require.Len(t, resolved, 1)
	assert.Equal(t, models.ReasonBackToSafeZone, resolved[0].Reason)
	assert.Equal(t, 16.5, resolved[0].OriginalValue)
	assert.Equal(t, 18.0, resolved[0].FinalValue)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestCheckResolved_StillBreachedStaysActive(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))

	resolved := m.CheckResolved("grow-1", map[string]float64{models.FieldTemperature: 14.5})
	assert.Empty(t, resolved)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestCheckResolved_ScopedToReportingDevice(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))

	// A healthy reading from a different device must not clear grow-1's
	// still-breached alert.
	resolved := m.CheckResolved("grow-2", map[string]float64{models.FieldTemperature: 22.0})
	assert.Empty(t, resolved)
	assert.Equal(t, 1, m.ActiveCount())

	// The owning device recovering does.
	resolved = m.CheckResolved("grow-1", map[string]float64{models.FieldTemperature: 22.0})
	require.Len(t, resolved, 1)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestCheckResolved_AboveCondition(t *testing.T) {
	m, _ := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(Request{
		RuleID:    "temp-high:grow-1",
		DeviceID:  "grow-1",
		Sensor:    models.FieldTemperature,
		Value:     35,
		Threshold: 32,
		Condition: models.ConditionAbove,
	}))

	resolved := m.CheckResolved("grow-1", map[string]float64{models.FieldTemperature: 30})
	require.Len(t, resolved, 1)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestClear_UnknownRuleIsNoop(t *testing.T) {
	m, _ := newTestManager(Policy{})
	assert.Nil(t, m.Clear("nope", 0, models.ReasonManualClear))
}

func TestClear_ReturnsResolutionRecord(t *testing.T) {
	m, clock := newTestManager(Policy{})

	require.NotNil(t, m.ShouldSend(breachBelow(14)))
	clock.Advance(20 * time.Minute)

	rec := m.Clear("temp-low:grow-1", 17.0, models.ReasonManualClear)
	require.NotNil(t, rec)
	assert.Equal(t, 14.0, rec.OriginalValue)
	assert.Equal(t, 17.0, rec.FinalValue)
	assert.Equal(t, 20*time.Minute, rec.Duration)
	assert.Equal(t, 0, m.ActiveCount())

	// Clearing again is a no-op.
	assert.Nil(t, m.Clear("temp-low:grow-1", 17.0, models.ReasonManualClear))
}

func TestResolutionHistoryCap(t *testing.T) {
	m, _ := newTestManager(Policy{HistoryMax: 5})

	for i := 0; i < 10; i++ {
		ruleID := fmt.Sprintf("rule-%d", i)
		req := breachBelow(14)
		req.RuleID = ruleID
		require.NotNil(t, m.ShouldSend(req))
		require.NotNil(t, m.Clear(ruleID, 16, models.ReasonManualClear))
	}

	history := m.History()
	require.Len(t, history, 5)
	// Oldest-first eviction: only the last five resolutions remain.
	for i, rec := range history {
		assert.Equal(t, fmt.Sprintf("rule-%d", i+5), rec.RuleID)
	}
}

func TestIndependentRules(t *testing.T) {
	m, clock := newTestManager(Policy{})

	tempReq := breachBelow(14)
	humReq := Request{
		RuleID:    "humidity-high:grow-1",
		DeviceID:  "grow-1",
		Sensor:    models.FieldHumidity,
		Value:     90,
		Threshold: 85,
		Condition: models.ConditionAbove,
	}

	require.NotNil(t, m.ShouldSend(tempReq))
	require.NotNil(t, m.ShouldSend(humReq))

	// Escalate only the temperature rule.
	clock.Advance(6 * time.Minute)
	tempReq.Value = 13
	decision := m.ShouldSend(tempReq)
	require.NotNil(t, decision)
	assert.Equal(t, models.LevelWarning, decision.Level)

	// The humidity alert is untouched: level and cooldown independent.
	hum, ok := m.Lookup("humidity-high:grow-1")
	require.True(t, ok)
	assert.Equal(t, models.LevelPreventive, hum.Level)
	assert.Equal(t, 1, hum.SentCount)

	temp, ok := m.Lookup("temp-low:grow-1")
	require.True(t, ok)
	assert.Equal(t, models.LevelWarning, temp.Level)
}

func TestCustomWaitSchedule(t *testing.T) {
	policy := DefaultPolicy()
	policy.Levels[0].WaitMinutes = 1
	policy.Levels[1].WaitMinutes = 2
	m, clock := newTestManager(policy)

	require.NotNil(t, m.ShouldSend(breachBelow(14)))

	// 90 seconds: past the first 1-minute wait.
	clock.Advance(90 * time.Second)
	decision := m.ShouldSend(breachBelow(13.5))
	require.NotNil(t, decision)
	assert.Equal(t, models.LevelWarning, decision.Level)

	// 2 more minutes: cumulative 3.5 min > 1+2, escalates again.
	clock.Advance(2 * time.Minute)
	decision = m.ShouldSend(breachBelow(13))
	require.NotNil(t, decision)
	assert.Equal(t, models.LevelCritical, decision.Level)
}
